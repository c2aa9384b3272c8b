package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/bestrag/pkg/rag"
)

// RegisterRAGTools wires the document tools onto the server. Domain
// failures are reported as tool errors so the calling model can react;
// only marshalling problems surface as protocol errors.
func RegisterRAGTools(s *Server, client *rag.Client) {
	s.AddTool(
		mcp.NewTool("store_pdf",
			mcp.WithDescription("Extract a PDF and store hybrid embeddings for every page"),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description("Path to the PDF file on the server host"),
			),
		),
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			path, err := request.RequireString("path")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			report, err := client.Ingest(ctx, path)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(report)
		},
	)

	s.AddTool(
		mcp.NewTool("search",
			mcp.WithDescription("Hybrid search over the stored document pages"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Natural language query"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results"),
			),
		),
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			query, err := request.RequireString("query")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			limit := request.GetInt("limit", rag.DefaultSearchLimit)
			results, err := client.Search(ctx, query, limit)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(results)
		},
	)

	s.AddTool(
		mcp.NewTool("delete_pdf",
			mcp.WithDescription("Delete every stored page of a previously ingested PDF"),
			mcp.WithString("filename",
				mcp.Required(),
				mcp.Description("Base filename of the ingested PDF"),
			),
		),
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			filename, err := request.RequireString("filename")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := client.DeletePDFEmbeddings(ctx, filename); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("deleted embeddings for %s", filename)), nil
		},
	)

	s.AddTool(
		mcp.NewTool("count",
			mcp.WithDescription("Count the points stored in the collection"),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			count, err := client.Count(ctx)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("%d", count)), nil
		},
	)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
