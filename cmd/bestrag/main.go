package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/jllopis/bestrag/pkg/catalog"
	"github.com/jllopis/bestrag/pkg/config"
	"github.com/jllopis/bestrag/pkg/document"
	bestragmcp "github.com/jllopis/bestrag/pkg/mcp"
	"github.com/jllopis/bestrag/pkg/rag"
	"github.com/jllopis/bestrag/pkg/rag/bm25"
	"github.com/jllopis/bestrag/pkg/rag/fastembed"
	"github.com/jllopis/bestrag/pkg/rag/ollama"
	qdrantstore "github.com/jllopis/bestrag/pkg/rag/qdrant"
	"github.com/jllopis/bestrag/pkg/telemetry"
)

const version = "0.1.0"

type globalFlags struct {
	ConfigPath string
	QdrantAddr string
	Collection string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

// main defers all cleanup to run so that os.Exit never skips a Close.
func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return 0
	}

	cmd := args[0]
	switch cmd {
	case "help":
		printUsage()
		return 0
	case "version":
		printVersion()
		return 0
	case "init":
		if err := runInit(global, args[1:]); err != nil {
			printCommandError(err, global.JSON)
			return 1
		}
		return 0
	}

	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		NewConfigError(err, global.ConfigPath).PrintError(global.JSON)
		return 1
	}
	applyOverrides(cfg, global)
	if err := cfg.Validate(); err != nil {
		printCommandError(err, global.JSON)
		return 1
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.InitWithConfig("bestrag", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(flushCtx)
	}()

	if err := dispatch(ctx, cmd, global, cfg, logger, args[1:]); err != nil {
		printCommandError(err, global.JSON)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, cmd string, global globalFlags, cfg *config.Config, logger *slog.Logger, args []string) error {
	switch cmd {
	case "ingest":
		return runIngest(ctx, global, cfg, logger, args)
	case "search":
		return runSearch(ctx, global, cfg, logger, args)
	case "delete":
		return runDelete(ctx, global, cfg, logger, args)
	case "count":
		return runCount(ctx, global, cfg, logger)
	case "collection":
		return runCollection(ctx, global, cfg)
	case "history":
		return runHistory(ctx, global, cfg, args)
	case "mcp":
		return runMCPServer(ctx, global, cfg, logger, args)
	default:
		return NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", cmd))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{
		ConfigPath: getenv("BESTRAG_CONFIG", ""),
		Timeout:    30 * time.Second,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--qdrant":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --qdrant")
			}
			flags.QdrantAddr = args[i+1]
			i++
		case strings.HasPrefix(arg, "--qdrant="):
			flags.QdrantAddr = strings.TrimPrefix(arg, "--qdrant=")
		case arg == "--collection":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --collection")
			}
			flags.Collection = args[i+1]
			i++
		case strings.HasPrefix(arg, "--collection="):
			flags.Collection = strings.TrimPrefix(arg, "--collection=")
		case arg == "--timeout":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --timeout")
			}
			value, err := time.ParseDuration(args[i+1])
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
			i++
		case strings.HasPrefix(arg, "--timeout="):
			value, err := time.ParseDuration(strings.TrimPrefix(arg, "--timeout="))
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func applyOverrides(cfg *config.Config, flags globalFlags) {
	if flags.QdrantAddr != "" {
		cfg.Qdrant.URL = flags.QdrantAddr
	}
	if flags.Collection != "" {
		cfg.Qdrant.Collection = flags.Collection
	}
	if flags.Timeout > 0 {
		cfg.Qdrant.Timeout = flags.Timeout
	}
}

// app bundles the wired client with everything that needs closing.
type app struct {
	client  *rag.Client
	store   *qdrantstore.Store
	catalog *catalog.Store
}

func (a *app) Close() {
	if a.catalog != nil {
		_ = a.catalog.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := qdrantstore.New(qdrantstore.Config{
		Addr:       cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		UseTLS:     cfg.Qdrant.UseTLS,
		Timeout:    cfg.Qdrant.Timeout,
	})
	if err != nil {
		return nil, err
	}

	fe := fastembed.New(cfg.Embedder.BaseURL, cfg.Embedder.DenseModel, cfg.Embedder.LateModel, cfg.Embedder.Timeout)
	var dense rag.DenseEmbedder = fe
	if cfg.Embedder.Provider == "ollama" {
		dense = ollama.NewEmbedder(cfg.Embedder.BaseURL, cfg.Embedder.DenseModel, cfg.Embedder.Timeout)
	}

	embedder := &rag.HybridEmbedder{
		Dense:  dense,
		Sparse: bm25.NewEmbedder(),
		Late:   fe,
	}

	opts := []rag.Option{
		rag.WithWorkers(cfg.Ingest.Workers),
		rag.WithBatchSize(cfg.Ingest.BatchSize),
		rag.WithLogger(logger),
	}

	a := &app{store: store}
	if cfg.Catalog.Enabled {
		cat, err := catalog.Open(cfg.Catalog.Path)
		if err != nil {
			store.Close()
			return nil, err
		}
		a.catalog = cat
		opts = append(opts, rag.WithRecorder(cat))
	}

	schema := rag.Schema{
		DenseSize: uint64(cfg.Embedder.Dimension),
		LateSize:  uint64(cfg.Embedder.Dimension),
	}
	client, err := rag.New(store, embedder, document.NewPDFExtractor(), cfg.Qdrant.Collection, schema, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := client.Initialize(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.client = client
	return a, nil
}

func runIngest(ctx context.Context, flags globalFlags, cfg *config.Config, logger *slog.Logger, args []string) error {
	cmd := flag.NewFlagSet("ingest", flag.ContinueOnError)
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if cmd.NArg() < 1 {
		return NewInvalidArgumentError("path", "ingest requires at least one PDF path")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	reports := make([]*rag.IngestReport, 0, cmd.NArg())
	for _, path := range cmd.Args() {
		report, err := a.client.Ingest(ctx, path)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	}

	if flags.JSON {
		return printJSON(reports)
	}
	writer := newTabWriter()
	writeRow(writer, "FILE", "PAGES", "WRITTEN", "SKIPPED", "FAILED")
	for _, r := range reports {
		writeRow(writer, r.Filename,
			fmt.Sprintf("%d", r.Pages),
			fmt.Sprintf("%d", r.Written),
			fmt.Sprintf("%d", r.Skipped),
			fmt.Sprintf("%d", r.Failed))
	}
	return writer.Flush()
}

func runSearch(ctx context.Context, flags globalFlags, cfg *config.Config, logger *slog.Logger, args []string) error {
	cmd := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := cmd.Int("limit", rag.DefaultSearchLimit, "Maximum number of results")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if cmd.NArg() < 1 {
		return NewInvalidArgumentError("query", "search requires a query")
	}
	query := strings.Join(cmd.Args(), " ")

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.client.Search(ctx, query, *limit)
	if err != nil {
		return err
	}

	if flags.JSON {
		return printJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	writer := newTabWriter()
	writeRow(writer, "SCORE", "FILE", "PAGE", "TEXT")
	for _, r := range results {
		writeRow(writer,
			fmt.Sprintf("%.4f", r.Score),
			payloadString(r.Payload, rag.PayloadKeyFilename),
			payloadString(r.Payload, rag.PayloadKeyPage),
			truncateMessage(payloadString(r.Payload, rag.PayloadKeyText), 96))
	}
	return writer.Flush()
}

func runDelete(ctx context.Context, flags globalFlags, cfg *config.Config, logger *slog.Logger, args []string) error {
	cmd := flag.NewFlagSet("delete", flag.ContinueOnError)
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if cmd.NArg() < 1 {
		return NewInvalidArgumentError("filename", "delete requires a filename")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, filename := range cmd.Args() {
		if err := a.client.DeletePDFEmbeddings(ctx, filename); err != nil {
			return err
		}
		if !flags.JSON {
			fmt.Printf("deleted embeddings for %s\n", filename)
		}
	}
	if flags.JSON {
		return printJSON(map[string]any{"deleted": cmd.Args()})
	}
	return nil
}

func runCount(ctx context.Context, flags globalFlags, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.client.Count(ctx)
	if err != nil {
		return err
	}
	if flags.JSON {
		return printJSON(map[string]any{"collection": cfg.Qdrant.Collection, "points": count})
	}
	fmt.Printf("%s: %d points\n", cfg.Qdrant.Collection, count)
	return nil
}

func runCollection(ctx context.Context, flags globalFlags, cfg *config.Config) error {
	store, err := qdrantstore.New(qdrantstore.Config{
		Addr:       cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		UseTLS:     cfg.Qdrant.UseTLS,
		Timeout:    cfg.Qdrant.Timeout,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	info, err := store.Info(ctx)
	if err != nil {
		return err
	}
	if flags.JSON {
		return printProtoJSON(info)
	}
	fmt.Printf("collection: %s\n", cfg.Qdrant.Collection)
	fmt.Printf("status: %s\n", info.GetStatus().String())
	fmt.Printf("points: %d\n", info.GetPointsCount())
	fmt.Printf("segments: %d\n", info.GetSegmentsCount())
	return nil
}

func runHistory(ctx context.Context, flags globalFlags, cfg *config.Config, args []string) error {
	cmd := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := cmd.Int("limit", 20, "Maximum number of entries")
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if !cfg.Catalog.Enabled {
		return NewInvalidArgumentError("catalog", "the ingest catalog is disabled; set catalog.enabled: true")
	}

	cat, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer cat.Close()

	entries, err := cat.List(ctx, *limit)
	if err != nil {
		return err
	}
	if flags.JSON {
		return printJSON(entries)
	}
	writer := newTabWriter()
	writeRow(writer, "WHEN", "FILE", "COLLECTION", "PAGES", "WRITTEN", "SKIPPED", "FAILED")
	for _, e := range entries {
		writeRow(writer, formatTime(e.IngestedAt), e.Filename, e.Collection,
			fmt.Sprintf("%d", e.Pages),
			fmt.Sprintf("%d", e.Written),
			fmt.Sprintf("%d", e.Skipped),
			fmt.Sprintf("%d", e.Failed))
	}
	return writer.Flush()
}

// runMCPServer blocks until the transport ends or ctx is canceled by
// SIGINT/SIGTERM, so both transports stop cleanly and the deferred
// closes run.
func runMCPServer(ctx context.Context, flags globalFlags, cfg *config.Config, logger *slog.Logger, args []string) error {
	cmd := flag.NewFlagSet("mcp", flag.ContinueOnError)
	transport := cmd.String("transport", "stdio", "Transport: stdio or http")
	addr := cmd.String("addr", ":8081", "Listen address for the http transport")
	if err := cmd.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// The server runs until stopped, so pick up log setting changes from
	// the config file without a restart.
	if flags.ConfigPath != "" {
		watcher, err := config.NewWatcher(flags.ConfigPath, config.WithWatchLogger(logger))
		if err != nil {
			return err
		}
		watcher.OnChange(func(next *config.Config) {
			telemetry.ConfigureSlog(os.Stderr, next.Log.Level, next.Log.Format)
		})
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		watcher.Start(watchCtx)
		defer watcher.Stop()
	}

	srv := bestragmcp.NewServer("bestrag", version)
	bestragmcp.RegisterRAGTools(srv, a.client)

	switch *transport {
	case "stdio":
		return srv.ServeStdio(ctx)
	case "http":
		logger.Info("mcp server listening", "addr", *addr)
		return srv.ServeHTTP(ctx, *addr)
	default:
		return NewInvalidArgumentError("transport", fmt.Sprintf("unknown transport %q", *transport))
	}
}

func payloadString(payload map[string]interface{}, key string) string {
	value, ok := payload[key]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%v", value)
}

func printJSON(value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	return nil
}

func printProtoJSON(msg proto.Message) error {
	payload, err := protojson.MarshalOptions{EmitUnpopulated: true}.Marshal(msg)
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	return nil
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

// truncateMessage counts runes, not bytes, so a cut never splits a
// multi-byte character.
func truncateMessage(value string, limit int) string {
	value = normalizeCell(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}

func printVersion() {
	fmt.Println(version)
}

func printUsage() {
	fmt.Println(`bestrag - hybrid document search over Qdrant

Usage:
  bestrag [global flags] <command> [args]

Global flags:
  --config <path>      Path to bestrag.yaml
  --qdrant <addr>      Qdrant gRPC address (default localhost:6334)
  --collection <name>  Collection name (default bestrag)
  --timeout <dur>      Request timeout (default 30s)
  --json               JSON output

Commands:
  init [--out <path>]              Write a starter config file
  ingest <file.pdf> [more...]      Extract, embed, and store PDFs
  search [--limit N] <query>       Hybrid search over stored pages
  delete <file.pdf> [more...]      Remove all points of ingested files
  count                            Count stored points
  collection                       Show collection status
  history [--limit N]              Show recorded ingestion runs
  mcp [--transport stdio|http]     Serve the tools over MCP
  version                          Print version`)
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
