package qdrant

import (
	"context"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jllopis/bestrag/pkg/errors"
)

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Collection: "docs"}); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for missing addr, got %v", err)
	}
	if _, err := New(Config{Addr: "localhost:6334"}); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for missing collection, got %v", err)
	}
}

func TestMapGRPCError(t *testing.T) {
	cases := []struct {
		in   error
		want errors.ErrorCode
	}{
		{status.Error(codes.Unavailable, "connection refused"), errors.CodeConnection},
		{status.Error(codes.Unauthenticated, "invalid api key"), errors.CodeUnauthorized},
		{status.Error(codes.PermissionDenied, "forbidden"), errors.CodeUnauthorized},
		{status.Error(codes.DeadlineExceeded, "deadline"), errors.CodeTimeout},
		{context.DeadlineExceeded, errors.CodeTimeout},
		{status.Error(codes.InvalidArgument, "bad vector"), errors.CodeInvalidInput},
		{status.Error(codes.NotFound, "no collection"), errors.CodeNotFound},
		{status.Error(codes.Internal, "boom"), errors.CodeInternal},
	}
	for _, tc := range cases {
		got := mapGRPCError("op", tc.in)
		if !errors.HasCode(got, tc.want) {
			t.Fatalf("for %v: expected %s, got %v", tc.in, tc.want, got)
		}
	}
	if mapGRPCError("op", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	in := map[string]interface{}{
		"text":        "page content",
		"page_number": 3,
		"score":       0.5,
		"archived":    true,
		"dropped":     []string{"unsupported"},
	}
	out := fromPayload(toPayload(in))

	if out["text"] != "page content" {
		t.Fatalf("text lost: %v", out["text"])
	}
	// integers widen to int64 across the wire
	if out["page_number"] != int64(3) {
		t.Fatalf("page_number lost: %v", out["page_number"])
	}
	if out["score"] != 0.5 {
		t.Fatalf("score lost: %v", out["score"])
	}
	if out["archived"] != true {
		t.Fatalf("archived lost: %v", out["archived"])
	}
	if _, ok := out["dropped"]; ok {
		t.Fatal("unsupported type should be dropped")
	}
}

func TestFlatten(t *testing.T) {
	flat := flatten([][]float32{{1, 2}, {3, 4}, {5, 6}})
	want := []float32{1, 2, 3, 4, 5, 6}
	if len(flat) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(flat))
	}
	for i := range want {
		if flat[i] != want[i] {
			t.Fatalf("flatten mismatch at %d: %f", i, flat[i])
		}
	}
	if flatten(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestPointIDString(t *testing.T) {
	uuid := &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "abc-123"}}
	if got := pointIDString(uuid); got != "abc-123" {
		t.Fatalf("unexpected uuid id: %s", got)
	}
	num := &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: 42}}
	if got := pointIDString(num); got != "42" {
		t.Fatalf("unexpected numeric id: %s", got)
	}
}
