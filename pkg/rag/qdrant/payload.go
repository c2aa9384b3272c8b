package qdrant

import (
	"context"
	stderrors "errors"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jllopis/bestrag/pkg/errors"
)

// toPayload converts a payload map to Qdrant values. Unsupported value
// types are dropped.
func toPayload(payload map[string]interface{}) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: val}}
		case int:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: val}}
		case float64:
			out[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}
		case bool:
			out[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: val}}
		}
	}
	return out
}

// fromPayload converts Qdrant values back to a plain map.
func fromPayload(payload map[string]*pb.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *pb.Value_StringValue:
			out[k] = kind.StringValue
		case *pb.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *pb.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *pb.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}

// mapGRPCError translates transport failures into the client's error
// taxonomy. Anything unrecognized stays INTERNAL_ERROR.
func mapGRPCError(op string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.New(errors.CodeTimeout, op+" timed out", err)
	}
	switch status.Code(err) {
	case codes.Unavailable:
		return errors.New(errors.CodeConnection, op+" failed: endpoint unreachable", err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return errors.New(errors.CodeUnauthorized, op+" failed: credentials rejected", err)
	case codes.DeadlineExceeded:
		return errors.New(errors.CodeTimeout, op+" timed out", err)
	case codes.InvalidArgument:
		return errors.New(errors.CodeInvalidInput, op+" failed: invalid request", err)
	case codes.NotFound:
		return errors.New(errors.CodeNotFound, op+" failed: not found", err)
	default:
		return errors.New(errors.CodeInternal, op+" failed", err)
	}
}
