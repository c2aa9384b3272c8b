// Package qdrant implements rag.VectorStore against a Qdrant server over
// gRPC. The collection uses three named vector fields: a cosine dense
// vector, a MaxSim multivector for late interaction, and a sparse field.
package qdrant

import (
	"context"
	"crypto/tls"
	"strconv"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jllopis/bestrag/pkg/errors"
	"github.com/jllopis/bestrag/pkg/rag"
)

// Config holds the immutable connection parameters.
type Config struct {
	// Addr is the gRPC endpoint, host:port.
	Addr string
	// APIKey is sent as per-RPC metadata when non-empty.
	APIKey string
	// Collection is the target collection name.
	Collection string
	// UseTLS enables transport security (required for Qdrant Cloud).
	UseTLS bool
	// Timeout bounds every RPC. Zero means no per-call deadline.
	Timeout time.Duration
}

// Store talks to one Qdrant collection.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	timeout     time.Duration
}

// apiKeyCredentials injects the Qdrant api-key header on every RPC.
type apiKeyCredentials struct {
	key string
}

func (c apiKeyCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"api-key": c.key}, nil
}

func (c apiKeyCredentials) RequireTransportSecurity() bool {
	return false
}

// New connects to a Qdrant server.
func New(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New(errors.CodeInvalidInput, "qdrant address is required", nil)
	}
	if cfg.Collection == "" {
		return nil, errors.New(errors.CodeInvalidInput, "collection name is required", nil)
	}

	transport := insecure.NewCredentials()
	if cfg.UseTLS {
		transport = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(transport)}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(apiKeyCredentials{key: cfg.APIKey}))
	}

	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, errors.New(errors.CodeConnection, "did not connect", err).
			WithContext("addr", cfg.Addr)
	}

	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		timeout:     cfg.Timeout,
	}, nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureCollection creates the collection with the hybrid schema if it is
// absent, or verifies an existing collection against the schema.
func (s *Store) EnsureCollection(ctx context.Context, schema rag.Schema) error {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	existsResp, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{
		CollectionName: s.collection,
	})
	if err != nil {
		return mapGRPCError("check collection", err)
	}

	if existsResp.GetResult().GetExists() {
		return s.verifySchema(ctx, schema)
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_ParamsMap{
				ParamsMap: &pb.VectorParamsMap{
					Map: map[string]*pb.VectorParams{
						rag.VectorNameDense: {
							Size:     schema.DenseSize,
							Distance: pb.Distance_Cosine,
						},
						rag.VectorNameLate: {
							Size:     schema.LateSize,
							Distance: pb.Distance_Cosine,
							MultivectorConfig: &pb.MultiVectorConfig{
								Comparator: pb.MultiVectorComparator_MaxSim,
							},
						},
					},
				},
			},
		},
		SparseVectorsConfig: &pb.SparseVectorConfig{
			Map: map[string]*pb.SparseVectorParams{
				rag.VectorNameSparse: {},
			},
		},
	})
	if err != nil {
		return mapGRPCError("create collection", err)
	}
	return nil
}

// verifySchema compares an existing collection's vector config against the
// schema this client writes.
func (s *Store) verifySchema(ctx context.Context, schema rag.Schema) error {
	infoResp, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: s.collection,
	})
	if err != nil {
		return mapGRPCError("get collection info", err)
	}

	params := infoResp.GetResult().GetConfig().GetParams()
	vectorsMap := params.GetVectorsConfig().GetParamsMap().GetMap()
	if vectorsMap == nil {
		return errors.New(errors.CodeSchemaMismatch, "existing collection does not use named vectors", nil).
			WithContext("collection", s.collection)
	}

	dense, ok := vectorsMap[rag.VectorNameDense]
	if !ok || dense.GetSize() != schema.DenseSize || dense.GetDistance() != pb.Distance_Cosine {
		return errors.New(errors.CodeSchemaMismatch, "dense vector field conflicts", nil).
			WithContext("collection", s.collection).
			WithContext("field", rag.VectorNameDense)
	}

	late, ok := vectorsMap[rag.VectorNameLate]
	if !ok || late.GetSize() != schema.LateSize || late.GetMultivectorConfig().GetComparator() != pb.MultiVectorComparator_MaxSim {
		return errors.New(errors.CodeSchemaMismatch, "late-interaction vector field conflicts", nil).
			WithContext("collection", s.collection).
			WithContext("field", rag.VectorNameLate)
	}

	if _, ok := params.GetSparseVectorsConfig().GetMap()[rag.VectorNameSparse]; !ok {
		return errors.New(errors.CodeSchemaMismatch, "sparse vector field missing", nil).
			WithContext("collection", s.collection).
			WithContext("field", rag.VectorNameSparse)
	}
	return nil
}

// Upsert writes points with named vectors, overwriting by point ID.
func (s *Store) Upsert(ctx context.Context, points []rag.Point) error {
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	qPoints := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		qPoints[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vectors{
					Vectors: &pb.NamedVectors{
						Vectors: map[string]*pb.Vector{
							rag.VectorNameDense: {
								Data: p.Vectors.Dense,
							},
							rag.VectorNameLate: {
								Data:         flatten(p.Vectors.Late),
								VectorsCount: ptr(uint32(len(p.Vectors.Late))),
							},
							rag.VectorNameSparse: {
								Data:    p.Vectors.Sparse.Values,
								Indices: &pb.SparseIndices{Data: p.Vectors.Sparse.Indices},
							},
						},
					},
				},
			},
			Payload: toPayload(p.Payload),
		}
	}

	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         qPoints,
		Wait:           ptr(true),
	})
	if err != nil {
		return mapGRPCError("upsert points", err)
	}
	return nil
}

// Query recalls dense and sparse candidate sets server-side and reranks
// them with the late-interaction multivector. Fusion is owned entirely by
// Qdrant.
func (s *Store) Query(ctx context.Context, q rag.HybridQuery) ([]rag.SearchResult, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	prefetchLimit := q.PrefetchLimit
	if prefetchLimit == 0 {
		prefetchLimit = q.Limit
	}

	queryTokens := make([]*pb.DenseVector, len(q.Vectors.Late))
	for i, tok := range q.Vectors.Late {
		queryTokens[i] = &pb.DenseVector{Data: tok}
	}

	resp, err := s.points.Query(ctx, &pb.QueryPoints{
		CollectionName: s.collection,
		Prefetch: []*pb.PrefetchQuery{
			{
				Query: &pb.Query{Variant: &pb.Query_Nearest{Nearest: &pb.VectorInput{
					Variant: &pb.VectorInput_Dense{Dense: &pb.DenseVector{Data: q.Vectors.Dense}},
				}}},
				Using: ptr(rag.VectorNameDense),
				Limit: ptr(prefetchLimit),
			},
			{
				Query: &pb.Query{Variant: &pb.Query_Nearest{Nearest: &pb.VectorInput{
					Variant: &pb.VectorInput_Sparse{Sparse: &pb.SparseVector{
						Values:  q.Vectors.Sparse.Values,
						Indices: q.Vectors.Sparse.Indices,
					}},
				}}},
				Using: ptr(rag.VectorNameSparse),
				Limit: ptr(prefetchLimit),
			},
		},
		Query: &pb.Query{Variant: &pb.Query_Nearest{Nearest: &pb.VectorInput{
			Variant: &pb.VectorInput_MultiDense{MultiDense: &pb.MultiDenseVector{Vectors: queryTokens}},
		}}},
		Using: ptr(rag.VectorNameLate),
		Limit: ptr(q.Limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, mapGRPCError("query points", err)
	}

	results := make([]rag.SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		results[i] = rag.SearchResult{
			ID:      pointIDString(r.GetId()),
			Score:   r.GetScore(),
			Payload: fromPayload(r.GetPayload()),
		}
	}
	return results, nil
}

// Count returns the exact number of points in the collection.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          ptr(true),
	})
	if err != nil {
		return 0, mapGRPCError("count points", err)
	}
	return resp.GetResult().GetCount(), nil
}

// DeleteByFilename removes every point whose payload filename matches.
func (s *Store) DeleteByFilename(ctx context.Context, filename string) error {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           ptr(true),
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						{
							ConditionOneOf: &pb.Condition_Field{
								Field: &pb.FieldCondition{
									Key: rag.PayloadKeyFilename,
									Match: &pb.Match{
										MatchValue: &pb.Match_Keyword{Keyword: filename},
									},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return mapGRPCError("delete points", err)
	}
	return nil
}

// Info returns the raw collection info for inspection.
func (s *Store) Info(ctx context.Context) (*pb.CollectionInfo, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	resp, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: s.collection,
	})
	if err != nil {
		return nil, mapGRPCError("get collection info", err)
	}
	return resp.GetResult(), nil
}

func flatten(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	flat := make([]float32, 0, len(vectors)*len(vectors[0]))
	for _, v := range vectors {
		flat = append(flat, v...)
	}
	return flat
}

func ptr[T any](v T) *T {
	return &v
}

func pointIDString(id *pb.PointId) string {
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	// This client always writes UUID IDs, but foreign points may use numbers.
	return strconv.FormatUint(id.GetNum(), 10)
}
