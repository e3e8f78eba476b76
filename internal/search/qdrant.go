package search

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/timmy/courtside/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	defaultVectorDimension = 1024

	// maxEmbedBytes bounds the passage sent to the embedding model.
	maxEmbedBytes = 8000
)

// pointNamespace derives stable point UUIDs from video identifiers.
var pointNamespace = uuid.MustParse("6f1d3c52-2b7e-4f0a-9a59-0c7d1e3b8a41")

// Embedder turns text into vectors.
type Embedder interface {
	// Embed embeds a passage for storage.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// QdrantConfig holds connection settings for Qdrant.
type QdrantConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API key, implies TLS
	UseTLS          bool
	VectorDimension int
}

// apiKeyInterceptor attaches the API key to every unary call.
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantIndex is a semantic Index: documents are embedded and matched by cosine similarity.
// Highlights are cut locally from the stored content.
type QdrantIndex struct {
	conn            *grpc.ClientConn
	points          pb.PointsClient
	collections     pb.CollectionsClient
	collection      string
	vectorDimension int
	embedder        Embedder
}

// NewQdrantIndex connects to Qdrant. Local servers use plaintext; an API key switches to TLS.
func NewQdrantIndex(cfg *QdrantConfig, embedder Embedder) (*QdrantIndex, error) {
	dim := cfg.VectorDimension
	if dim <= 0 {
		dim = defaultVectorDimension
	}

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantIndex{
		conn:            conn,
		points:          pb.NewPointsClient(conn),
		collections:     pb.NewCollectionsClient(conn),
		collection:      cfg.Collection,
		vectorDimension: dim,
		embedder:        embedder,
	}, nil
}

// EnsureCollection creates the collection when missing and checks its vector size otherwise.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	info, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: q.collection})
	if err == nil {
		if size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize(); size > 0 && size != uint64(q.vectorDimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", q.collection, size, q.vectorDimension)
		}
		return nil
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// PointID maps a document ID to its Qdrant point UUID.
func PointID(id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

// Upsert embeds doc and writes it as a single point keyed by its ID.
func (q *QdrantIndex) Upsert(ctx context.Context, doc *domain.IndexDocument) error {
	passage := doc.Title + "\n\n" + doc.Content
	if len(passage) > maxEmbedBytes {
		passage = passage[:clampToRune(passage, maxEmbedBytes)]
	}
	vector, err := q.embedder.Embed(ctx, passage)
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", doc.ID, err)
	}

	_, err = q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(doc.ID)}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}},
			},
			Payload: documentPayload(doc),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Delete removes the point for id.
func (q *QdrantIndex) Delete(ctx context.Context, id string) error {
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(id)}}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}

// Query embeds text and returns the topN nearest documents.
func (q *QdrantIndex) Query(ctx context.Context, text string, topN int) ([]domain.SearchHit, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	vector, err := q.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topN),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		doc := payloadDocument(scored.GetPayload())
		hits = append(hits, domain.SearchHit{
			ID:         doc.ID,
			ParentID:   doc.ParentID,
			Title:      doc.Title,
			URL:        doc.URL,
			Score:      float64(scored.GetScore()),
			Highlights: Excerpts(doc.Content, text),
		})
	}
	return hits, nil
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

func documentPayload(doc *domain.IndexDocument) map[string]*pb.Value {
	str := func(s string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}} }
	return map[string]*pb.Value{
		"chunk_id":    str(doc.ID),
		fieldParentID: str(doc.ParentID),
		fieldTitle:    str(doc.Title),
		fieldContent:  str(doc.Content),
		fieldURL:      str(doc.URL),
	}
}

func payloadDocument(payload map[string]*pb.Value) domain.IndexDocument {
	get := func(key string) string { return payload[key].GetStringValue() }
	return domain.IndexDocument{
		ID:       get("chunk_id"),
		ParentID: get(fieldParentID),
		Title:    get(fieldTitle),
		Content:  get(fieldContent),
		URL:      get(fieldURL),
	}
}
