package databases

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/reasoncore/engine/config"
)

// NewPineconeDatabaseProvider creates a new Pinecone vector database with
// default configuration (requires PINECONE_API_KEY / config.APIKey).
func NewPineconeDatabaseProvider() (DatabaseProvider, error) {
	return NewPineconeDatabaseProviderFromConfig(&config.DatabaseProviderConfig{
		Type:    "pinecone",
		Timeout: 30,
	})
}

// NewPineconeDatabaseProviderFromConfig creates a new Pinecone vector
// database from config. Only APIKey is used to build the client; Host and
// Port are not read, since each call resolves the index host through
// DescribeIndex.
func NewPineconeDatabaseProviderFromConfig(cfg *config.DatabaseProviderConfig) (DatabaseProvider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	return &pineconeDatabaseProvider{client: client, config: cfg}, nil
}

// pineconeDatabaseProvider is a Pinecone vector database implementation.
// Unlike Qdrant's single long-lived client connection, Pinecone scopes a
// connection to one index host, so each call resolves the index-scoped
// connection for the requested collection (Pinecone's "index" maps to
// our "collection").
type pineconeDatabaseProvider struct {
	client *pinecone.Client
	config *config.DatabaseProviderConfig
}

func (db *pineconeDatabaseProvider) indexConn(ctx context.Context, collection string) (*pinecone.IndexConnection, error) {
	idx, err := db.client.DescribeIndex(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %s: %w", collection, err)
	}
	conn, err := db.client.Index(pinecone.NewIndexConnParams{Host: idx.Host})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index %s: %w", collection, err)
	}
	return conn, nil
}

func (db *pineconeDatabaseProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]interface{}) error {
	conn, err := db.indexConn(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	meta, err := structpb.NewStruct(metadata)
	if err != nil {
		return fmt.Errorf("failed to convert metadata: %w", err)
	}

	_, err = conn.UpsertVectors(ctx, []*pinecone.Vector{
		{Id: id, Values: &vector, Metadata: meta},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	return nil
}

func (db *pineconeDatabaseProvider) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]SearchResult, error) {
	conn, err := db.indexConn(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          queryVector,
		TopK:            uint32(topK),
		IncludeValues:   true,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query index %s: %w", collection, err)
	}

	results := make([]SearchResult, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		metadata := map[string]interface{}{}
		if match.Vector.Metadata != nil {
			metadata = match.Vector.Metadata.AsMap()
		}
		content := ""
		if c, ok := metadata["content"].(string); ok {
			content = c
		}
		var vec []float32
		if match.Vector.Values != nil {
			vec = *match.Vector.Values
		}
		results = append(results, SearchResult{
			ID:       match.Vector.Id,
			Content:  content,
			Vector:   vec,
			Metadata: metadata,
			Score:    match.Score,
		})
	}
	return results, nil
}

func (db *pineconeDatabaseProvider) Delete(ctx context.Context, collection string, id string) error {
	conn, err := db.indexConn(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to delete vector %s from index %s: %w", id, collection, err)
	}
	return nil
}

func (db *pineconeDatabaseProvider) CreateCollection(ctx context.Context, collection string, vectorSize uint64) error {
	if _, err := db.client.DescribeIndex(ctx, collection); err == nil {
		return nil // index already exists
	}

	dimension := int32(vectorSize)
	metric := pinecone.Cosine
	_, err := db.client.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      collection,
		Dimension: &dimension,
		Metric:    &metric,
		Cloud:     pinecone.Aws,
		Region:    "us-east-1",
	})
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", collection, err)
	}
	return nil
}

func (db *pineconeDatabaseProvider) DeleteCollection(ctx context.Context, collection string) error {
	if err := db.client.DeleteIndex(ctx, collection); err != nil {
		return fmt.Errorf("failed to delete index %s: %w", collection, err)
	}
	return nil
}

func (db *pineconeDatabaseProvider) Close() error {
	return nil
}

var _ DatabaseProvider = (*pineconeDatabaseProvider)(nil)
