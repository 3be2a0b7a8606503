// Package databases implements vector-store backends for retrieval-backed
// tools: a DatabaseProvider per backend, and a DocumentStore that turns a
// provider plus an embedder into something the search tool can query by
// text instead of by raw vector.
package databases

import (
	"context"
	"fmt"
	"sync"

	"github.com/reasoncore/engine/config"
	"github.com/reasoncore/engine/registry"
)

// DatabaseProvider defines the interface for vector database operations.
type DatabaseProvider interface {
	// Upsert adds or updates a document in the database.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]interface{}) error

	// Search performs vector similarity search.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error)

	// Delete removes a document from the database.
	Delete(ctx context.Context, collection string, id string) error

	// CreateCollection creates a new collection.
	CreateCollection(ctx context.Context, collection string, vectorSize uint64) error

	// DeleteCollection removes a collection.
	DeleteCollection(ctx context.Context, collection string) error

	// Close closes the database provider and releases resources.
	Close() error
}

// SearchResult represents a single hit from a vector similarity search.
type SearchResult struct {
	ID        string                 `json:"id"`
	Score     float32                `json:"score"`
	Content   string                 `json:"content"`
	Vector    []float32              `json:"vector,omitempty"`
	Metadata  map[string]interface{} `json:"metadata"`
	ModelName string                 `json:"model_name,omitempty"`
}

// DatabaseRegistry manages database provider instances by name.
type DatabaseRegistry struct {
	*registry.BaseRegistry[DatabaseProvider]

	mu    sync.RWMutex
	names map[string]struct{}
}

// NewDatabaseRegistry creates a new database registry.
func NewDatabaseRegistry() *DatabaseRegistry {
	return &DatabaseRegistry{
		BaseRegistry: registry.NewBaseRegistry[DatabaseProvider](),
		names:        make(map[string]struct{}),
	}
}

// RegisterDatabase registers a database provider instance.
func (r *DatabaseRegistry) RegisterDatabase(name string, provider DatabaseProvider) error {
	if provider == nil {
		return fmt.Errorf("database provider cannot be nil")
	}
	if err := r.Register(name, provider); err != nil {
		return err
	}
	r.mu.Lock()
	r.names[name] = struct{}{}
	r.mu.Unlock()
	return nil
}

// CreateDatabaseFromConfig creates, registers, and returns a database
// provider built from config.
func (r *DatabaseRegistry) CreateDatabaseFromConfig(name string, cfg *config.DatabaseProviderConfig) (DatabaseProvider, error) {
	if name == "" {
		return nil, fmt.Errorf("database name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("database config cannot be nil")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	var provider DatabaseProvider
	var err error

	switch cfg.Type {
	case "qdrant":
		provider, err = NewQdrantDatabaseProviderFromConfig(cfg)
	case "pinecone":
		provider, err = NewPineconeDatabaseProviderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database provider: %w", err)
	}

	if err := r.RegisterDatabase(name, provider); err != nil {
		return nil, fmt.Errorf("failed to register database: %w", err)
	}

	return provider, nil
}

// GetDatabase retrieves a database provider by name.
func (r *DatabaseRegistry) GetDatabase(name string) (DatabaseProvider, error) {
	provider, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("database provider '%s' not found", name)
	}
	return provider, nil
}

// ListDatabases returns all registered database names.
func (r *DatabaseRegistry) ListDatabases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	return names
}
