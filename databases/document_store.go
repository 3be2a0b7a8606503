package databases

import (
	"context"
	"fmt"
	"sync"
)

// Embedder turns text into the vector space a DatabaseProvider's
// collections are indexed in. Implementations typically wrap an LLM
// provider's embedding endpoint.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentStore binds a named collection in a DatabaseProvider to an
// Embedder, so callers can search by query text instead of by raw vector.
// It is the retrieval backend the search tool queries.
type DocumentStore struct {
	name       string
	provider   DatabaseProvider
	collection string
	embedder   Embedder
}

// NewDocumentStore creates a document store over an existing provider and
// collection, embedding queries with embedder.
func NewDocumentStore(name string, provider DatabaseProvider, collection string, embedder Embedder) (*DocumentStore, error) {
	if name == "" {
		return nil, fmt.Errorf("document store name cannot be empty")
	}
	if provider == nil {
		return nil, fmt.Errorf("document store %q: provider cannot be nil", name)
	}
	if embedder == nil {
		return nil, fmt.Errorf("document store %q: embedder cannot be nil", name)
	}
	if collection == "" {
		collection = name
	}
	return &DocumentStore{
		name:       name,
		provider:   provider,
		collection: collection,
		embedder:   embedder,
	}, nil
}

// Index embeds and upserts a single document into the store's collection.
func (ds *DocumentStore) Index(ctx context.Context, id, content string, metadata map[string]interface{}) error {
	vector, err := ds.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("document store %q: embed failed: %w", ds.name, err)
	}

	meta := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["content"] = content

	return ds.provider.Upsert(ctx, ds.collection, id, vector, meta)
}

// Search embeds query and returns the topK nearest documents.
func (ds *DocumentStore) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	vector, err := ds.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("document store %q: embed query failed: %w", ds.name, err)
	}
	return ds.provider.Search(ctx, ds.collection, vector, limit)
}

// GetName returns the store's registered name.
func (ds *DocumentStore) GetName() string { return ds.name }

// Close releases the underlying provider's resources.
func (ds *DocumentStore) Close() error {
	return ds.provider.Close()
}

// ============================================================================
// PACKAGE-LEVEL DOCUMENT STORE REGISTRY
// ============================================================================
//
// Document stores are process-wide singletons: whatever wires up the
// reasoning loop registers each configured store once at startup, and the
// search tool looks them up by name at call time without needing a handle
// threaded through every layer in between.

var (
	docStoreMu    sync.RWMutex
	docStoreByKey = map[string]*DocumentStore{}
)

// RegisterDocumentStore makes store available to later GetDocumentStoreFromRegistry
// and ListDocumentStoresFromRegistry calls.
func RegisterDocumentStore(store *DocumentStore) {
	if store == nil {
		return
	}
	docStoreMu.Lock()
	defer docStoreMu.Unlock()
	docStoreByKey[store.GetName()] = store
}

// GetDocumentStoreFromRegistry looks up a previously registered store by name.
func GetDocumentStoreFromRegistry(name string) (*DocumentStore, bool) {
	docStoreMu.RLock()
	defer docStoreMu.RUnlock()
	store, exists := docStoreByKey[name]
	return store, exists
}

// ListDocumentStoresFromRegistry returns the names of all registered stores.
func ListDocumentStoresFromRegistry() []string {
	docStoreMu.RLock()
	defer docStoreMu.RUnlock()
	names := make([]string, 0, len(docStoreByKey))
	for name := range docStoreByKey {
		names = append(names, name)
	}
	return names
}

// UnregisterDocumentStore removes a store from the registry without closing it.
func UnregisterDocumentStore(name string) {
	docStoreMu.Lock()
	defer docStoreMu.Unlock()
	delete(docStoreByKey, name)
}
