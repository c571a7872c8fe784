// Package rag retrieves course reference material from ChromaDB so replies can cite it.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	v2 "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/ollama"
	"github.com/kevensen/gollama-clippy/internal/configuration"
	"github.com/kevensen/gollama-clippy/internal/logging"
)

// RetrievedDocument is a reference document returned by ChromaDB with its distance
type RetrievedDocument struct {
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Collection string            `json:"collection"`
	Distance   float32           `json:"distance"`
	ID         string            `json:"id"`
}

// Source returns the "source" metadata of the document, or its ID
func (d RetrievedDocument) Source() string {
	if s := d.Metadata["source"]; s != "" {
		return s
	}
	return d.ID
}

// Result contains the retrieved documents for a query
type Result struct {
	Documents []RetrievedDocument `json:"documents"`
	Query     string              `json:"query"`
}

// Service handles retrieval of reference material
type Service struct {
	mu                  sync.RWMutex
	config              *configuration.Config
	client              v2.Client
	embeddingFunc       embeddings.EmbeddingFunction
	connected           bool
	selectedCollections []string
	logger              *logging.Logger
}

// NewService creates a new, unconnected RAG service
func NewService(config *configuration.Config) *Service {
	return &Service{
		config:              config,
		selectedCollections: make([]string, 0),
		logger:              logging.WithComponent("rag"),
	}
}

// Initialize connects to ChromaDB, verifies the embedding model and selects collections
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.ChromaDBURL == "" {
		return fmt.Errorf("ChromaDB URL not configured")
	}

	s.logger.Info("Initializing RAG service",
		"chromadb_url", s.config.ChromaDBURL,
		"ollama_url", s.config.OllamaURL,
		"embedding_model", s.config.EmbeddingModel,
	)

	client, err := v2.NewHTTPClient(v2.WithBaseURL(s.config.ChromaDBURL))
	if err != nil {
		return fmt.Errorf("failed to create ChromaDB client: %w", err)
	}

	listCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	collections, err := client.ListCollections(listCtx)
	if err != nil {
		s.logger.Error("Failed to connect to ChromaDB", "chromadb_url", s.config.ChromaDBURL, "error", err)
		return fmt.Errorf("failed to connect to ChromaDB: %w", err)
	}

	embeddingFunc, err := ollama.NewOllamaEmbeddingFunction(
		ollama.WithBaseURL(s.config.OllamaURL),
		ollama.WithModel(embeddings.EmbeddingModel(s.config.EmbeddingModel)),
	)
	if err != nil {
		return fmt.Errorf("failed to create Ollama embedding function: %w", err)
	}

	testCtx, testCancel := context.WithTimeout(ctx, 10*time.Second)
	defer testCancel()
	if _, err := embeddingFunc.EmbedDocuments(testCtx, []string{"test"}); err != nil {
		return fmt.Errorf("embedding model '%s' does not support embeddings: %w", s.config.EmbeddingModel, err)
	}

	s.client = client
	s.embeddingFunc = embeddingFunc
	s.connected = true

	available := make([]string, 0, len(collections))
	for _, c := range collections {
		available = append(available, c.Name())
	}
	s.selectedCollections = selectCollections(s.config.SelectedCollections, available)

	s.logger.Info("RAG service ready",
		"available_collections", len(available),
		"selected_collections", s.selectedCollections,
	)
	return nil
}

// selectCollections returns the explicitly selected collections, or every available one
// when nothing is selected. The result is sorted.
func selectCollections(selected map[string]bool, available []string) []string {
	out := make([]string, 0)
	for name, on := range selected {
		if on {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		out = append(out, available...)
	}
	sort.Strings(out)
	return out
}

// UpdateSelectedCollections replaces the selection. An empty map selects every collection
// when connected and clears the selection otherwise.
func (s *Service) UpdateSelectedCollections(ctx context.Context, selected map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var available []string
	if len(selected) == 0 && s.connected && s.client != nil {
		collections, err := s.client.ListCollections(ctx)
		if err != nil {
			s.logger.Warn("Failed to list collections, keeping existing selection", "error", err)
			return
		}
		for _, c := range collections {
			available = append(available, c.Name())
		}
	}
	s.selectedCollections = selectCollections(selected, available)
}

// GetSelectedCollections returns a copy of the selected collections
func (s *Service) GetSelectedCollections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.selectedCollections...)
}

// UpdateConfig swaps the configuration reference
func (s *Service) UpdateConfig(newConfig *configuration.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = newConfig
}

// IsReady reports whether queries can be served
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isReady()
}

func (s *Service) isReady() bool {
	return s.config.RAGEnabled && s.connected && len(s.selectedCollections) > 0
}

// QueryDocuments retrieves the most relevant documents across the selected collections
func (s *Service) QueryDocuments(ctx context.Context, query string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return nil, fmt.Errorf("RAG service not connected to ChromaDB")
	}
	if !s.config.RAGEnabled {
		return nil, fmt.Errorf("RAG is disabled in configuration")
	}
	if len(s.selectedCollections) == 0 {
		return nil, fmt.Errorf("no collections selected for RAG")
	}

	s.logger.Debug("Starting RAG query",
		"query_preview", contentPreview(query, 100),
		"collections", s.selectedCollections,
		"max_documents", s.config.MaxDocuments,
	)

	var docs []RetrievedDocument
	for _, name := range s.selectedCollections {
		found, err := s.queryCollection(ctx, name, query)
		if err != nil {
			// One broken collection should not hide the others
			s.logger.Warn("Failed to query collection", "collection_name", name, "error", err)
			continue
		}
		docs = append(docs, found...)
	}

	result := &Result{
		Query:     query,
		Documents: rankDocuments(docs, s.config.MaxDocuments),
	}
	s.logger.Info("RAG query completed", "documents", len(result.Documents))
	return result, nil
}

// rankDocuments orders documents by distance, closest first, and keeps at most limit
func rankDocuments(docs []RetrievedDocument, limit int) []RetrievedDocument {
	out := make([]RetrievedDocument, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Service) queryCollection(ctx context.Context, collectionName, query string) ([]RetrievedDocument, error) {
	collection, err := s.client.GetCollection(ctx, collectionName, v2.WithEmbeddingFunctionGet(s.embeddingFunc))
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", collectionName, err)
	}

	queryResult, err := collection.Query(
		ctx,
		v2.WithQueryTexts(query),
		v2.WithNResults(s.config.MaxDocuments),
		v2.WithIncludeQuery("documents", "metadatas", "distances"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collectionName, err)
	}

	threshold := float32(s.config.ChromaDBDistance)
	distanceGroups := queryResult.GetDistancesGroups()
	metadataGroups := queryResult.GetMetadatasGroups()
	idGroups := queryResult.GetIDGroups()

	documents := make([]RetrievedDocument, 0)
	for g, group := range queryResult.GetDocumentsGroups() {
		for i, doc := range group {
			var distance float32 = 1.0
			if len(distanceGroups) > g && len(distanceGroups[g]) > i {
				distance = float32(distanceGroups[g][i])
			}
			if distance > threshold {
				continue
			}

			metadata := make(map[string]string)
			if len(metadataGroups) > g && len(metadataGroups[g]) > i {
				if impl, ok := metadataGroups[g][i].(*v2.DocumentMetadataImpl); ok && impl != nil {
					for _, key := range impl.Keys() {
						if value, ok := impl.GetRaw(key); ok && value != nil {
							metadata[key] = fmt.Sprintf("%v", value)
						}
					}
				}
			}

			var id string
			if len(idGroups) > g && len(idGroups[g]) > i {
				id = string(idGroups[g][i])
			}

			documents = append(documents, RetrievedDocument{
				Content:    doc.ContentString(),
				Metadata:   metadata,
				Collection: collectionName,
				Distance:   distance,
				ID:         id,
			})
		}
	}

	s.logger.Debug("Collection query results",
		"collection_name", collectionName,
		"relevant_documents", len(documents),
		"distance_threshold", s.config.ChromaDBDistance,
	)
	return documents, nil
}

// FormatDocumentsForPrompt renders the documents as a prefix for the user's message
func (r *Result) FormatDocumentsForPrompt() string {
	if r == nil || len(r.Documents) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== COURSE REFERENCE MATERIAL ===\n")
	fmt.Fprintf(&b, "The following %d document(s) from the course material may be relevant:\n\n", len(r.Documents))
	for i, doc := range r.Documents {
		fmt.Fprintf(&b, "Document %d (Collection: %s, Source: %s, Relevance: %.3f):\n", i+1, doc.Collection, doc.Source(), 1.0-doc.Distance)
		b.WriteString(doc.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("=== END REFERENCE MATERIAL ===\n\n")
	b.WriteString("Refer to the material above where it helps with the following:\n")
	return b.String()
}

// Retrieve returns formatted reference material for query, or "" when the service is not ready
func (s *Service) Retrieve(ctx context.Context, query string) (string, error) {
	if !s.IsReady() {
		return "", nil
	}
	result, err := s.QueryDocuments(ctx, query)
	if err != nil {
		return "", err
	}
	return result.FormatDocumentsForPrompt(), nil
}

func contentPreview(content string, maxLength int) string {
	if len(content) <= maxLength {
		return content
	}
	return content[:maxLength] + "..."
}
