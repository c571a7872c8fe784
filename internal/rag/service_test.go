package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kevensen/gollama-clippy/internal/configuration"
)

func TestService_IsReady(t *testing.T) {
	tests := []struct {
		name                string
		ragEnabled          bool
		connected           bool
		selectedCollections []string
		expected            bool
	}{
		{
			name:                "ready - all conditions met",
			ragEnabled:          true,
			connected:           true,
			selectedCollections: []string{"lectures", "labs"},
			expected:            true,
		},
		{
			name:                "not ready - RAG disabled",
			ragEnabled:          false,
			connected:           true,
			selectedCollections: []string{"lectures"},
			expected:            false,
		},
		{
			name:                "not ready - not connected",
			ragEnabled:          true,
			connected:           false,
			selectedCollections: []string{"lectures"},
			expected:            false,
		},
		{
			name:                "not ready - no collections selected",
			ragEnabled:          true,
			connected:           true,
			selectedCollections: []string{},
			expected:            false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(&configuration.Config{RAGEnabled: tt.ragEnabled})
			service.connected = tt.connected
			service.selectedCollections = tt.selectedCollections

			if got := service.IsReady(); got != tt.expected {
				t.Errorf("IsReady() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestNewService(t *testing.T) {
	config := configuration.DefaultConfig()
	service := NewService(config)

	if service.config != config {
		t.Error("Service config should reference the provided config")
	}
	if service.connected {
		t.Error("New service should not be connected initially")
	}
	if len(service.GetSelectedCollections()) != 0 {
		t.Error("selectedCollections should be empty initially")
	}
}

func TestService_UpdateConfig(t *testing.T) {
	service := NewService(&configuration.Config{ChromaDBURL: "http://localhost:8000"})

	newConfig := &configuration.Config{
		RAGEnabled:  true,
		ChromaDBURL: "http://new-chromadb:9000",
	}
	service.UpdateConfig(newConfig)

	if service.config != newConfig {
		t.Error("Service should reference the new config after UpdateConfig")
	}
}

func TestService_UpdateSelectedCollections(t *testing.T) {
	service := NewService(&configuration.Config{RAGEnabled: true})

	service.UpdateSelectedCollections(context.Background(), map[string]bool{
		"lectures": true,
		"labs":     false,
		"readings": true,
	})
	if diff := cmp.Diff([]string{"lectures", "readings"}, service.GetSelectedCollections()); diff != "" {
		t.Errorf("selected collections mismatch (-want +got):\n%s", diff)
	}

	// Empty map while disconnected clears the selection
	service.UpdateSelectedCollections(context.Background(), map[string]bool{})
	if got := service.GetSelectedCollections(); len(got) != 0 {
		t.Errorf("expected no selection, got %v", got)
	}
}

func TestSelectCollections(t *testing.T) {
	tests := []struct {
		name      string
		selected  map[string]bool
		available []string
		want      []string
	}{
		{
			name:      "explicit selection wins",
			selected:  map[string]bool{"b": true, "a": true},
			available: []string{"a", "b", "c"},
			want:      []string{"a", "b"},
		},
		{
			name:      "nothing selected takes all",
			selected:  nil,
			available: []string{"c", "a"},
			want:      []string{"a", "c"},
		},
		{
			name:      "all deselected takes all",
			selected:  map[string]bool{"a": false},
			available: []string{"b"},
			want:      []string{"b"},
		},
		{
			name: "nothing at all",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, selectCollections(tt.selected, tt.available)); diff != "" {
				t.Errorf("selectCollections mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRankDocuments(t *testing.T) {
	docs := []RetrievedDocument{
		{ID: "far", Distance: 0.9},
		{ID: "near", Distance: 0.1},
		{ID: "mid", Distance: 0.5},
	}

	ranked := rankDocuments(docs, 2)

	var ids []string
	for _, d := range ranked {
		ids = append(ids, d.ID)
	}
	if diff := cmp.Diff([]string{"near", "mid"}, ids); diff != "" {
		t.Errorf("rank mismatch (-want +got):\n%s", diff)
	}
	if docs[0].ID != "far" {
		t.Error("rankDocuments should not reorder its input")
	}
	if got := rankDocuments(docs, 0); len(got) != 3 {
		t.Errorf("limit 0 should keep everything, got %d", len(got))
	}
}

func TestResult_FormatDocumentsForPrompt(t *testing.T) {
	var empty *Result
	if got := empty.FormatDocumentsForPrompt(); got != "" {
		t.Errorf("nil result should format to empty, got %q", got)
	}
	if got := (&Result{}).FormatDocumentsForPrompt(); got != "" {
		t.Errorf("empty result should format to empty, got %q", got)
	}

	result := &Result{
		Query: "what is recursion",
		Documents: []RetrievedDocument{
			{
				Content:    "Recursion is when a function calls itself.",
				Collection: "lectures",
				Distance:   0.25,
				ID:         "doc-1",
				Metadata:   map[string]string{"source": "week3.md"},
			},
			{Content: "Base cases stop recursion.", Collection: "labs", Distance: 0.5, ID: "doc-2"},
		},
	}

	got := result.FormatDocumentsForPrompt()
	for _, want := range []string{
		"=== COURSE REFERENCE MATERIAL ===",
		"The following 2 document(s)",
		"Document 1 (Collection: lectures, Source: week3.md, Relevance: 0.750):",
		"Document 2 (Collection: labs, Source: doc-2, Relevance: 0.500):",
		"Recursion is when a function calls itself.",
		"=== END REFERENCE MATERIAL ===",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted prompt missing %q:\n%s", want, got)
		}
	}
}

func TestService_RetrieveNotReady(t *testing.T) {
	service := NewService(configuration.DefaultConfig())

	text, err := service.Retrieve(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if text != "" {
		t.Errorf("expected no context from an unready service, got %q", text)
	}
}

func TestService_QueryDocumentsErrors(t *testing.T) {
	service := NewService(&configuration.Config{RAGEnabled: true})
	if _, err := service.QueryDocuments(context.Background(), "q"); err == nil {
		t.Error("expected error when not connected")
	}

	service.connected = true
	if _, err := service.QueryDocuments(context.Background(), "q"); err == nil {
		t.Error("expected error when no collections are selected")
	}

	service.selectedCollections = []string{"lectures"}
	service.config.RAGEnabled = false
	if _, err := service.QueryDocuments(context.Background(), "q"); err == nil {
		t.Error("expected error when RAG is disabled")
	}
}

func TestContentPreview(t *testing.T) {
	if got := contentPreview("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := contentPreview("abcdefghij", 4); got != "abcd..." {
		t.Errorf("got %q", got)
	}
}
