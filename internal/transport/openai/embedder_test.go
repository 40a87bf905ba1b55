package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperfeed/internal/domain"
	"github.com/kailas-cloud/paperfeed/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// embeddingServer answers /embeddings with items and reports tokens as usage.
// The decoded request body is passed to check when non-nil.
func embeddingServer(t *testing.T, check func(body map[string]any), tokens int, items ...embeddingItem) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if check != nil {
			check(body)
		}

		for i := range items {
			items[i].Object = "embedding"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "test-model",
			"data":   items,
			"usage":  map[string]int{"prompt_tokens": tokens, "total_tokens": tokens},
		})
	}))
}

func testEmbedder(url string, dims int) *Embedder {
	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "test-model",
		Dimensions: dims,
		Provider:   "test",
		Logger:     zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	want := []float32{0.1, 0.2, 0.3, 0.4}
	server := embeddingServer(t, func(body map[string]any) {
		if body["dimensions"] != float64(4) {
			t.Errorf("expected dimensions 4 in request, got %v", body["dimensions"])
		}
		if body["model"] != "test-model" {
			t.Errorf("expected model test-model, got %v", body["model"])
		}
	}, 42, embeddingItem{Embedding: want})
	defer server.Close()

	res, err := testEmbedder(server.URL, 4).Embed(context.Background(), "graph neural networks")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(res.Embedding) != len(want) {
		t.Fatalf("expected %d dimensions, got %d", len(want), len(res.Embedding))
	}
	for i, v := range res.Embedding {
		if v != want[i] {
			t.Errorf("vec[%d] = %f, want %f", i, v, want[i])
		}
	}
	if res.PromptTokens != 42 || res.TotalTokens != 42 {
		t.Errorf("usage = %d/%d, want 42/42", res.PromptTokens, res.TotalTokens)
	}
}

func TestEmbedder_Embed_OmitsZeroDimensions(t *testing.T) {
	server := embeddingServer(t, func(body map[string]any) {
		if _, ok := body["dimensions"]; ok {
			t.Errorf("dimensions should be omitted, got %v", body["dimensions"])
		}
	}, 1, embeddingItem{Embedding: []float32{1}})
	defer server.Close()

	if _, err := testEmbedder(server.URL, 0).Embed(context.Background(), "x"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
}

func TestEmbedder_BatchEmbed_RestoresInputOrder(t *testing.T) {
	server := embeddingServer(t, func(body map[string]any) {
		input, _ := body["input"].([]any)
		if len(input) != 2 {
			t.Errorf("expected 2 inputs in one request, got %d", len(input))
		}
	}, 20,
		embeddingItem{Embedding: []float32{0.3, 0.4}, Index: 1},
		embeddingItem{Embedding: []float32{0.1, 0.2}, Index: 0},
	)
	defer server.Close()

	res, err := testEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	if res.Embeddings[0][0] != 0.1 || res.Embeddings[1][0] != 0.3 {
		t.Errorf("embeddings not in input order: %v", res.Embeddings)
	}
	if res.TotalTokens != 20 {
		t.Errorf("TotalTokens = %d, want 20", res.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_Empty(t *testing.T) {
	res, err := testEmbedder("http://unused", 0).BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil {
		t.Errorf("expected nil embeddings for empty input, got %v", res.Embeddings)
	}
}

func TestEmbedder_BatchEmbed_BadResponses(t *testing.T) {
	tests := []struct {
		name  string
		items []embeddingItem
	}{
		{"count mismatch", []embeddingItem{{Embedding: []float32{0.1}}}},
		{"duplicate index", []embeddingItem{{Embedding: []float32{0.1}}, {Embedding: []float32{0.2}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := embeddingServer(t, nil, 5, tt.items...)
			defer server.Close()

			_, err := testEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"a", "b"})
			if !errors.Is(err, domain.ErrEmbeddingProviderError) {
				t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
			}
		})
	}
}

func TestEmbedder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	}))
	defer server.Close()

	_, err := testEmbedder(server.URL, 0).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})
	}))
	defer server.Close()

	if err := testEmbedder(server.URL, 0).HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmbedder_HealthCheck_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if err := testEmbedder(server.URL, 0).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error from unavailable provider")
	}
}
