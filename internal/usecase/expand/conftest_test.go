package expand

import (
	"context"
	"errors"
	"sync"

	"github.com/kailas-cloud/paperfeed/internal/domain"
)

type stubCompleter struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	lastReq  domain.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	return s.response, s.err
}

// textEmbedder encodes the text into a one-element vector key; texts listed in fail return an error.
type textEmbedder struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls int
}

func (e *textEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.fail[text] {
		return domain.EmbeddingResult{}, errors.New("provider down")
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}}, nil
}

// lengthIndex returns a fixed hit list per vector value (text length).
type lengthIndex struct {
	hits map[float32][]string
}

func (x *lengthIndex) Search(vector []float32, k int) ([]domain.VectorHit, error) {
	ids := x.hits[vector[0]]
	var out []domain.VectorHit
	for i, id := range ids {
		if i == k {
			break
		}
		out = append(out, domain.VectorHit{ID: id, Similarity: 1})
	}
	return out, nil
}
