package profile

import (
	"context"

	dombatch "github.com/kailas-cloud/paperfeed/internal/domain/batch"
	"github.com/kailas-cloud/paperfeed/internal/domain/interaction"
)

type mockHistory struct {
	searches  []interaction.SearchQuery
	views     []interaction.ViewedPaper
	searchErr error
	viewErr   error
}

func (m *mockHistory) SearchHistory(_ context.Context, _ string, limit int) ([]interaction.SearchQuery, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searches[:min(limit, len(m.searches))], nil
}

func (m *mockHistory) ViewedPapers(_ context.Context, _ string, limit int) ([]interaction.ViewedPaper, error) {
	if m.viewErr != nil {
		return nil, m.viewErr
	}
	return m.views[:min(limit, len(m.views))], nil
}

// mapEmbedder returns fixed vectors per text; texts not in the map fail (nil).
type mapEmbedder struct {
	vectors map[string][]float32
	seen    []string
}

func (m *mapEmbedder) EmbedAll(_ context.Context, texts []string) ([][]float32, dombatch.Stats) {
	m.seen = append(m.seen, texts...)
	out := make([][]float32, len(texts))
	var st dombatch.Stats
	for i, t := range texts {
		if v, ok := m.vectors[t]; ok {
			out[i] = v
			st.Succeeded++
		} else {
			st.Failed++
		}
	}
	return out, st
}
