package profile

import (
	"context"

	dombatch "github.com/kailas-cloud/paperfeed/internal/domain/batch"
	"github.com/kailas-cloud/paperfeed/internal/domain/interaction"
)

// HistoryReader reads a user's interaction history.
type HistoryReader interface {
	SearchHistory(ctx context.Context, userID string, limit int) ([]interaction.SearchQuery, error)
	ViewedPapers(ctx context.Context, userID string, limit int) ([]interaction.ViewedPaper, error)
}

// TextEmbedder embeds texts in batches; vectors of failed batches are nil.
type TextEmbedder interface {
	EmbedAll(ctx context.Context, texts []string) ([][]float32, dombatch.Stats)
}
