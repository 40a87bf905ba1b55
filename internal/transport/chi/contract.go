package chi

import (
	"context"
	"time"

	"github.com/kailas-cloud/paperfeed/internal/domain/interaction"
	"github.com/kailas-cloud/paperfeed/internal/domain/paper"
	healthuc "github.com/kailas-cloud/paperfeed/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/paperfeed/internal/usecase/ingest"
	recommenduc "github.com/kailas-cloud/paperfeed/internal/usecase/recommend"
)

// Recommender produces recommendation pages.
type Recommender interface {
	Recommend(ctx context.Context, userID string, limit, offset int) (recommenduc.Result, error)
}

// Searcher answers free-text searches with paper ids.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// Indexer stores and indexes papers.
type Indexer interface {
	Ingest(ctx context.Context, papers []paper.Paper) (ingestuc.Report, error)
	IndexByIDs(ctx context.Context, ids []string) (ingestuc.Report, error)
	IndexRecent(ctx context.Context, limit int) (ingestuc.Report, error)
}

// History records user interactions and reads papers back for search results.
type History interface {
	RecordSearch(ctx context.Context, userID string, q interaction.SearchQuery) error
	RecordView(ctx context.Context, userID, paperID string, at time.Time) error
	GetPapers(ctx context.Context, ids []string) ([]paper.Paper, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
