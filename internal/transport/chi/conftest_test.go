package chi

import (
	"context"
	"time"

	"github.com/kailas-cloud/paperfeed/internal/domain"
	"github.com/kailas-cloud/paperfeed/internal/domain/interaction"
	"github.com/kailas-cloud/paperfeed/internal/domain/paper"
	healthuc "github.com/kailas-cloud/paperfeed/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/paperfeed/internal/usecase/ingest"
	recommenduc "github.com/kailas-cloud/paperfeed/internal/usecase/recommend"
)

type mockRecommender struct {
	result             recommenduc.Result
	err                error
	gotUser            string
	gotLimit, gotOffst int
}

func (m *mockRecommender) Recommend(_ context.Context, userID string, limit, offset int) (recommenduc.Result, error) {
	m.gotUser, m.gotLimit, m.gotOffst = userID, limit, offset
	return m.result, m.err
}

type mockSearcher struct {
	ids    []string
	err    error
	tokens int
	gotK   int
	gotQ   string
}

func (m *mockSearcher) Search(ctx context.Context, query string, k int) ([]string, error) {
	m.gotQ, m.gotK = query, k
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(m.tokens)
	}
	return m.ids, m.err
}

type mockIndexer struct {
	report    ingestuc.Report
	err       error
	papers    []paper.Paper
	ids       []string
	recent    int
	recentSet bool
}

func (m *mockIndexer) Ingest(_ context.Context, papers []paper.Paper) (ingestuc.Report, error) {
	m.papers = papers
	return m.report, m.err
}

func (m *mockIndexer) IndexByIDs(_ context.Context, ids []string) (ingestuc.Report, error) {
	m.ids = ids
	return m.report, m.err
}

func (m *mockIndexer) IndexRecent(_ context.Context, limit int) (ingestuc.Report, error) {
	m.recent, m.recentSet = limit, true
	return m.report, m.err
}

type mockHistory struct {
	papers   map[string]paper.Paper
	searches []interaction.SearchQuery
	views    []string
	viewAt   time.Time
	err      error
}

func (m *mockHistory) RecordSearch(_ context.Context, _ string, q interaction.SearchQuery) error {
	if m.err != nil {
		return m.err
	}
	m.searches = append(m.searches, q)
	return nil
}

func (m *mockHistory) RecordView(_ context.Context, _, paperID string, at time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.views = append(m.views, paperID)
	m.viewAt = at
	return nil
}

func (m *mockHistory) GetPapers(_ context.Context, ids []string) ([]paper.Paper, error) {
	var out []paper.Paper
	for _, id := range ids {
		if p, ok := m.papers[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }
