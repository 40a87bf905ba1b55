package recommend

import (
	"context"

	domcand "github.com/kailas-cloud/paperfeed/internal/domain/candidate"
	"github.com/kailas-cloud/paperfeed/internal/domain/interaction"
	domprofile "github.com/kailas-cloud/paperfeed/internal/domain/profile"
)

type mockProfiles struct {
	profile   domprofile.Profile
	gotSearch int
	gotViews  int
}

func (m *mockProfiles) Build(_ context.Context, _ string, searchLimit, viewLimit int) domprofile.Profile {
	m.gotSearch, m.gotViews = searchLimit, viewLimit
	return m.profile
}

type mockCandidates struct {
	items     []domcand.Candidate
	called    bool
	gotLimit  int
	gotOffset int
}

func (m *mockCandidates) Generate(_ context.Context, _ []float32, limit, offset int) *domcand.Pool {
	m.called = true
	m.gotLimit, m.gotOffset = limit, offset
	pool := domcand.NewPool()
	for _, c := range m.items {
		pool.Add(c)
	}
	return pool
}

type mockViews struct {
	views []interaction.PaperView
}

func (m *mockViews) UserPaperViews(_ context.Context, _ string, _, _ int) ([]interaction.PaperView, error) {
	return m.views, nil
}
