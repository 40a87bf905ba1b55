package expand

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/paperfeed/internal/domain"
)

// paraphrases have lengths 1..5 so the index can tell branches apart.
const fiveVariants = `{"q1":"a","q2":"bb","q3":"ccc","q4":"dddd","q5":"eeeee"}`

func newTestService(t *testing.T, c *stubCompleter, e *textEmbedder) *Service {
	t.Helper()
	idx := &lengthIndex{hits: map[float32][]string{
		1: {"p3", "p1"},
		2: {"p1", "p2"},
		3: {"p4"},
		4: {"p2", "p5", "p6"},
		5: {},
	}}
	s, err := New(c, e, idx, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestParseExpansion(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"valid keys sorted", `{"q2":"b","q1":"a","q3":"c","q5":"e","q4":"d"}`, []string{"a", "b", "c", "d", "e"}, false},
		{"not json", `here are your queries: a, b`, nil, true},
		{"array", `["a","b","c","d","e"]`, nil, true},
		{"four values", `{"q1":"a","q2":"b","q3":"c","q4":"d"}`, nil, true},
		{"six values", `{"q1":"a","q2":"b","q3":"c","q4":"d","q5":"e","q6":"f"}`, nil, true},
		{"non-string value", `{"q1":"a","q2":"b","q3":"c","q4":"d","q5":7}`, nil, true},
		{"blank value", `{"q1":"a","q2":"b","q3":"c","q4":"d","q5":"  "}`, nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseExpansion(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrMalformedExpansion) {
					t.Fatalf("expected ErrMalformedExpansion, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSearch_MergesBranchesSorted(t *testing.T) {
	c := &stubCompleter{response: fiveVariants}
	s := newTestService(t, c, &textEmbedder{})

	ids, err := s.Search(context.Background(), "graph neural networks", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"p1", "p2", "p3", "p4", "p5"}
	if !slices.Equal(ids, want) {
		t.Errorf("got %v, want %v", ids, want)
	}

	if !c.lastReq.JSONObject || c.lastReq.MaxTokens != 300 || c.lastReq.Temperature != 0.7 {
		t.Errorf("unexpected completion request %+v", c.lastReq)
	}
	if c.lastReq.Messages[1].Content != "graph neural networks" {
		t.Errorf("user message should carry the query, got %q", c.lastReq.Messages[1].Content)
	}
}

func TestSearch_MalformedExpansionFails(t *testing.T) {
	e := &textEmbedder{}
	s := newTestService(t, &stubCompleter{response: `not json`}, e)

	_, err := s.Search(context.Background(), "query", 5)
	if !errors.Is(err, domain.ErrMalformedExpansion) {
		t.Fatalf("expected ErrMalformedExpansion, got %v", err)
	}
	if e.calls != 0 {
		t.Errorf("raw query must not be searched as a fallback, got %d embed calls", e.calls)
	}
}

func TestSearch_CompletionErrorFails(t *testing.T) {
	s := newTestService(t, &stubCompleter{err: domain.ErrCompletionProviderError}, &textEmbedder{})

	_, err := s.Search(context.Background(), "query", 5)
	if !errors.Is(err, domain.ErrCompletionProviderError) {
		t.Fatalf("expected ErrCompletionProviderError, got %v", err)
	}
}

func TestSearch_FailingBranchSkipped(t *testing.T) {
	e := &textEmbedder{fail: map[string]bool{"dddd": true}}
	s := newTestService(t, &stubCompleter{response: fiveVariants}, e)

	ids, err := s.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"p1", "p2", "p3", "p4"}
	if !slices.Equal(ids, want) {
		t.Errorf("got %v, want %v", ids, want)
	}
}

func TestSearch_AllBranchesFail(t *testing.T) {
	e := &textEmbedder{fail: map[string]bool{"a": true, "bb": true, "ccc": true, "dddd": true, "eeeee": true}}
	s := newTestService(t, &stubCompleter{response: fiveVariants}, e)

	_, err := s.Search(context.Background(), "query", 3)
	if !errors.Is(err, domain.ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}

func TestExpand_CachesByQuery(t *testing.T) {
	c := &stubCompleter{response: fiveVariants}
	s := newTestService(t, c, &textEmbedder{})

	for range 3 {
		if _, err := s.Expand(context.Background(), "  transformers "); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if c.calls != 1 {
		t.Errorf("expected 1 completion call, got %d", c.calls)
	}
}

func TestExpand_MalformedNotCached(t *testing.T) {
	c := &stubCompleter{response: `{}`}
	s := newTestService(t, c, &textEmbedder{})

	_, _ = s.Expand(context.Background(), "q")
	_, _ = s.Expand(context.Background(), "q")
	if c.calls != 2 {
		t.Errorf("expected malformed responses to be retried, got %d calls", c.calls)
	}
}

func TestSearch_InvalidArguments(t *testing.T) {
	s := newTestService(t, &stubCompleter{response: fiveVariants}, &textEmbedder{})

	if _, err := s.Search(context.Background(), "q", 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("k=0: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := s.Search(context.Background(), "   ", 5); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("blank query: expected ErrInvalidArgument, got %v", err)
	}
}

func TestSearch_CancelledContext(t *testing.T) {
	s := newTestService(t, &stubCompleter{response: fiveVariants}, &textEmbedder{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Search(ctx, "q", 5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
