package expand

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/paperfeed/internal/domain"
)

// Variants is the number of paraphrases requested per query.
const Variants = 5

const systemPrompt = `You rewrite academic search queries.
Return a JSON object with exactly 5 keys "q1" to "q5". Each value is a distinct paraphrase of the user's query that keeps its meaning and uses vocabulary a paper abstract would use.
Return only the JSON object.`

// parseExpansion reads exactly Variants non-empty string values from a JSON
// object, in key order.
func parseExpansion(raw string) ([]string, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err != nil {
		return nil, fmt.Errorf("decode: %w: %w", domain.ErrMalformedExpansion, err)
	}
	if len(obj) != Variants {
		return nil, fmt.Errorf("got %d values, want %d: %w", len(obj), Variants, domain.ErrMalformedExpansion)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, Variants)
	for _, k := range keys {
		s, ok := obj[k].(string)
		if !ok {
			return nil, fmt.Errorf("value %q is %T, not a string: %w", k, obj[k], domain.ErrMalformedExpansion)
		}
		if s = strings.TrimSpace(s); s == "" {
			return nil, fmt.Errorf("value %q is empty: %w", k, domain.ErrMalformedExpansion)
		}
		out = append(out, s)
	}
	return out, nil
}
