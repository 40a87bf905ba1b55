package paper

import (
	"context"
	"sort"
	"strconv"

	"github.com/kailas-cloud/paperfeed/internal/db"
)

// memStore is an in-memory implementation of the consumer interface.
type memStore struct {
	hashes map[string]map[string]string
	zsets  map[string]map[string]float64
	lists  map[string][]string

	err error // returned by every call when set
}

func newMemStore() *memStore {
	return &memStore{
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]float64),
		lists:  make(map[string][]string),
	}
}

func (m *memStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	if m.err != nil {
		return m.err
	}
	for _, it := range items {
		h := m.hashes[it.Key]
		if h == nil {
			h = make(map[string]string)
			m.hashes[it.Key] = h
		}
		for k, v := range it.Fields {
			h[k] = v
		}
	}
	return nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		h, err := m.HGetAll(ctx, k)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func (m *memStore) HIncrBy(_ context.Context, key, field string, incr int64) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	n, _ := strconv.ParseInt(h[field], 10, 64)
	n += incr
	h[field] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memStore) ZAdd(_ context.Context, key string, members ...db.ScoredMember) error {
	if m.err != nil {
		return m.err
	}
	z := m.zsets[key]
	if z == nil {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	for _, mem := range members {
		z[mem.Member] = mem.Score
	}
	return nil
}

func (m *memStore) sortedDesc(key string) []db.ScoredMember {
	out := make([]db.ScoredMember, 0, len(m.zsets[key]))
	for mem, s := range m.zsets[key] {
		out = append(out, db.ScoredMember{Member: mem, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Member > out[j].Member
	})
	return out
}

func (m *memStore) ZRevRange(_ context.Context, key string, start, stop int64) ([]db.ScoredMember, error) {
	if m.err != nil {
		return nil, m.err
	}
	all := m.sortedDesc(key)
	if start >= int64(len(all)) {
		return nil, nil
	}
	if stop >= int64(len(all)) {
		stop = int64(len(all)) - 1
	}
	return all[start : stop+1], nil
}

func (m *memStore) ZTrimOldest(_ context.Context, key string, keep int64) error {
	if m.err != nil {
		return m.err
	}
	all := m.sortedDesc(key)
	for i := keep; i < int64(len(all)); i++ {
		delete(m.zsets[key], all[i].Member)
	}
	return nil
}

func (m *memStore) LPush(_ context.Context, key string, values ...string) error {
	if m.err != nil {
		return m.err
	}
	for _, v := range values {
		m.lists[key] = append([]string{v}, m.lists[key]...)
	}
	return nil
}

func (m *memStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	l := m.lists[key]
	if start >= int64(len(l)) {
		return nil, nil
	}
	if stop >= int64(len(l)) {
		stop = int64(len(l)) - 1
	}
	return append([]string(nil), l[start:stop+1]...), nil
}

func (m *memStore) LTrim(_ context.Context, key string, start, stop int64) error {
	if m.err != nil {
		return m.err
	}
	l := m.lists[key]
	if start >= int64(len(l)) {
		m.lists[key] = nil
		return nil
	}
	if stop >= int64(len(l)) {
		stop = int64(len(l)) - 1
	}
	m.lists[key] = l[start : stop+1]
	return nil
}
