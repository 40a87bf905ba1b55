package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/paperfeed/internal/db"
)

// ZAdd adds or updates sorted-set members.
func (s *Store) ZAdd(ctx context.Context, key string, members ...db.ScoredMember) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Zadd().Key(key).ScoreMember()
	for _, m := range members {
		cmd = cmd.ScoreMember(m.Score, m.Member)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

// ZRevRange returns members ordered from highest to lowest score.
func (s *Store) ZRevRange(ctx context.Context, key string, start, stop int64) ([]db.ScoredMember, error) {
	cmd := s.b().Zrange().Key(key).
		Min(strconv.FormatInt(start, 10)).Max(strconv.FormatInt(stop, 10)).
		Rev().Withscores().Build()
	scores, err := s.do(ctx, cmd).AsZScores()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}
	out := make([]db.ScoredMember, len(scores))
	for i, z := range scores {
		out[i] = db.ScoredMember{Member: z.Member, Score: z.Score}
	}
	return out, nil
}

// ZTrimOldest keeps only the keep highest-scored members.
func (s *Store) ZTrimOldest(ctx context.Context, key string, keep int64) error {
	cmd := s.b().Zremrangebyrank().Key(key).Start(0).Stop(-keep - 1).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZRemRange, Err: err}
	}
	return nil
}
