package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/errors"
	"github.com/victornm/quizjudge/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond

	// Rank = score * rankBase + (maxElapsed - elapsed), so a higher score always wins and a
	// faster run breaks ties.
	maxElapsed = 999_999
)

var rankBase = decimal.NewFromInt(maxElapsed + 1)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreRecorded, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreRecorded))
	})

	return s
}

type GetLeaderboardRequest struct {
	ChallengeID string
	// Limit of 0 returns every user.
	Limit int
}

// GetLeaderboard returns each user's best run in a challenge, best first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	stop := int64(-1)
	if req.Limit > 0 {
		stop = int64(req.Limit) - 1
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.ChallengeID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: challenge=%s", req.ChallengeID))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		score, elapsed := decodeRank(z.Score)
		entries = append(entries, domain.LeaderboardEntry{
			Username:       z.Member.(string),
			Score:          score,
			ElapsedSeconds: elapsed,
		})
	}

	return &domain.Leaderboard{
		ChallengeID: req.ChallengeID,
		Entries:     entries,
	}, nil
}

// UpdateLeaderboard keeps the user's best run: a worse run never replaces a better one.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreRecorded) error {
	en := e.Entry

	// TODO: retry on error
	if err := s.redis.ZAddArgs(ctx, s.getLeaderboardKey(en.ChallengeID), redis.ZAddArgs{
		GT: true,
		Members: []redis.Z{{
			Score:  encodeRank(en.Score, en.ElapsedSeconds),
			Member: en.Username,
		}},
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, en)
}

// schedulePublishLeaderboard publishes leaderboard changes at most once per interval per
// challenge, since many runs can finish in a short time.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, en domain.ScoreboardEntry) error {
	// Guards against several instances publishing the same change; not a strict lock.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(en.ChallengeID), en.RecordedAt.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, en)
}

func (s *Service) publishLeaderboard(ctx context.Context, en domain.ScoreboardEntry) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		ChallengeID: en.ChallengeID,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: challenge=%s: %w", en.ChallengeID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return s.redis.Set(ctx, s.getLeaderboardTimeKey(en.ChallengeID), en.RecordedAt.UnixMilli(), publishInterval).Err()
}

func encodeRank(score int, elapsed int64) float64 {
	elapsed = min(max(elapsed, 0), maxElapsed)
	return decimal.NewFromInt(int64(score)).
		Mul(rankBase).
		Add(decimal.NewFromInt(maxElapsed - elapsed)).
		InexactFloat64()
}

func decodeRank(rank float64) (int, int64) {
	score, rest := decimal.NewFromFloat(rank).Round(0).QuoRem(rankBase, 0)
	if rest.IsNegative() {
		score = score.Sub(decimal.NewFromInt(1))
		rest = rest.Add(rankBase)
	}
	return int(score.IntPart()), maxElapsed - rest.IntPart()
}

func (s *Service) getLeaderboardKey(challenge string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, challenge)
}

func (s *Service) getLeaderboardTimeKey(challenge string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, challenge)
}
