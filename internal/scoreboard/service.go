package scoreboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/errors"
	"github.com/victornm/quizjudge/internal/event"
)

const (
	DefaultLimit = 20
	maxLimit     = 100
)

type Config struct {
	EventBus *event.Bus
	Store    Store
}

type Service struct {
	eb    *event.Bus
	store Store
}

// NewService records every completed session.
func NewService(c Config) *Service {
	s := &Service{
		eb:    c.EventBus,
		store: c.Store,
	}

	s.eb.Subscribe(domain.EventNameSessionCompleted, func(ctx context.Context, e event.Event) error {
		return s.Record(ctx, e.(domain.EventSessionCompleted).Entry)
	})

	return s
}

// Record appends a completion record and announces it.
func (s *Service) Record(ctx context.Context, e domain.ScoreboardEntry) error {
	if strings.TrimSpace(e.Username) == "" || e.ChallengeID == "" {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("incomplete scoreboard entry: %+v", e))
	}

	if err := s.store.Record(ctx, e); err != nil {
		return fmt.Errorf("record score: user=%s challenge=%s: %w", e.Username, e.ChallengeID, err)
	}

	s.eb.Publish(ctx, domain.EventScoreRecorded{Entry: e})
	return nil
}

type TopRequest struct {
	ChallengeID string
	Limit       int
}

// Top lists the best entries of a challenge: highest score first, then fastest.
func (s *Service) Top(ctx context.Context, req TopRequest) ([]domain.ScoreboardEntry, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, maxLimit)

	return s.store.Top(ctx, req.ChallengeID, limit)
}
