package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/errors"
	"github.com/victornm/quizjudge/internal/event"
)

const (
	minUsernameLen = 2

	MessageAlreadyCorrect = "You have already answered this question correctly."
)

type (
	Catalog interface {
		GetQuestion(ctx context.Context, id int64) (domain.Question, error)
		GetChallenge(ctx context.Context, id string) (domain.Challenge, error)
	}

	Dispatcher interface {
		Dispatch(ctx context.Context, q domain.Question, submission string) (domain.Verdict, error)
	}
)

type Config struct {
	Store      Store
	Catalog    Catalog
	Dispatcher Dispatcher
	EventBus   *event.Bus
	Now        func() time.Time
	NewID      func() (string, error)
}

// Service runs learners through challenges. Mutations of one session must not run
// concurrently; different sessions are independent.
type Service struct {
	store   Store
	catalog Catalog
	judge   Dispatcher
	eb      *event.Bus
	now     func() time.Time
	newID   func() (string, error)
}

func NewService(c Config) *Service {
	s := &Service{
		store:   c.Store,
		catalog: c.Catalog,
		judge:   c.Dispatcher,
		eb:      c.EventBus,
		now:     c.Now,
		newID:   c.NewID,
	}

	if s.now == nil {
		s.now = time.Now
	}

	if s.newID == nil {
		s.newID = func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		}
	}

	return s
}

type StartRequest struct {
	Username    string
	ChallengeID string
}

// Start begins a new attempt over the challenge's questions as they are now.
func (s *Service) Start(ctx context.Context, req StartRequest) (*domain.Attempt, error) {
	username := strings.TrimSpace(req.Username)
	if utf8.RuneCountInString(username) < minUsernameLen {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("username must be at least %d characters", minUsernameLen))
	}

	ch, err := s.catalog.GetChallenge(ctx, req.ChallengeID)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown challenge: %s", req.ChallengeID))
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}

	if len(ch.QuestionIDs) == 0 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("challenge %s has no questions", ch.ID))
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	a := domain.NewAttempt(id, username, ch.ID, ch.QuestionIDs, s.now())
	if err := s.store.Save(ctx, a); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "session: started",
		"session_id", a.ID,
		"username", a.Username,
		"challenge_id", a.ChallengeID,
	)

	return &a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Attempt, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type (
	// QuestionView is a question as shown to the learner: no reference query, tests or answer.
	QuestionView struct {
		ID               int64    `json:"id"`
		Title            string   `json:"title"`
		Level            string   `json:"level"`
		Language         string   `json:"language"`
		Description      string   `json:"description"`
		Remarks          string   `json:"remarks,omitempty"`
		Points           int      `json:"points"`
		TimeLimitSeconds int64    `json:"time_limit_seconds"`
		StarterCode      string   `json:"starter_code,omitempty"`
		Schema           string   `json:"schema,omitempty"`
		StarterQuery     string   `json:"starter_query,omitempty"`
		Options          []string `json:"options,omitempty"`
	}

	View struct {
		SessionID      string            `json:"session_id"`
		ChallengeID    string            `json:"challenge_id"`
		ChallengeName  string            `json:"challenge_name"`
		Completed      bool              `json:"test_completed"`
		Question       *QuestionView     `json:"question,omitempty"`
		CurrentNum     int               `json:"current_q_num,omitempty"`
		Total          int               `json:"total_questions"`
		Score          int               `json:"user_score"`
		ElapsedSeconds int64             `json:"total_time,omitempty"`
		Nav            []domain.NavEntry `json:"qnp_data"`
	}
)

// Current returns the question the learner is on, or the completion summary.
func (s *Service) Current(ctx context.Context, id string) (*View, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	v := &View{
		SessionID:   a.ID,
		ChallengeID: a.ChallengeID,
		Completed:   a.Completed,
		Total:       a.Total(),
		Score:       a.Score,
		Nav:         a.NavStatus(),
	}

	if ch, err := s.catalog.GetChallenge(ctx, a.ChallengeID); err == nil {
		v.ChallengeName = ch.Name
	} else {
		v.ChallengeName = "Unknown Challenge"
	}

	if a.Completed {
		v.ElapsedSeconds = a.ElapsedSeconds()
		return v, nil
	}

	qid, _ := a.CurrentQuestionID()
	q, err := s.catalog.GetQuestion(ctx, qid)
	if err != nil {
		return nil, fmt.Errorf("get question %d: %w", qid, err)
	}

	v.Question = newQuestionView(q)
	v.CurrentNum = a.Index + 1
	return v, nil
}

func newQuestionView(q domain.Question) *QuestionView {
	v := &QuestionView{
		ID:               q.ID,
		Title:            q.Title,
		Level:            q.Level,
		Language:         q.Language(),
		Description:      q.Description,
		Remarks:          q.Remarks,
		Points:           q.Points,
		TimeLimitSeconds: int64(q.TimeLimit / time.Second),
	}

	switch o := q.Oracle.(type) {
	case domain.DeclarativeOracle:
		v.Schema = o.Schema
		v.StarterQuery = o.StarterQuery
	case domain.InterpretedOracle:
		v.StarterCode = o.StarterCode
	case domain.CompiledOracle:
		v.StarterCode = o.StarterCode
	case domain.ChoiceOracle:
		v.Options = o.Options
	}

	return v
}

type (
	SubmitRequest struct {
		SessionID  string
		QuestionID int64
		Answer     string
	}

	SubmitResponse struct {
		Verdict      domain.Verdict
		Message      string
		Score        int
		ScoreChanged bool
		Nav          []domain.NavEntry
	}
)

// Submit judges an answer to one of the session's questions and records the outcome.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	a, err := s.mutable(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if !a.Contains(req.QuestionID) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("question %d is not part of this session", req.QuestionID))
	}

	if prev := a.Answer(req.QuestionID); prev.Status == domain.AnswerCorrect {
		return &SubmitResponse{
			Verdict: domain.Verdict{
				Status:     domain.VerdictAlreadyCorrect,
				Diagnostic: prev.Detail,
				Passed:     true,
			},
			Message: MessageAlreadyCorrect,
			Score:   a.Score,
			Nav:     a.NavStatus(),
		}, nil
	}

	q, err := s.catalog.GetQuestion(ctx, req.QuestionID)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("question %d is no longer available", req.QuestionID))
	}
	if err != nil {
		return nil, fmt.Errorf("get question %d: %w", req.QuestionID, err)
	}

	v, err := s.judge.Dispatch(ctx, q, req.Answer)
	if err != nil {
		return nil, err
	}

	b, scored := a.ApplyVerdict(q.ID, q.Points, v)
	if err := s.store.Save(ctx, b); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "session: submission judged",
		"session_id", a.ID,
		"question_id", q.ID,
		"kind", q.Kind(),
		"status", v.Status,
		"score", b.Score,
	)

	return &SubmitResponse{
		Verdict:      v,
		Score:        b.Score,
		ScoreChanged: scored,
		Nav:          b.NavStatus(),
	}, nil
}

// NavResponse is the state after a navigation request. Outcome.OK is false when the move was
// refused, in which case the attempt is unchanged.
type NavResponse struct {
	Outcome        domain.NavOutcome
	Index          int
	Total          int
	Score          int
	ElapsedSeconds int64
	ChallengeID    string
	Nav            []domain.NavEntry
}

type JumpRequest struct {
	SessionID string
	Index     int
}

func (s *Service) Jump(ctx context.Context, req JumpRequest) (*NavResponse, error) {
	return s.navigate(ctx, req.SessionID, func(a domain.Attempt, now time.Time) (domain.Attempt, domain.NavOutcome) {
		return a.Navigate(req.Index, now)
	})
}

// Next moves forward. Moving past the last question completes the session and publishes
// the completion record once.
func (s *Service) Next(ctx context.Context, sessionID string) (*NavResponse, error) {
	return s.navigate(ctx, sessionID, domain.Attempt.Advance)
}

func (s *Service) Previous(ctx context.Context, sessionID string) (*NavResponse, error) {
	return s.navigate(ctx, sessionID, domain.Attempt.Retreat)
}

func (s *Service) navigate(ctx context.Context, id string, move func(domain.Attempt, time.Time) (domain.Attempt, domain.NavOutcome)) (*NavResponse, error) {
	a, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}

	b, out := move(a, s.now())
	if out.OK {
		if err := s.store.Save(ctx, b); err != nil {
			return nil, err
		}
	}

	if out.Completed {
		entry := b.ScoreboardEntry()
		slog.InfoContext(ctx, "session: completed",
			"session_id", b.ID,
			"username", b.Username,
			"challenge_id", b.ChallengeID,
			"score", entry.Score,
			"elapsed_seconds", entry.ElapsedSeconds,
		)

		if s.eb != nil {
			s.eb.Publish(ctx, domain.EventSessionCompleted{SessionID: b.ID, Entry: entry})
		}
	}

	return &NavResponse{
		Outcome:        out,
		Index:          b.Index,
		Total:          b.Total(),
		Score:          b.Score,
		ElapsedSeconds: b.ElapsedSeconds(),
		ChallengeID:    b.ChallengeID,
		Nav:            b.NavStatus(),
	}, nil
}

// Restart drops the session. Restarting an unknown session is not an error.
func (s *Service) Restart(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) mutable(ctx context.Context, id string) (domain.Attempt, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Attempt{}, err
	}

	if a.Completed {
		return domain.Attempt{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("%s: session=%s", domain.ReasonCompleted, id))
	}

	return a, nil
}
