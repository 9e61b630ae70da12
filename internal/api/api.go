package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/errors"
	"github.com/victornm/quizjudge/internal/event"
	"github.com/victornm/quizjudge/internal/leaderboard"
	"github.com/victornm/quizjudge/internal/scoreboard"
	"github.com/victornm/quizjudge/internal/session"
)

type Config struct {
	Router     gin.IRouter
	EventBus   *event.Bus
	Catalog    Catalog
	Session    *session.Service
	Scoreboard *scoreboard.Service
	// Leaderboard is optional; without it the leaderboard route answers 503.
	Leaderboard *leaderboard.Service
	// Redis is optional; without it no notifications are published.
	Redis        Redis
	PubsubPrefix string
}

type Catalog interface {
	ListChallenges(ctx context.Context) ([]domain.Challenge, error)
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	catalog Catalog
	qss     *session.Service
	sbs     *scoreboard.Service
	ls      *leaderboard.Service

	// Serializes mutations of one session.
	locks *keyedMutex

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		catalog: c.Catalog,
		qss:     c.Session,
		sbs:     c.Scoreboard,
		ls:      c.Leaderboard,
		locks:   newKeyedMutex(),
		redis:   c.Redis,
		prefix:  c.PubsubPrefix,
	}

	// HTTP APIs
	r := c.Router.Group("/api")
	r.GET("/challenges", a.ListChallenges)

	r.POST("/sessions", a.StartSession)
	r.GET("/sessions/:id", a.GetSession)
	r.GET("/sessions/:id/question", a.CurrentQuestion)
	r.POST("/sessions/:id/evaluate", a.serialized(a.Evaluate))
	r.POST("/sessions/:id/jump", a.serialized(a.Jump))
	r.POST("/sessions/:id/next", a.serialized(a.Next))
	r.POST("/sessions/:id/previous", a.serialized(a.Previous))
	r.DELETE("/sessions/:id", a.serialized(a.Restart))

	r.GET("/scoreboard/:challenge_id", a.GetScoreboard)
	r.GET("/leaderboard/:challenge_id", a.GetLeaderboard)

	// Register event handlers
	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
		c.EventBus.Subscribe(domain.EventNameScoreRecorded, func(ctx context.Context, e event.Event) error {
			return a.PublishScoreRecorded(ctx, e.(domain.EventScoreRecorded))
		})
	}

	return a
}

func (a *API) serialized(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		unlock := a.locks.Lock(c.Param("id"))
		defer unlock()
		h(c)
	}
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.HTTPStatusCode() >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"code", e.Code.String(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
}

func badRequest(c *gin.Context, format string, args ...any) {
	abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef(format, args...)))
}

type ChallengeResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	TotalQuestions int    `json:"total_questions"`
}

func (a *API) ListChallenges(c *gin.Context) {
	chs, err := a.catalog.ListChallenges(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	resp := make([]ChallengeResponse, 0, len(chs))
	for _, ch := range chs {
		resp = append(resp, ChallengeResponse{
			ID:             ch.ID,
			Name:           ch.Name,
			Description:    ch.Description,
			TotalQuestions: len(ch.QuestionIDs),
		})
	}

	c.JSON(http.StatusOK, gin.H{"challenges": resp})
}

type limitQuery struct {
	Limit int `form:"limit" binding:"min=0"`
}

type ScoreboardEntryResponse struct {
	Username         string `json:"username"`
	Score            int    `json:"score"`
	TimeTakenSeconds int64  `json:"time_taken_seconds"`
	RecordedAt       string `json:"recorded_at"`
}

func (a *API) GetScoreboard(c *gin.Context) {
	var q limitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid limit")
		return
	}

	challengeID := c.Param("challenge_id")
	entries, err := a.sbs.Top(c.Request.Context(), scoreboard.TopRequest{
		ChallengeID: challengeID,
		Limit:       q.Limit,
	})
	if err != nil {
		abort(c, err)
		return
	}

	resp := make([]ScoreboardEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, ScoreboardEntryResponse{
			Username:         e.Username,
			Score:            e.Score,
			TimeTakenSeconds: e.ElapsedSeconds,
			RecordedAt:       e.RecordedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"challenge_id": challengeID, "entries": resp})
}

func (a *API) GetLeaderboard(c *gin.Context) {
	if a.ls == nil {
		abort(c, errors.New(errors.CodeUnavailable, errors.WithMessagef("leaderboard is not configured")))
		return
	}

	var q limitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid limit")
		return
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		ChallengeID: c.Param("challenge_id"),
		Limit:       q.Limit,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, newLeaderboard(*l))
}
