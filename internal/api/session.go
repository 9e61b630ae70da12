package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/session"
)

type StartSessionRequest struct {
	Username    string `json:"username" binding:"required"`
	ChallengeID string `json:"challenge_id" binding:"required"`
}

func (a *API) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and challenge_id are required")
		return
	}

	ctx := c.Request.Context()
	ss, err := a.qss.Start(ctx, session.StartRequest{
		Username:    req.Username,
		ChallengeID: req.ChallengeID,
	})
	if err != nil {
		abort(c, err)
		return
	}

	v, err := a.qss.Current(ctx, ss.ID)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, v)
}

type SessionResponse struct {
	SessionID      string            `json:"session_id"`
	Username       string            `json:"username"`
	ChallengeID    string            `json:"challenge_id"`
	CurrentIdx     int               `json:"current_idx"`
	Total          int               `json:"total_questions"`
	Score          int               `json:"user_score"`
	Completed      bool              `json:"test_completed"`
	ElapsedSeconds int64             `json:"total_time"`
	StartedAt      string            `json:"started_at"`
	Nav            []domain.NavEntry `json:"qnp_data"`
}

func (a *API) GetSession(c *gin.Context) {
	ss, err := a.qss.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		SessionID:      ss.ID,
		Username:       ss.Username,
		ChallengeID:    ss.ChallengeID,
		CurrentIdx:     ss.Index,
		Total:          ss.Total(),
		Score:          ss.Score,
		Completed:      ss.Completed,
		ElapsedSeconds: ss.ElapsedSeconds(),
		StartedAt:      ss.StartedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Nav:            ss.NavStatus(),
	})
}

func (a *API) CurrentQuestion(c *gin.Context) {
	v, err := a.qss.Current(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

type EvaluateRequest struct {
	QuestionID int64   `json:"question_id" binding:"required"`
	Code       *string `json:"code" binding:"required"`
}

type EvaluateResponse struct {
	Status         domain.VerdictStatus `json:"status"`
	Output         string               `json:"output"`
	PassedAllTests bool                 `json:"passed_all_tests"`
	Cases          []domain.CaseResult  `json:"cases,omitempty"`
	Warnings       []string             `json:"warnings,omitempty"`
	Message        string               `json:"message,omitempty"`
	NewScore       int                  `json:"new_score"`
	ScoreChanged   bool                 `json:"score_changed"`
	Nav            []domain.NavEntry    `json:"qnp_data"`
}

func (a *API) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing code/answer or question_id")
		return
	}

	resp, err := a.qss.Submit(c.Request.Context(), session.SubmitRequest{
		SessionID:  c.Param("id"),
		QuestionID: req.QuestionID,
		Answer:     *req.Code,
	})
	if err != nil {
		abort(c, err)
		return
	}

	v := resp.Verdict
	c.JSON(http.StatusOK, EvaluateResponse{
		Status:         v.Status,
		Output:         v.Diagnostic,
		PassedAllTests: v.Passed,
		Cases:          v.Cases,
		Warnings:       v.Warnings,
		Message:        resp.Message,
		NewScore:       resp.Score,
		ScoreChanged:   resp.ScoreChanged,
		Nav:            resp.Nav,
	})
}

type JumpRequest struct {
	Index *int `json:"index" binding:"required"`
}

func (a *API) Jump(c *gin.Context) {
	var req JumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "index is required")
		return
	}

	resp, err := a.qss.Jump(c.Request.Context(), session.JumpRequest{
		SessionID: c.Param("id"),
		Index:     *req.Index,
	})
	if err != nil {
		abort(c, err)
		return
	}

	if !resp.Outcome.OK {
		status := http.StatusOK
		if resp.Outcome.Reason == domain.ReasonInvalidIndex {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"jumped": false, "message": resp.Outcome.Reason})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jumped": true, "new_idx": resp.Index, "qnp_data": resp.Nav})
}

func (a *API) Next(c *gin.Context) {
	resp, err := a.qss.Next(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}

	renderNav(c, resp)
}

func (a *API) Previous(c *gin.Context) {
	resp, err := a.qss.Previous(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}

	renderNav(c, resp)
}

func renderNav(c *gin.Context, resp *session.NavResponse) {
	switch {
	case !resp.Outcome.OK:
		c.JSON(http.StatusOK, gin.H{"navigated": false, "message": resp.Outcome.Reason})

	case resp.Outcome.Completed:
		c.JSON(http.StatusOK, gin.H{
			"navigated":      true,
			"test_completed": true,
			"score":          resp.Score,
			"total_time":     resp.ElapsedSeconds,
			"challenge_id":   resp.ChallengeID,
			"qnp_data":       resp.Nav,
		})

	default:
		c.JSON(http.StatusOK, gin.H{"navigated": true, "new_idx": resp.Index, "qnp_data": resp.Nav})
	}
}

func (a *API) Restart(c *gin.Context) {
	if err := a.qss.Restart(c.Request.Context(), c.Param("id")); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
