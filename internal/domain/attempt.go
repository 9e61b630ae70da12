package domain

import (
	"maps"
	"math"
	"slices"
	"time"
)

type AnswerStatus string

const (
	AnswerUnattempted AnswerStatus = "unattempted"
	AnswerCorrect     AnswerStatus = "correct"
	AnswerIncorrect   AnswerStatus = "incorrect"
)

// Answer is the learner's progress on one question.
type Answer struct {
	Status   AnswerStatus
	Detail   string
	Attempts int
}

// Attempt is one learner's pass through a challenge. The question list is frozen when
// the attempt starts. Index == len(QuestionIDs) means the attempt is completed.
//
// Transitions never mutate the receiver; they return an updated copy.
type Attempt struct {
	ID                string
	Username          string
	ChallengeID       string
	QuestionIDs       []int64
	Index             int
	Score             int
	Answers           map[int64]Answer
	StartedAt         time.Time
	QuestionStartedAt time.Time
	CompletedAt       time.Time
	Completed         bool
}

// NavOutcome is the result of a navigation transition. Completed is set when the
// transition finished the attempt.
type NavOutcome struct {
	OK        bool
	Reason    string
	Completed bool
}

// NavEntry is one element of the navigation status vector.
type NavEntry struct {
	QuestionID int64        `json:"id"`
	Status     AnswerStatus `json:"status"`
}

const (
	ReasonCompleted     = "test already completed"
	ReasonInvalidIndex  = "invalid question index"
	ReasonFirstQuestion = "already at the first question"
)

func NewAttempt(id, username, challengeID string, questionIDs []int64, now time.Time) Attempt {
	answers := make(map[int64]Answer, len(questionIDs))
	for _, qid := range questionIDs {
		answers[qid] = Answer{Status: AnswerUnattempted}
	}

	return Attempt{
		ID:                id,
		Username:          username,
		ChallengeID:       challengeID,
		QuestionIDs:       slices.Clone(questionIDs),
		Answers:           answers,
		StartedAt:         now,
		QuestionStartedAt: now,
	}
}

func (a Attempt) Total() int {
	return len(a.QuestionIDs)
}

// CurrentQuestionID returns the question at the current index, false once completed.
func (a Attempt) CurrentQuestionID() (int64, bool) {
	if a.Completed || a.Index < 0 || a.Index >= len(a.QuestionIDs) {
		return 0, false
	}

	return a.QuestionIDs[a.Index], true
}

func (a Attempt) Contains(questionID int64) bool {
	return slices.Contains(a.QuestionIDs, questionID)
}

func (a Attempt) Answer(questionID int64) Answer {
	if ans, ok := a.Answers[questionID]; ok {
		return ans
	}

	return Answer{Status: AnswerUnattempted}
}

// ElapsedSeconds is the whole test duration rounded to seconds. Zero until completed.
func (a Attempt) ElapsedSeconds() int64 {
	if !a.Completed {
		return 0
	}

	return int64(math.Round(a.CompletedAt.Sub(a.StartedAt).Seconds()))
}

// Navigate moves to question i, 0 <= i < N, and restarts the per-question timer.
func (a Attempt) Navigate(i int, now time.Time) (Attempt, NavOutcome) {
	if a.Completed {
		return a, NavOutcome{Reason: ReasonCompleted}
	}

	if i < 0 || i >= len(a.QuestionIDs) {
		return a, NavOutcome{Reason: ReasonInvalidIndex}
	}

	b := a.clone()
	b.Index = i
	b.QuestionStartedAt = now
	return b, NavOutcome{OK: true}
}

// Advance moves to the next question. Moving past the last question completes the attempt.
func (a Attempt) Advance(now time.Time) (Attempt, NavOutcome) {
	if a.Completed {
		return a, NavOutcome{Reason: ReasonCompleted}
	}

	b := a.clone()
	b.Index++
	if b.Index >= len(b.QuestionIDs) {
		b.Index = len(b.QuestionIDs)
		b.Completed = true
		b.CompletedAt = now
		return b, NavOutcome{OK: true, Completed: true}
	}

	b.QuestionStartedAt = now
	return b, NavOutcome{OK: true}
}

func (a Attempt) Retreat(now time.Time) (Attempt, NavOutcome) {
	if a.Completed {
		return a, NavOutcome{Reason: ReasonCompleted}
	}

	if a.Index <= 0 {
		return a, NavOutcome{Reason: ReasonFirstQuestion}
	}

	b := a.clone()
	b.Index--
	b.QuestionStartedAt = now
	return b, NavOutcome{OK: true}
}

// ApplyVerdict records a judged submission. Points are granted at most once per question:
// a question that is already correct never changes again. Verdicts that do not reflect the
// learner's answer leave the attempt untouched. It reports whether the score changed.
func (a Attempt) ApplyVerdict(questionID int64, points int, v Verdict) (Attempt, bool) {
	prev := a.Answer(questionID)
	if prev.Status == AnswerCorrect || !v.Countable() {
		return a, false
	}

	b := a.clone()
	ans := Answer{
		Detail:   v.Diagnostic,
		Attempts: prev.Attempts + 1,
		Status:   AnswerIncorrect,
	}

	scored := false
	if v.Passed {
		ans.Status = AnswerCorrect
		b.Score += points
		scored = points != 0
	}

	b.Answers[questionID] = ans
	return b, scored
}

// NavStatus returns the status of every question in attempt order.
func (a Attempt) NavStatus() []NavEntry {
	out := make([]NavEntry, 0, len(a.QuestionIDs))
	for _, qid := range a.QuestionIDs {
		out = append(out, NavEntry{QuestionID: qid, Status: a.Answer(qid).Status})
	}

	return out
}

// ScoreboardEntry is the completion record of the attempt.
func (a Attempt) ScoreboardEntry() ScoreboardEntry {
	return ScoreboardEntry{
		Username:       a.Username,
		ChallengeID:    a.ChallengeID,
		Score:          a.Score,
		ElapsedSeconds: a.ElapsedSeconds(),
		RecordedAt:     a.CompletedAt,
	}
}

func (a Attempt) clone() Attempt {
	b := a
	b.QuestionIDs = slices.Clone(a.QuestionIDs)
	b.Answers = maps.Clone(a.Answers)
	if b.Answers == nil {
		b.Answers = make(map[int64]Answer)
	}

	return b
}
