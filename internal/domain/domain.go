package domain

import (
	"time"
)

// JudgeKind tells which judge evaluates a question.
type JudgeKind string

const (
	KindDeclarative JudgeKind = "declarative"
	KindInterpreted JudgeKind = "interpreted"
	KindCompiled    JudgeKind = "compiled"
	KindChoice      JudgeKind = "choice"
)

// Challenge groups an ordered list of questions.
type Challenge struct {
	ID          string
	Name        string
	Description string
	QuestionIDs []int64
}

// Question is an immutable catalog item. The Oracle variant determines how a submission is judged.
type Question struct {
	ID          int64
	ChallengeID string
	Title       string
	Level       string
	Description string
	Remarks     string
	Points      int
	TimeLimit   time.Duration
	Oracle      Oracle
}

// Kind returns the judge kind derived from the oracle, or an empty kind if there is none.
func (q Question) Kind() JudgeKind {
	if q.Oracle == nil {
		return ""
	}

	return q.Oracle.Kind()
}

// Language is the display language of the question.
func (q Question) Language() string {
	switch o := q.Oracle.(type) {
	case DeclarativeOracle:
		return "sql"
	case InterpretedOracle:
		return o.Language
	case CompiledOracle:
		return o.Language
	case ChoiceOracle:
		return "mcq"
	default:
		return ""
	}
}

// Oracle is the reference a submission is checked against. The set of implementations is closed.
type Oracle interface {
	Kind() JudgeKind
	sealed()
}

// DeclarativeOracle checks a SQL query against a reference query on a fresh database built from Schema.
type DeclarativeOracle struct {
	Schema       string
	Query        string
	StarterQuery string
}

func (DeclarativeOracle) Kind() JudgeKind { return KindDeclarative }
func (DeclarativeOracle) sealed()         {}

// InterpretedOracle runs a submitted Python function against Tests.
type InterpretedOracle struct {
	Language    string
	StarterCode string
	Tests       []TestCase
}

func (InterpretedOracle) Kind() JudgeKind { return KindInterpreted }
func (InterpretedOracle) sealed()         {}

// CompiledOracle compiles and runs a submitted Java class against Tests.
type CompiledOracle struct {
	Language    string
	StarterCode string
	Tests       []TestCase
}

func (CompiledOracle) Kind() JudgeKind { return KindCompiled }
func (CompiledOracle) sealed()         {}

// ChoiceOracle is a multiple choice question.
type ChoiceOracle struct {
	Options      []string
	CorrectIndex int
}

func (ChoiceOracle) Kind() JudgeKind { return KindChoice }
func (ChoiceOracle) sealed()         {}

// TestCase is one call of the submitted function. Args and Expected hold values of
// nil, bool, int64, float64, string, []any or map[string]any.
type TestCase struct {
	Name     string
	Args     []any
	Expected any
}

// ScoreboardEntry is one completed attempt. Entries are append-only.
type ScoreboardEntry struct {
	Username       string
	ChallengeID    string
	Score          int
	ElapsedSeconds int64
	RecordedAt     time.Time
}

// Leaderboard is the best attempt per user within a challenge, sorted by score
// descending then elapsed time ascending.
type Leaderboard struct {
	ChallengeID string
	Entries     []LeaderboardEntry
}

type LeaderboardEntry struct {
	Username       string
	Score          int
	ElapsedSeconds int64
}
