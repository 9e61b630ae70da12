package domain

// VerdictStatus is the normalized outcome of a judge.
type VerdictStatus string

const (
	VerdictCorrect        VerdictStatus = "correct"
	VerdictIncorrect      VerdictStatus = "incorrect"
	VerdictInvalid        VerdictStatus = "invalid"
	VerdictCompileError   VerdictStatus = "compile_error"
	VerdictRuntimeError   VerdictStatus = "runtime_error"
	VerdictTimeout        VerdictStatus = "timeout"
	VerdictSetupError     VerdictStatus = "setup_error"
	VerdictOracleError    VerdictStatus = "oracle_error"
	VerdictAlreadyCorrect VerdictStatus = "already_correct"
)

// Verdict is what a judge returns for one submission.
type Verdict struct {
	Status     VerdictStatus
	Diagnostic string
	Passed     bool
	Cases      []CaseResult
	Warnings   []string
}

// CaseResult is the outcome of a single test case run by a code judge.
type CaseResult struct {
	Name     string `json:"name"`
	Input    any    `json:"input"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual,omitempty"`
	Passed   bool   `json:"passed"`
	Error    string `json:"error,omitempty"`
}

// Countable reports whether the verdict reflects the learner's answer.
// Malformed submissions and judge or oracle defects do not change an answer status.
func (v Verdict) Countable() bool {
	switch v.Status {
	case VerdictInvalid, VerdictSetupError, VerdictOracleError, VerdictAlreadyCorrect:
		return false
	default:
		return true
	}
}
