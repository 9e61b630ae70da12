// Package judge decides whether a submission satisfies a question's oracle.
//
// Judges never return Go errors for anything caused by submission content: compile
// failures, crashes, wrong answers and timeouts are all verdicts. Problems with the judge
// itself (missing toolchain, unrenderable test data, broken oracle) are reported as
// setup or oracle verdicts so they are not scored against the learner.
package judge

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/sandbox"
)

// newResultMarker returns the prefix the driver of one evaluation writes its results
// after. It reaches the driver on stdin and is never written to the workspace.
func newResultMarker() string {
	return "__QJ_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "__"
}

func setupError(format string, args ...any) domain.Verdict {
	return domain.Verdict{
		Status:     domain.VerdictSetupError,
		Diagnostic: "Judge setup error: " + fmt.Sprintf(format, args...),
	}
}

func oracleError(err error) domain.Verdict {
	return domain.Verdict{
		Status:     domain.VerdictOracleError,
		Diagnostic: fmt.Sprintf("Question configuration error: %v", err),
	}
}

func timeoutVerdict(what string, d time.Duration) domain.Verdict {
	return domain.Verdict{
		Status:     domain.VerdictTimeout,
		Diagnostic: fmt.Sprintf("%s timed out after %s.", what, d),
	}
}

// runFailure maps a sandbox error to a verdict. It returns false when err is nil.
func runFailure(ctx context.Context, err error, what string, timeout time.Duration) (domain.Verdict, bool) {
	switch {
	case err == nil:
		return domain.Verdict{}, false
	case stderrors.Is(err, sandbox.ErrTimeout):
		return timeoutVerdict(what, timeout), true
	case stderrors.Is(err, sandbox.ErrNotFound):
		return setupError("%v", err), true
	case ctx.Err() != nil:
		return setupError("evaluation canceled: %v", ctx.Err()), true
	default:
		return setupError("%v", err), true
	}
}

func processOutput(res sandbox.Result) string {
	out := strings.TrimRight(res.Stderr, "\n")
	if s := strings.TrimRight(res.Stdout, "\n"); s != "" {
		if out != "" {
			out += "\n"
		}
		out += s
	}
	return out
}

func withWarnings(v domain.Verdict, warnings []string) domain.Verdict {
	if len(warnings) == 0 {
		return v
	}

	v.Warnings = append(v.Warnings, warnings...)

	var b strings.Builder
	for _, w := range warnings {
		b.WriteString("Warning: ")
		b.WriteString(w)
		b.WriteByte('\n')
	}
	b.WriteString(v.Diagnostic)
	v.Diagnostic = b.String()
	return v
}
