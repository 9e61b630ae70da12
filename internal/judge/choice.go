package judge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/victornm/quizjudge/internal/domain"
)

// Choice judges a multiple choice answer given as a zero-based option index.
type Choice struct{}

func (Choice) Evaluate(o domain.ChoiceOracle, submission string) domain.Verdict {
	if o.CorrectIndex < 0 || o.CorrectIndex >= len(o.Options) {
		return oracleError(fmt.Errorf("correct option %d out of range", o.CorrectIndex))
	}

	idx, err := strconv.Atoi(strings.TrimSpace(submission))
	if err != nil {
		return domain.Verdict{Status: domain.VerdictInvalid, Diagnostic: "Invalid answer format."}
	}

	if idx < 0 || idx >= len(o.Options) {
		return domain.Verdict{
			Status:     domain.VerdictInvalid,
			Diagnostic: fmt.Sprintf("Option %d does not exist.", idx),
		}
	}

	if idx == o.CorrectIndex {
		return domain.Verdict{Status: domain.VerdictCorrect, Passed: true, Diagnostic: "Status: Correct!"}
	}

	return domain.Verdict{
		Status:     domain.VerdictIncorrect,
		Diagnostic: fmt.Sprintf("Status: Incorrect.\nThe correct answer was: '%s'", o.Options[o.CorrectIndex]),
	}
}
