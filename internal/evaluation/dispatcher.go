package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/errors"
)

type (
	DeclarativeJudge interface {
		Evaluate(ctx context.Context, o domain.DeclarativeOracle, submission string) domain.Verdict
	}

	InterpretedJudge interface {
		Evaluate(ctx context.Context, o domain.InterpretedOracle, submission string) domain.Verdict
	}

	CompiledJudge interface {
		Evaluate(ctx context.Context, o domain.CompiledOracle, submission string) domain.Verdict
	}

	ChoiceJudge interface {
		Evaluate(o domain.ChoiceOracle, submission string) domain.Verdict
	}

	Observer interface {
		ObserveEvaluation(kind domain.JudgeKind, status domain.VerdictStatus, d time.Duration)
	}
)

type Config struct {
	Declarative DeclarativeJudge
	Interpreted InterpretedJudge
	Compiled    CompiledJudge
	Choice      ChoiceJudge
	Observer    Observer
}

// Dispatcher routes a submission to the judge for its question's oracle.
type Dispatcher struct {
	declarative DeclarativeJudge
	interpreted InterpretedJudge
	compiled    CompiledJudge
	choice      ChoiceJudge
	observer    Observer
}

func NewDispatcher(c Config) *Dispatcher {
	d := &Dispatcher{
		declarative: c.Declarative,
		interpreted: c.Interpreted,
		compiled:    c.Compiled,
		choice:      c.Choice,
		observer:    c.Observer,
	}

	if d.observer == nil {
		d.observer = noopObserver{}
	}

	return d
}

// Dispatch evaluates a submission. It only returns an error for requests that cannot be
// evaluated at all; everything about the submission itself is in the verdict.
func (d *Dispatcher) Dispatch(ctx context.Context, q domain.Question, submission string) (v domain.Verdict, err error) {
	if q.Oracle == nil {
		return domain.Verdict{}, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("question %d has no oracle", q.ID))
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "evaluation: judge panic",
				"question_id", q.ID,
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
			v, err = domain.Verdict{
				Status:     domain.VerdictSetupError,
				Diagnostic: "Judge setup error: internal failure while evaluating the submission.",
			}, nil
		}

		if err == nil {
			d.observer.ObserveEvaluation(q.Kind(), v.Status, time.Since(start))
		}
	}()

	switch o := q.Oracle.(type) {
	case domain.DeclarativeOracle:
		if d.declarative == nil {
			return notConfigured(q.Kind()), nil
		}
		v = d.declarative.Evaluate(ctx, o, submission)
	case domain.InterpretedOracle:
		if d.interpreted == nil {
			return notConfigured(q.Kind()), nil
		}
		v = d.interpreted.Evaluate(ctx, o, submission)
	case domain.CompiledOracle:
		if d.compiled == nil {
			return notConfigured(q.Kind()), nil
		}
		v = d.compiled.Evaluate(ctx, o, submission)
	case domain.ChoiceOracle:
		if d.choice == nil {
			return notConfigured(q.Kind()), nil
		}
		v = d.choice.Evaluate(o, submission)
	default:
		return domain.Verdict{}, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("question %d has unknown judge kind %T", q.ID, q.Oracle))
	}

	if v.Status == domain.VerdictSetupError || v.Status == domain.VerdictOracleError {
		slog.WarnContext(ctx, "evaluation: judge could not evaluate submission",
			"question_id", q.ID,
			"status", v.Status,
			"diagnostic", v.Diagnostic,
		)
	}

	return v, nil
}

func notConfigured(kind domain.JudgeKind) domain.Verdict {
	return domain.Verdict{
		Status:     domain.VerdictSetupError,
		Diagnostic: fmt.Sprintf("Judge setup error: no %s judge is configured.", kind),
	}
}

type noopObserver struct{}

func (noopObserver) ObserveEvaluation(domain.JudgeKind, domain.VerdictStatus, time.Duration) {}
