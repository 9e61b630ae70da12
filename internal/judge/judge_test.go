package judge_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/quizjudge/internal/sandbox"
)

type step struct {
	res   sandbox.Result
	err   error
	check func(t *testing.T, c sandbox.Command)
	// respond builds the result from the command when set, overriding res.
	respond func(c sandbox.Command) sandbox.Result
}

// report answers like a driver that writes the given records after the marker it was
// handed on stdin. before is printed ahead of the marker line.
func report(before, records string) func(c sandbox.Command) sandbox.Result {
	return func(c sandbox.Command) sandbox.Result {
		return sandbox.Result{Stdout: before + strings.TrimSpace(c.Stdin) + records + "\n"}
	}
}

// scriptedRunner replays one step per Run call.
type scriptedRunner struct {
	t     *testing.T
	mu    sync.Mutex
	steps []step
	calls []sandbox.Command
}

func newScriptedRunner(t *testing.T, steps ...step) *scriptedRunner {
	return &scriptedRunner{t: t, steps: steps}
}

func (r *scriptedRunner) Run(_ context.Context, c sandbox.Command) (sandbox.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, c)
	require.LessOrEqual(r.t, len(r.calls), len(r.steps), "unexpected call %s %v", c.Path, c.Args)

	s := r.steps[len(r.calls)-1]
	if s.check != nil {
		s.check(r.t, c)
	}
	if s.respond != nil {
		return s.respond(c), s.err
	}
	return s.res, s.err
}

func (r *scriptedRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
