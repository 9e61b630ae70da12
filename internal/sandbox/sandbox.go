// Package sandbox runs untrusted programs as child processes with a hard wall-clock bound.
//
// Each child runs in its own process group, and the whole group is killed when the
// deadline expires. There are no memory, CPU or network limits; a container based
// Runner can be swapped in behind the same interface.
package sandbox

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultMaxOutput = 1 << 20
	defaultWaitDelay = 2 * time.Second
)

var (
	// ErrTimeout is returned when the command is killed at its deadline.
	ErrTimeout = stderrors.New("sandbox: timeout")
	// ErrNotFound is returned when the executable cannot be resolved.
	ErrNotFound = stderrors.New("sandbox: executable not found")
)

type Command struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Stdin   string
	Timeout time.Duration
}

// Result of a finished process. A non-zero ExitCode is not an error.
type Result struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Duration  time.Duration
	Truncated bool
}

type Runner interface {
	Run(ctx context.Context, c Command) (Result, error)
}

// Observer receives one call per finished process.
type Observer interface {
	ObserveProcess(name, outcome string, d time.Duration)
}

type Config struct {
	// MaxOutput caps each of stdout and stderr, in bytes.
	MaxOutput int
	// WaitDelay bounds the wait for I/O after the process is killed.
	WaitDelay time.Duration
	Observer  Observer
}

// Local runs commands on the host.
type Local struct {
	maxOutput int
	waitDelay time.Duration
	observer  Observer
}

func NewLocal(c Config) *Local {
	l := &Local{
		maxOutput: c.MaxOutput,
		waitDelay: c.WaitDelay,
		observer:  c.Observer,
	}

	if l.maxOutput <= 0 {
		l.maxOutput = defaultMaxOutput
	}

	if l.waitDelay <= 0 {
		l.waitDelay = defaultWaitDelay
	}

	if l.observer == nil {
		l.observer = noopObserver{}
	}

	return l
}

func (l *Local) Run(ctx context.Context, c Command) (Result, error) {
	path, err := exec.LookPath(c.Path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, c.Path)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	stdout, stderr := newCappedBuffer(l.maxOutput), newCappedBuffer(l.maxOutput)

	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = l.waitDelay
	setProcessGroup(cmd)

	start := time.Now()
	err = cmd.Run()
	res := Result{
		ExitCode:  -1,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	outcome, err := classify(ctx, err)
	l.observer.ObserveProcess(c.Path, outcome, res.Duration)

	if err != nil {
		slog.DebugContext(ctx, "sandbox: process failed",
			"path", c.Path,
			"outcome", outcome,
			"duration", res.Duration,
			"error", err,
		)
	}

	return res, err
}

func classify(ctx context.Context, err error) (string, error) {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout", ErrTimeout
	}

	if ctx.Err() != nil {
		return "canceled", ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil, stderrors.Is(err, exec.ErrWaitDelay):
		return "exited", nil
	case stderrors.As(err, &exitErr):
		return "exited", nil
	default:
		return "failed", fmt.Errorf("sandbox: run: %w", err)
	}
}

type noopObserver struct{}

func (noopObserver) ObserveProcess(string, string, time.Duration) {}
