package judge

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/judge/literal"
	"github.com/victornm/quizjudge/internal/judge/symbol"
	"github.com/victornm/quizjudge/internal/sandbox"
)

const (
	defaultPythonCommand = "python3 -I {file}"
	defaultPythonTimeout = 5 * time.Second
	pythonHarnessFile    = "harness.py"
)

type InterpretedConfig struct {
	Runner sandbox.Runner
	// Command runs the harness; {file} is its path and {dir} the workspace.
	Command   string
	Timeout   time.Duration
	Extractor symbol.Extractor
}

// Interpreted judges Python functions by appending a generated driver to the submission
// and running the result in the sandbox.
type Interpreted struct {
	runner    sandbox.Runner
	cmd       sandbox.Template
	timeout   time.Duration
	extractor symbol.Extractor
}

func NewInterpreted(c InterpretedConfig) (*Interpreted, error) {
	if c.Command == "" {
		c.Command = defaultPythonCommand
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultPythonTimeout
	}
	if c.Extractor == nil {
		c.Extractor = symbol.Python{}
	}

	cmd, err := sandbox.ParseTemplate(c.Command)
	if err != nil {
		return nil, fmt.Errorf("interpreted judge: %w", err)
	}

	return &Interpreted{
		runner:    c.Runner,
		cmd:       cmd,
		timeout:   c.Timeout,
		extractor: c.Extractor,
	}, nil
}

func (j *Interpreted) Evaluate(ctx context.Context, o domain.InterpretedOracle, submission string) domain.Verdict {
	if len(o.Tests) == 0 {
		return oracleError(fmt.Errorf("no test cases"))
	}

	sym, warnings := j.extractor.Extract(submission)

	harness, err := pythonHarness(submission, sym.Name, o.Tests)
	if err != nil {
		return setupError("render test cases: %v", err)
	}

	marker := newResultMarker()

	var (
		res    sandbox.Result
		runErr error
	)
	err = sandbox.Workspace("quizjudge-py-", func(dir string) error {
		if err := sandbox.WriteFiles(dir, map[string]string{pythonHarnessFile: harness}); err != nil {
			return err
		}

		name, args, err := j.cmd.Expand(map[string][]string{
			"file": {filepath.Join(dir, pythonHarnessFile)},
			"dir":  {dir},
		})
		if err != nil {
			return err
		}

		res, runErr = j.runner.Run(ctx, sandbox.Command{
			Path:    name,
			Args:    args,
			Dir:     dir,
			Stdin:   marker + "\n",
			Timeout: j.timeout,
		})
		return nil
	})
	if err != nil {
		return setupError("%v", err)
	}

	if v, failed := runFailure(ctx, runErr, "Execution", j.timeout); failed {
		return withWarnings(v, warnings)
	}

	if res.ExitCode != 0 {
		return withWarnings(domain.Verdict{
			Status:     domain.VerdictRuntimeError,
			Diagnostic: fmt.Sprintf("Runtime error (exit code %d):\n%s", res.ExitCode, processOutput(res)),
		}, warnings)
	}

	cases, err := parseResults(res.Stdout, marker, o.Tests)
	if err != nil {
		return withWarnings(domain.Verdict{
			Status:     domain.VerdictRuntimeError,
			Diagnostic: fmt.Sprintf("Runtime error: %v\n%s", err, processOutput(res)),
		}, warnings)
	}

	return withWarnings(caseVerdict(cases), warnings)
}

// pythonHarness returns the submission followed by a driver that calls fn for every case.
// Arguments are deep-copied so a mutating solution cannot affect the recorded input. The
// driver reads its result marker from the first line of stdin before calling fn.
func pythonHarness(submission, fn string, tests []domain.TestCase) (string, error) {
	var b strings.Builder
	b.WriteString(submission)
	b.WriteString("\n\n\ndef __quizjudge_main():\n")
	b.WriteString("    import copy as _qj_copy\n")
	b.WriteString("    import json as _qj_json\n")
	b.WriteString("    import sys as _qj_sys\n\n")
	b.WriteString("    _qj_marker = _qj_sys.stdin.readline().strip()\n\n")
	b.WriteString(`    def _qj_safe(v):
        if isinstance(v, float) and (v != v or v in (float("inf"), float("-inf"))):
            return repr(v)
        if isinstance(v, (list, tuple)):
            return [_qj_safe(x) for x in v]
        if isinstance(v, dict):
            return {str(k): _qj_safe(x) for k, x in v.items()}
        return v

`)
	b.WriteString("    _qj_cases = [\n")
	for _, tc := range tests {
		args, err := literal.PythonArgs(tc.Args)
		if err != nil {
			return "", err
		}
		expected, err := literal.Python(tc.Expected)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "        (%s, %s),\n", args, expected)
	}
	b.WriteString("    ]\n")
	fmt.Fprintf(&b, `    _qj_results = []
    for _qj_i, (_qj_args, _qj_expected) in enumerate(_qj_cases):
        _qj_rec = {"index": _qj_i, "passed": False}
        try:
            _qj_actual = %s(*_qj_copy.deepcopy(_qj_args))
            _qj_rec["actual"] = _qj_safe(_qj_actual)
            _qj_rec["passed"] = bool(_qj_actual == _qj_expected)
        except Exception as _qj_e:
            _qj_rec["error"] = type(_qj_e).__name__ + ": " + str(_qj_e)
        _qj_results.append(_qj_rec)
    _qj_sys.stdout.flush()
    print(_qj_marker + _qj_json.dumps(_qj_results, default=repr))


if __name__ == "__main__":
    __quizjudge_main()
`, fn)

	return b.String(), nil
}
