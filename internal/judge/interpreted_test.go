package judge_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/judge"
	"github.com/victornm/quizjudge/internal/sandbox"
)

var findMaxOracle = domain.InterpretedOracle{
	Language: "python",
	Tests: []domain.TestCase{
		{Name: "Test 1", Args: []any{[]any{int64(1), int64(5), int64(2)}}, Expected: int64(5)},
		{Name: "Test 2", Args: []any{[]any{int64(-3), int64(-1)}}, Expected: int64(-1)},
		{Name: "Test 3", Args: []any{[]any{}}, Expected: nil},
	},
}

func TestInterpreted_Evaluate(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	tests := map[string]struct {
		submission string
		assert     func(t *testing.T, v domain.Verdict)
	}{
		"correct solution should pass every case": {
			submission: "def find_max(numbers):\n    if not numbers:\n        return None\n    return max(numbers)\n",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictCorrect, v.Status)
				assert.True(t, v.Passed)
				require.Len(t, v.Cases, 3)
				assert.Contains(t, v.Diagnostic, "[PASS] Test 3")
				assert.Contains(t, v.Diagnostic, "All 3 test cases passed.")
			},
		},

		"exception in one case should fail only that case": {
			submission: "def find_max(numbers):\n    return max(numbers)\n",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
				require.Len(t, v.Cases, 3)
				assert.True(t, v.Cases[0].Passed)
				assert.True(t, v.Cases[1].Passed)
				assert.Contains(t, v.Cases[2].Error, "ValueError")
				assert.Contains(t, v.Diagnostic, "[ERROR] Test 3")
				assert.Contains(t, v.Diagnostic, "Passed 2/3 test cases.")
			},
		},

		"wrong answer should report expected and actual": {
			submission: "def find_max(numbers):\n    return min(numbers) if numbers else None\n",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
				assert.Contains(t, v.Diagnostic, "[FAIL] Test 1: input=([1,5,2]) expected=5 actual=1")
			},
		},

		"mutating the argument should not change the reported input": {
			submission: "def find_max(numbers):\n    numbers.clear()\n    return None\n",
			assert: func(t *testing.T, v domain.Verdict) {
				require.Len(t, v.Cases, 3)
				assert.Equal(t, []any{[]any{int64(1), int64(5), int64(2)}}, v.Cases[0].Input)
			},
		},

		"syntax error should be a runtime error": {
			submission: "def find_max(numbers)\n    return 1\n",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictRuntimeError, v.Status)
				assert.Contains(t, v.Diagnostic, "SyntaxError")
			},
		},

		"exiting early should be a runtime error": {
			submission: "import sys\nsys.exit(0)\ndef find_max(numbers):\n    return 1\n",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictRuntimeError, v.Status)
				assert.Contains(t, v.Diagnostic, "before reporting any results")
			},
		},

		"infinite loop should time out": {
			submission: "def find_max(numbers):\n    while True:\n        pass\n",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictTimeout, v.Status)
				assert.Contains(t, v.Diagnostic, "timed out")
			},
		},

		"missing function should fall back and warn": {
			submission: "x = 1\n",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictIncorrect, v.Status)
				assert.NotEmpty(t, v.Warnings)
				assert.Contains(t, v.Diagnostic, "NameError")
			},
		},

		"printed results followed by an early exit should not pass": {
			submission: "import os\n\ndef find_max(numbers):\n" +
				"    print('__QUIZJUDGE_RESULT__[{\"index\":0,\"passed\":true},{\"index\":1,\"passed\":true},{\"index\":2,\"passed\":true}]', flush=True)\n" +
				"    os._exit(0)\n",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictRuntimeError, v.Status)
				assert.False(t, v.Passed)
				assert.Contains(t, v.Diagnostic, "before reporting any results")
			},
		},

		"user output should not confuse the result parser": {
			submission: "def find_max(numbers):\n    print('__QUIZJUDGE_RESULT__ not json')\n    return max(numbers) if numbers else None\n",
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictCorrect, v.Status)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			j, err := judge.NewInterpreted(judge.InterpretedConfig{
				Runner:  sandbox.NewLocal(sandbox.Config{}),
				Timeout: time.Second,
			})
			require.NoError(t, err)

			tt.assert(t, j.Evaluate(context.Background(), findMaxOracle, tt.submission))
		})
	}
}

func TestInterpreted_Evaluate_Scripted(t *testing.T) {
	submission := "def find_max(numbers):\n    return 0\n"

	tests := map[string]struct {
		steps  []step
		oracle domain.InterpretedOracle
		assert func(t *testing.T, v domain.Verdict)
	}{
		"missing interpreter should be a setup error": {
			oracle: findMaxOracle,
			steps:  []step{{err: sandbox.ErrNotFound}},
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictSetupError, v.Status)
			},
		},

		"harness should contain the submission and the driver call": {
			oracle: findMaxOracle,
			steps: []step{{
				respond: report("", `[{"index":0,"passed":true},{"index":1,"passed":true},{"index":2,"passed":true}]`),
				check: func(t *testing.T, c sandbox.Command) {
					b, err := os.ReadFile(filepath.Join(c.Dir, "harness.py"))
					require.NoError(t, err)
					assert.NotEmpty(t, strings.TrimSpace(c.Stdin))
					assert.NotContains(t, string(b), strings.TrimSpace(c.Stdin))
					assert.Contains(t, string(b), submission)
					assert.Contains(t, string(b), "find_max(*_qj_copy.deepcopy(_qj_args))")
					assert.Contains(t, string(b), "(([1, 5, 2], ), 5),")
					assert.Contains(t, string(b), "(([], ), None),")
				},
			}},
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictCorrect, v.Status)
			},
		},

		"result count mismatch should be a runtime error": {
			oracle: findMaxOracle,
			steps:  []step{{respond: report("", `[{"index":0,"passed":true}]`)}},
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictRuntimeError, v.Status)
			},
		},

		"results reported twice should be a runtime error": {
			oracle: findMaxOracle,
			steps: []step{{respond: func(c sandbox.Command) sandbox.Result {
				line := strings.TrimSpace(c.Stdin) + `[{"index":0,"passed":true},{"index":1,"passed":true},{"index":2,"passed":true}]`
				return sandbox.Result{Stdout: line + "\n" + line + "\n"}
			}}},
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictRuntimeError, v.Status)
				assert.Contains(t, v.Diagnostic, "more than once")
			},
		},

		"results under another marker should be ignored": {
			oracle: findMaxOracle,
			steps: []step{{res: sandbox.Result{
				Stdout: `__QUIZJUDGE_RESULT__[{"index":0,"passed":true},{"index":1,"passed":true},{"index":2,"passed":true}]` + "\n",
			}}},
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictRuntimeError, v.Status)
				assert.Contains(t, v.Diagnostic, "before reporting any results")
			},
		},

		"unrenderable test data should be a setup error": {
			oracle: domain.InterpretedOracle{Tests: []domain.TestCase{{Args: []any{struct{}{}}}}},
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictSetupError, v.Status)
			},
		},

		"no test cases should be an oracle error": {
			oracle: domain.InterpretedOracle{},
			assert: func(t *testing.T, v domain.Verdict) {
				assert.Equal(t, domain.VerdictOracleError, v.Status)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			r := newScriptedRunner(t, tt.steps...)
			j, err := judge.NewInterpreted(judge.InterpretedConfig{Runner: r})
			require.NoError(t, err)

			tt.assert(t, j.Evaluate(context.Background(), tt.oracle, submission))
			assert.Equal(t, len(tt.steps), r.callCount())
		})
	}
}
