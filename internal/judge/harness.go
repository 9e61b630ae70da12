package judge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/victornm/quizjudge/internal/domain"
)

// record is one element of the JSON array a generated driver prints after its marker.
type record struct {
	Index  int    `json:"index"`
	Passed bool   `json:"passed"`
	Actual any    `json:"actual"`
	Error  string `json:"error"`
}

// parseResults reads the marker line of stdout and joins it with the test cases. The
// driver reports exactly once, so a second marker line means the output was forged.
func parseResults(stdout, marker string, tests []domain.TestCase) ([]domain.CaseResult, error) {
	var (
		last  string
		found int
	)

	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), len(stdout)+1)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, marker); i >= 0 {
			last = line[i+len(marker):]
			found++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan output: %w", err)
	}

	switch {
	case found == 0:
		return nil, fmt.Errorf("the program exited before reporting any results")
	case found > 1:
		return nil, fmt.Errorf("results were reported more than once")
	}

	var recs []record
	if err := json.Unmarshal([]byte(last), &recs); err != nil {
		return nil, fmt.Errorf("malformed results: %w", err)
	}

	if len(recs) != len(tests) {
		return nil, fmt.Errorf("expected %d results, got %d", len(tests), len(recs))
	}

	out := make([]domain.CaseResult, len(tests))
	for i, tc := range tests {
		out[i] = domain.CaseResult{
			Name:     caseName(tc, i),
			Input:    tc.Args,
			Expected: tc.Expected,
		}
	}

	for _, r := range recs {
		if r.Index < 0 || r.Index >= len(out) {
			return nil, fmt.Errorf("result index %d out of range", r.Index)
		}
		out[r.Index].Passed = r.Passed && r.Error == ""
		out[r.Index].Actual = r.Actual
		out[r.Index].Error = r.Error
	}

	return out, nil
}

func caseName(tc domain.TestCase, i int) string {
	if tc.Name != "" {
		return tc.Name
	}
	return fmt.Sprintf("Test %d", i+1)
}

// caseVerdict builds the verdict and its line-per-case diagnostic.
func caseVerdict(cases []domain.CaseResult) domain.Verdict {
	var (
		b      strings.Builder
		passed int
	)

	for _, c := range cases {
		switch {
		case c.Passed:
			passed++
			fmt.Fprintf(&b, "[PASS] %s\n", c.Name)
		case c.Error != "":
			fmt.Fprintf(&b, "[ERROR] %s: input=%s error=%s\n", c.Name, formatArgs(c.Input), c.Error)
		default:
			fmt.Fprintf(&b, "[FAIL] %s: input=%s expected=%s actual=%s\n",
				c.Name, formatArgs(c.Input), formatValue(c.Expected), formatValue(c.Actual))
		}
	}

	all := passed == len(cases)
	if all {
		fmt.Fprintf(&b, "All %d test cases passed.", len(cases))
	} else {
		fmt.Fprintf(&b, "Passed %d/%d test cases.", passed, len(cases))
	}

	v := domain.Verdict{
		Status:     domain.VerdictIncorrect,
		Diagnostic: b.String(),
		Passed:     all,
		Cases:      cases,
	}
	if all {
		v.Status = domain.VerdictCorrect
	}

	return v
}

func formatArgs(v any) string {
	args, ok := v.([]any)
	if !ok {
		return formatValue(v)
	}

	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatValue(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
