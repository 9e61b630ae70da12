package symbol

import (
	"fmt"
	"regexp"
)

var pythonDef = regexp.MustCompile(`(?m)^def\s+([A-Za-z_]\w*)\s*\(`)

// Python extracts the first top-level function definition.
type Python struct{}

func (Python) Extract(source string) (Symbol, []string) {
	m := pythonDef.FindStringSubmatch(source)
	if m == nil {
		return Symbol{Name: FallbackFunction, Fallback: true}, []string{
			fmt.Sprintf("No top-level function found, calling %q.", FallbackFunction),
		}
	}

	return Symbol{Name: m[1]}, nil
}
