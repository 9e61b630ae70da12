// Package symbol finds the entry point of a submission with lightweight pattern matching.
//
// Extraction is best effort: the first match wins, and when nothing matches a conventional
// fallback name is returned together with a warning.
package symbol

import (
	"github.com/victornm/quizjudge/internal/judge/literal"
)

const (
	FallbackFunction = "solution"
	FallbackClass    = "Solution"
	FallbackMethod   = "solve"
)

// Symbol is what a harness needs to call into a submission. Class, Static and the
// types are only set for class based languages.
type Symbol struct {
	Class    string
	Name     string
	Static   bool
	Return   literal.JavaType
	Params   []literal.JavaType
	Fallback bool
}

type Extractor interface {
	Extract(source string) (Symbol, []string)
}
