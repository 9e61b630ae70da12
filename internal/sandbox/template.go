package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// Template is a shell-like command line with {name} placeholders, e.g.
// "javac -encoding UTF-8 -d {out} {sources}". It is split once with shell quoting rules;
// substitution happens per token so values never need quoting.
type Template struct {
	raw    string
	tokens []string
}

func ParseTemplate(raw string) (Template, error) {
	tokens, err := shlex.Split(raw)
	if err != nil {
		return Template{}, fmt.Errorf("sandbox: parse command %q: %w", raw, err)
	}

	if len(tokens) == 0 {
		return Template{}, fmt.Errorf("sandbox: empty command")
	}

	return Template{raw: raw, tokens: tokens}, nil
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(raw string) Template {
	t, err := ParseTemplate(raw)
	if err != nil {
		panic(err)
	}

	return t
}

func (t Template) String() string { return t.raw }

// Expand substitutes vars and returns the executable and its arguments. A token that is
// exactly one placeholder expands to all of its values, so {sources} may yield several
// arguments. A placeholder inside a larger token must have exactly one value.
func (t Template) Expand(vars map[string][]string) (string, []string, error) {
	out := make([]string, 0, len(t.tokens))

	for _, tok := range t.tokens {
		if m := placeholder.FindStringSubmatch(tok); m != nil && m[0] == tok {
			vals, ok := vars[m[1]]
			if !ok {
				return "", nil, fmt.Errorf("sandbox: unresolved placeholder %s in %q", tok, t.raw)
			}
			out = append(out, vals...)
			continue
		}

		var err error
		expanded := placeholder.ReplaceAllStringFunc(tok, func(p string) string {
			vals, ok := vars[strings.Trim(p, "{}")]
			if !ok || len(vals) != 1 {
				err = fmt.Errorf("sandbox: placeholder %s in %q needs exactly one value", p, t.raw)
				return p
			}
			return vals[0]
		})
		if err != nil {
			return "", nil, err
		}
		out = append(out, expanded)
	}

	if len(out) == 0 {
		return "", nil, fmt.Errorf("sandbox: command %q expands to nothing", t.raw)
	}

	return out[0], out[1:], nil
}
