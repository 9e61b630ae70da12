package symbol

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/victornm/quizjudge/internal/judge/literal"
)

var (
	javaPublicClass = regexp.MustCompile(`\bpublic\s+(?:(?:final|abstract)\s+)*class\s+([A-Za-z_$][\w$]*)`)
	javaAnyClass    = regexp.MustCompile(`\bclass\s+([A-Za-z_$][\w$]*)`)
	javaMethod      = regexp.MustCompile(
		`\bpublic\s+((?:(?:static|final|synchronized)\s+)*)([\w$.]+(?:\s*<[\w$.<>,\s?]*>)?(?:\s*\[\s*\])*)\s+([A-Za-z_$][\w$]*)\s*\(([^)]*)\)`,
	)
	javaAnnotation = regexp.MustCompile(`@[\w$.]+(?:\([^)]*\))?\s*`)
)

// Java extracts the public class and its first public method that is neither a
// constructor nor main.
type Java struct{}

func (Java) Extract(source string) (Symbol, []string) {
	src := stripJava(source)

	var (
		sym      Symbol
		warnings []string
	)

	if m := javaPublicClass.FindStringSubmatch(src); m != nil {
		sym.Class = m[1]
	} else if m := javaAnyClass.FindStringSubmatch(src); m != nil {
		sym.Class = m[1]
	} else {
		sym.Class = FallbackClass
		sym.Fallback = true
		warnings = append(warnings, fmt.Sprintf("No class declaration found, using %q.", FallbackClass))
	}

	for _, m := range javaMethod.FindAllStringSubmatch(src, -1) {
		name := m[3]
		if name == "main" || name == sym.Class {
			continue
		}

		ret, err := literal.ParseJavaType(m[2])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Cannot parse return type of %s: %v.", name, err))
		}

		params, err := parseJavaParams(m[4])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Cannot parse parameters of %s: %v.", name, err))
		}

		sym.Name = name
		sym.Static = strings.Contains(m[1], "static")
		sym.Return = ret
		sym.Params = params
		return sym, warnings
	}

	sym.Name = FallbackMethod
	sym.Fallback = true
	warnings = append(warnings, fmt.Sprintf("No public method found, calling %q.", FallbackMethod))
	return sym, warnings
}

// parseJavaParams splits a parameter list on top-level commas. Unparseable types are
// left as zero values so literals fall back to inference.
func parseJavaParams(list string) ([]literal.JavaType, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	var (
		parts []string
		depth int
		start int
	)
	for i, r := range list {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, list[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, list[start:])

	out := make([]literal.JavaType, 0, len(parts))
	var firstErr error
	for _, p := range parts {
		t, err := parseJavaParam(p)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		out = append(out, t)
	}

	return out, firstErr
}

func parseJavaParam(p string) (literal.JavaType, error) {
	p = javaAnnotation.ReplaceAllString(p, "")
	p = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p), "final "))

	// C style arrays: int nums[]
	dims := ""
	for strings.HasSuffix(p, "]") {
		open := strings.LastIndex(p, "[")
		if open < 0 {
			return literal.JavaType{}, fmt.Errorf("malformed parameter %q", p)
		}
		p = strings.TrimSpace(p[:open])
		dims += "[]"
	}

	cut := strings.LastIndexFunc(p, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '>' || r == ']' || r == '.'
	})
	if cut < 0 {
		return literal.JavaType{}, fmt.Errorf("missing parameter name in %q", p)
	}

	return literal.ParseJavaType(p[:cut+1] + dims)
}

// stripJava blanks out comments and the contents of string and char literals so
// patterns cannot match inside them.
func stripJava(src string) string {
	var b strings.Builder
	b.Grow(len(src))

	const (
		code = iota
		lineComment
		blockComment
		str
		char
	)

	state := code
	for i := 0; i < len(src); i++ {
		c := src[i]
		next := byte(0)
		if i+1 < len(src) {
			next = src[i+1]
		}

		switch state {
		case code:
			switch {
			case c == '/' && next == '/':
				state = lineComment
				b.WriteByte(' ')
			case c == '/' && next == '*':
				state = blockComment
				b.WriteByte(' ')
				i++
			case c == '"':
				state = str
				b.WriteByte(c)
			case c == '\'':
				state = char
				b.WriteByte(c)
			default:
				b.WriteByte(c)
			}
		case lineComment:
			if c == '\n' {
				state = code
				b.WriteByte(c)
			}
		case blockComment:
			if c == '*' && next == '/' {
				state = code
				i++
			}
		case str, char:
			quote := byte('"')
			if state == char {
				quote = '\''
			}
			switch c {
			case '\\':
				i++
			case quote:
				state = code
				b.WriteByte(c)
			case '\n':
				state = code
				b.WriteByte(c)
			}
		}
	}

	return b.String()
}
