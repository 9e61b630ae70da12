package literal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Python renders v as a Python 3 expression.
func Python(v any) (string, error) {
	var b strings.Builder
	if err := writePython(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

// PythonArgs renders args as a Python tuple, e.g. `(1, "a", )`.
func PythonArgs(args []any) (string, error) {
	var b strings.Builder
	b.WriteByte('(')
	for _, a := range args {
		if err := writePython(&b, a); err != nil {
			return "", err
		}
		b.WriteString(", ")
	}
	b.WriteByte(')')
	return b.String(), nil
}

func writePython(b *strings.Builder, v any) error {
	switch x := v.(type) {
	case nil:
		b.WriteString("None")
	case bool:
		if x {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		b.WriteString(pythonFloat(x))
	case string:
		s, err := pythonString(x)
		if err != nil {
			return err
		}
		b.WriteString(s)
	case []any:
		b.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := writePython(b, e); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]any:
		b.WriteByte('{')
		for i, k := range sortedKeys(x) {
			if i > 0 {
				b.WriteString(", ")
			}
			ks, err := pythonString(k)
			if err != nil {
				return err
			}
			b.WriteString(ks)
			b.WriteString(": ")
			if err := writePython(b, x[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return unsupported("python: %T", v)
	}

	return nil
}

func pythonFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "float('nan')"
	case math.IsInf(f, 1):
		return "float('inf')"
	case math.IsInf(f, -1):
		return "float('-inf')"
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func pythonString(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", unsupported("python: invalid UTF-8 string %q", s)
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String(), nil
}
