package literal

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// JavaType is a parsed Java type reference such as "int[]", "String" or "List<Integer>".
// The zero value means the type is unknown and is inferred from the value.
type JavaType struct {
	Name string
	Dims int
	Elem *JavaType
}

var javaName = regexp.MustCompile(`^[A-Za-z_$][\w$]*(\.[A-Za-z_$][\w$]*)*$`)

var listTypes = map[string]bool{
	"List": true, "ArrayList": true, "Collection": true, "Iterable": true,
	"java.util.List": true, "java.util.ArrayList": true, "java.util.Collection": true,
}

// ParseJavaType parses a declared parameter or return type. Varargs ("int...") count as one
// array dimension. Annotations and the final modifier must be stripped by the caller.
func ParseJavaType(s string) (JavaType, error) {
	s = strings.TrimSpace(s)
	var t JavaType

	if strings.HasSuffix(s, "...") {
		t.Dims++
		s = strings.TrimSpace(strings.TrimSuffix(s, "..."))
	}

	for strings.HasSuffix(s, "]") {
		open := strings.LastIndex(s, "[")
		if open < 0 || strings.TrimSpace(s[open+1:len(s)-1]) != "" {
			return JavaType{}, unsupported("java: malformed type %q", s)
		}
		t.Dims++
		s = strings.TrimSpace(s[:open])
	}

	if i := strings.IndexByte(s, '<'); i >= 0 {
		if !strings.HasSuffix(s, ">") {
			return JavaType{}, unsupported("java: malformed type %q", s)
		}
		t.Name = strings.TrimSpace(s[:i])
		if !listTypes[t.Name] {
			return JavaType{}, unsupported("java: generic type %q", s)
		}

		elem, err := ParseJavaType(s[i+1 : len(s)-1])
		if err != nil {
			return JavaType{}, err
		}
		t.Elem = &elem
		return t, nil
	}

	if !javaName.MatchString(s) {
		return JavaType{}, unsupported("java: malformed type %q", s)
	}

	t.Name = s
	return t, nil
}

func (t JavaType) IsZero() bool { return t.Name == "" }

func (t JavaType) String() string {
	var b strings.Builder
	b.WriteString(t.Name)
	if t.Elem != nil {
		b.WriteByte('<')
		b.WriteString(t.Elem.boxed().String())
		b.WriteByte('>')
	}
	for i := 0; i < t.Dims; i++ {
		b.WriteString("[]")
	}
	return b.String()
}

// IsArray reports whether values of t are compared with Arrays.deepEquals.
func (t JavaType) IsArray() bool { return t.Dims > 0 }

func (t JavaType) component() JavaType {
	c := t
	c.Dims--
	return c
}

var boxes = map[string]string{
	"int": "Integer", "long": "Long", "double": "Double", "float": "Float",
	"boolean": "Boolean", "char": "Character", "short": "Short", "byte": "Byte",
}

func (t JavaType) boxed() JavaType {
	if b, ok := boxes[t.Name]; ok && t.Dims == 0 {
		t.Name = b
	}
	return t
}

// Java renders v as a Java expression assignable to t. When t is the zero value the type is
// inferred from v; see InferJavaType.
func Java(v any, t JavaType) (string, error) {
	if t.IsZero() {
		inferred, err := InferJavaType(v)
		if err != nil {
			return "", err
		}
		t = inferred
	}

	var b strings.Builder
	if err := writeJava(&b, v, t); err != nil {
		return "", err
	}
	return b.String(), nil
}

// InferJavaType picks a Java type for a value with no declared type. Integers that fit in
// 32 bits become int, larger ones long. Lists become arrays of their common element type.
func InferJavaType(v any) (JavaType, error) {
	switch x := v.(type) {
	case nil:
		return JavaType{Name: "Object"}, nil
	case bool:
		return JavaType{Name: "boolean"}, nil
	case int64:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return JavaType{Name: "long"}, nil
		}
		return JavaType{Name: "int"}, nil
	case float64:
		return JavaType{Name: "double"}, nil
	case string:
		return JavaType{Name: "String"}, nil
	case []any:
		if len(x) == 0 {
			return JavaType{Name: "int", Dims: 1}, nil
		}

		var elem JavaType
		for i, e := range x {
			et, err := InferJavaType(e)
			if err != nil {
				return JavaType{}, err
			}
			if i == 0 {
				elem = et
				continue
			}
			elem, err = widen(elem, et)
			if err != nil {
				return JavaType{}, err
			}
		}
		elem.Dims++
		return elem, nil
	default:
		return JavaType{}, unsupported("java: cannot infer type of %T", v)
	}
}

func widen(a, b JavaType) (JavaType, error) {
	if a.Dims != b.Dims {
		return JavaType{}, unsupported("java: mixed element types %s and %s", a, b)
	}
	if a.Name == b.Name {
		return a, nil
	}

	rank := map[string]int{"int": 1, "long": 2, "double": 3}
	ra, oka := rank[a.Name]
	rb, okb := rank[b.Name]
	if !oka || !okb {
		return JavaType{}, unsupported("java: mixed element types %s and %s", a, b)
	}
	if ra > rb {
		return a, nil
	}
	return b, nil
}

func writeJava(b *strings.Builder, v any, t JavaType) error {
	if v == nil {
		if _, primitive := boxes[t.Name]; primitive && t.Dims == 0 {
			return unsupported("java: null for primitive %s", t.Name)
		}
		b.WriteString("null")
		return nil
	}

	if t.Dims > 0 {
		return writeJavaArray(b, v, t)
	}

	if listTypes[t.Name] {
		return writeJavaList(b, v, t)
	}

	switch t.Name {
	case "int", "Integer":
		n, err := javaInt(v, math.MinInt32, math.MaxInt32, t)
		if err != nil {
			return err
		}
		b.WriteString(strconv.FormatInt(n, 10))
	case "long", "Long":
		n, err := javaInt(v, math.MinInt64, math.MaxInt64, t)
		if err != nil {
			return err
		}
		b.WriteString(strconv.FormatInt(n, 10))
		b.WriteByte('L')
	case "short", "Short":
		n, err := javaInt(v, math.MinInt16, math.MaxInt16, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "(short) %d", n)
	case "byte", "Byte":
		n, err := javaInt(v, math.MinInt8, math.MaxInt8, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "(byte) %d", n)
	case "double", "Double":
		f, err := javaFloat(v, t)
		if err != nil {
			return err
		}
		b.WriteString(javaDouble(f, "Double", ""))
	case "float", "Float":
		f, err := javaFloat(v, t)
		if err != nil {
			return err
		}
		b.WriteString(javaDouble(f, "Float", "f"))
	case "boolean", "Boolean":
		x, ok := v.(bool)
		if !ok {
			return mismatch(v, t)
		}
		b.WriteString(strconv.FormatBool(x))
	case "char", "Character":
		s, ok := v.(string)
		if !ok || utf8.RuneCountInString(s) != 1 {
			return mismatch(v, t)
		}
		r, _ := utf8.DecodeRuneInString(s)
		if r > 0xFFFF || r == utf8.RuneError {
			return unsupported("java: %q does not fit in a char", s)
		}
		b.WriteString(javaChar(r))
	case "String", "CharSequence":
		s, ok := v.(string)
		if !ok {
			return mismatch(v, t)
		}
		js, err := javaString(s)
		if err != nil {
			return err
		}
		b.WriteString(js)
	case "Object":
		inferred, err := InferJavaType(v)
		if err != nil {
			return err
		}
		if inferred.Name == "Object" {
			return unsupported("java: %T as Object", v)
		}
		return writeJava(b, v, inferred.boxed())
	default:
		return unsupported("java: type %s", t)
	}

	return nil
}

func writeJavaArray(b *strings.Builder, v any, t JavaType) error {
	xs, ok := v.([]any)
	if !ok {
		return mismatch(v, t)
	}
	if t.Elem != nil {
		return unsupported("java: generic array %s", t)
	}

	b.WriteString("new ")
	b.WriteString(t.String())
	b.WriteByte('{')
	for i, e := range xs {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := writeJava(b, e, t.component()); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

func writeJavaList(b *strings.Builder, v any, t JavaType) error {
	xs, ok := v.([]any)
	if !ok {
		return mismatch(v, t)
	}

	elem := JavaType{Name: "Object"}
	if t.Elem != nil {
		elem = t.Elem.boxed()
	}

	if len(xs) == 0 {
		fmt.Fprintf(b, "new java.util.ArrayList<%s>()", elem)
		return nil
	}

	fmt.Fprintf(b, "new java.util.ArrayList<%s>(java.util.Arrays.<%s>asList(", elem, elem)
	for i, e := range xs {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := writeJava(b, e, elem); err != nil {
			return err
		}
	}
	b.WriteString("))")
	return nil
}

func javaInt(v any, lo, hi int64, t JavaType) (int64, error) {
	n, ok := v.(int64)
	if !ok {
		return 0, mismatch(v, t)
	}
	if n < lo || n > hi {
		return 0, unsupported("java: %d out of range for %s", n, t)
	}
	return n, nil
}

func javaFloat(v any, t JavaType) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	default:
		return 0, mismatch(v, t)
	}
}

func javaDouble(f float64, box, suffix string) string {
	switch {
	case math.IsNaN(f):
		return box + ".NaN"
	case math.IsInf(f, 1):
		return box + ".POSITIVE_INFINITY"
	case math.IsInf(f, -1):
		return box + ".NEGATIVE_INFINITY"
	}

	bits := 64
	if suffix == "f" {
		bits = 32
	}

	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s + suffix
}

// javaString escapes s for a Java string literal. Unicode escapes are only used for
// non-ASCII code points, because the compiler translates \uXXXX before lexing and an
// escaped quote or line terminator would break the literal.
func javaString(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", unsupported("java: invalid UTF-8 string %q", s)
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' {
			b.WriteString(`\"`)
			continue
		}
		writeJavaRune(&b, r)
	}
	b.WriteByte('"')
	return b.String(), nil
}

func javaChar(r rune) string {
	var b strings.Builder
	b.WriteByte('\'')
	if r == '\'' {
		b.WriteString(`\'`)
	} else {
		writeJavaRune(&b, r)
	}
	b.WriteByte('\'')
	return b.String()
}

func writeJavaRune(b *strings.Builder, r rune) {
	switch r {
	case '\\':
		b.WriteString(`\\`)
	case '\n':
		b.WriteString(`\n`)
	case '\r':
		b.WriteString(`\r`)
	case '\t':
		b.WriteString(`\t`)
	case '\b':
		b.WriteString(`\b`)
	case '\f':
		b.WriteString(`\f`)
	default:
		switch {
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(b, `\%03o`, r)
		case r < 0x80:
			b.WriteRune(r)
		case r <= 0xFFFF:
			fmt.Fprintf(b, `\u%04x`, r)
		default:
			r -= 0x10000
			fmt.Fprintf(b, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		}
	}
}

func mismatch(v any, t JavaType) error {
	return unsupported("java: %T value %v for %s", v, v, t)
}
