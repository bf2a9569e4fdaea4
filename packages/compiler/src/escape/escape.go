// Package escape implements the render-time escaping service. Escaping is
// a pure function of (value, context): the code generator picks the context
// at compile time and generated units call into this package per output.
package escape

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"stencil-go/packages/compiler/src/ast"
)

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"'", "&#39;",
)

// HTML escapes a string for element-content position
func HTML(s string) string {
	return htmlReplacer.Replace(s)
}

// HTMLAttr escapes a string for attribute-value position
func HTMLAttr(s string) string {
	return htmlReplacer.Replace(s)
}

// JSON serializes a value as JSON for element-content position
func JSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// JSONAttr serializes a value as JSON escaped for attribute-value position
func JSONAttr(v interface{}) (string, error) {
	s, err := JSON(v)
	if err != nil {
		return "", err
	}
	return HTMLAttr(s), nil
}

// Apply stringifies a value and escapes it for the given context. RAW and
// the empty context emit the stringified value untouched.
func Apply(v interface{}, ctx ast.EscapeContext) (string, error) {
	switch ctx {
	case ast.ContextHTML:
		return HTML(Stringify(v)), nil
	case ast.ContextHTMLAttr:
		return HTMLAttr(Stringify(v)), nil
	case ast.ContextJSON:
		return JSON(v)
	case ast.ContextJSONAttr:
		return JSONAttr(v)
	}
	return Stringify(v), nil
}

// Stringify renders a bound value as template text. Nil renders empty,
// numbers render in their shortest form, everything else goes through the
// default formatting verb.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprintf("%v", v)
}

// ClassList builds a space-joined class attribute value from a computed
// class expression: a string passes through, a list joins its entries, a
// map keeps the keys whose values are truthy, in sorted order.
func ClassList(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, entry := range val {
			if s := ClassList(entry); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case []string:
		parts := make([]string, 0, len(val))
		for _, entry := range val {
			if entry = strings.TrimSpace(entry); entry != "" {
				parts = append(parts, entry)
			}
		}
		return strings.Join(parts, " ")
	case map[string]interface{}:
		parts := make([]string, 0, len(val))
		for name, cond := range val {
			if Truthy(cond) {
				parts = append(parts, name)
			}
		}
		sort.Strings(parts)
		return strings.Join(parts, " ")
	}
	return strings.TrimSpace(Stringify(v))
}

// AttrSpread renders a map of computed attributes as attribute text, each
// pair preceded by a space, keys in sorted order. A true value renders as a
// boolean attribute, nil and false drop the attribute.
func AttrSpread(v interface{}) string {
	attrs, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		switch val := attrs[name].(type) {
		case nil:
			continue
		case bool:
			if val {
				b.WriteString(" ")
				b.WriteString(name)
			}
		default:
			b.WriteString(" ")
			b.WriteString(name)
			b.WriteString(`="`)
			b.WriteString(HTMLAttr(Stringify(val)))
			b.WriteString(`"`)
		}
	}
	return b.String()
}

// Truthy reports render-time truthiness: nil, false, zero numbers, empty
// strings and empty collections are falsy.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	}
	return true
}
