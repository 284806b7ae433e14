// Package jsonpath resolves dotted paths (a.b.c) inside decoded JSON documents.
package jsonpath

import (
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Parse decodes a JSON document. Empty input yields nil without error.
func Parse(raw []byte) (any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	return oj.Parse(raw)
}

// Compile turns a dotted path into a child-only expression. Each segment is a
// plain object key; there is no wildcard or filter syntax.
func Compile(dotted string) (jp.Expr, bool) {
	dotted = strings.Trim(dotted, ".")
	if dotted == "" {
		return nil, false
	}
	expr := jp.R()
	for _, key := range strings.Split(dotted, ".") {
		if key == "" {
			return nil, false
		}
		expr = expr.C(key)
	}
	return expr, true
}

// Lookup returns the value at dotted inside doc.
func Lookup(doc any, dotted string) (any, bool) {
	if doc == nil {
		return nil, false
	}
	expr, ok := Compile(dotted)
	if !ok {
		return nil, false
	}
	results := expr.Get(doc)
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

// LookupString is Lookup restricted to string values.
func LookupString(doc any, dotted string) (string, bool) {
	v, ok := Lookup(doc, dotted)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
