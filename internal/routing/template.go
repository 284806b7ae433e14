// Package routing matches endpoint-relative request paths against endpoint
// path templates such as /users/{id}/orders/{orderId}.
package routing

import (
	"fmt"
	"regexp"
	"strings"
)

var paramName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Segment is one slash-separated piece of a template.
type Segment struct {
	Literal string
	Param   string
}

func (s Segment) IsParam() bool { return s.Param != "" }

// Template is a parsed path template.
type Template struct {
	raw      string
	segments []Segment
}

// Parse compiles a path template. A segment written exactly as {name} binds a
// parameter; every other segment, including mixed ones like v{n}, is literal.
func Parse(raw string) (Template, error) {
	parts := split(raw)
	segs := make([]Segment, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))

	for _, p := range parts {
		if p == "" {
			return Template{}, fmt.Errorf("path %q has an empty segment", raw)
		}
		if len(p) > 2 && strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			name := p[1 : len(p)-1]
			if !paramName.MatchString(name) {
				return Template{}, fmt.Errorf("path %q: invalid parameter name %q", raw, name)
			}
			if _, dup := seen[name]; dup {
				return Template{}, fmt.Errorf("path %q: duplicate parameter %q", raw, name)
			}
			seen[name] = struct{}{}
			segs = append(segs, Segment{Param: name})
			continue
		}
		segs = append(segs, Segment{Literal: p})
	}

	return Template{raw: raw, segments: segs}, nil
}

// MustParse is Parse for static templates.
func MustParse(raw string) Template {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Template) String() string { return t.raw }

func (t Template) Segments() []Segment { return t.segments }

// Match binds path against the template. Parameter segments match exactly one
// non-empty segment; literal segments compare byte for byte.
func (t Template) Match(path string) (map[string]string, bool) {
	parts := split(path)
	if len(parts) != len(t.segments) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range t.segments {
		part := parts[i]
		if seg.IsParam() {
			if part == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.Param] = part
			continue
		}
		if part != seg.Literal {
			return nil, false
		}
	}

	if params == nil {
		params = map[string]string{}
	}
	return params, true
}

// Normalize trims surrounding slashes so /users/ and /users compare equal.
func Normalize(path string) string {
	return "/" + strings.Trim(path, "/")
}

func split(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// moreSpecific reports whether a should win over b: at the first segment where
// one is literal and the other a parameter, the literal wins.
func moreSpecific(a, b Template) (bool, bool) {
	n := min(len(a.segments), len(b.segments))
	for i := 0; i < n; i++ {
		ap, bp := a.segments[i].IsParam(), b.segments[i].IsParam()
		if ap != bp {
			return bp, true
		}
	}
	return false, false
}
