// Package placeholder renders {{token}} and {{token:arg1:arg2}} expressions in
// mock response bodies and callback payloads.
package placeholder

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mocklab/mockgate/internal/pkg/jsonpath"
)

// tokenRegex matches {{name}} or {{name:args}}. Names may be dotted for the
// request/response context tokens.
var tokenRegex = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_.\-]*)(?::([^}]*))?\}\}`)

// maxGeneratedLen caps string generators so a template cannot ask for
// megabytes of output.
const maxGeneratedLen = 4096

type genFunc func(args []string, rng *rand.Rand, now time.Time) (string, bool)

// Engine renders templates. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	now        func() time.Time
	generators map[string]genFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock fixes the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now, generators: builtinGenerators()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render replaces every recognised token in tmpl. Each occurrence is evaluated
// on its own, so two {{uuid}} tokens yield two different values. Unknown or
// malformed tokens are copied through unchanged. rng may be nil.
func (e *Engine) Render(tmpl string, ctx *Context, rng *rand.Rand) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	now := e.now().UTC()

	return tokenRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		m := tokenRegex.FindStringSubmatch(match)
		name := m[1]
		var args []string
		if strings.Contains(match, ":") {
			args = strings.Split(m[2], ":")
		}

		if strings.HasPrefix(name, "request.") || strings.HasPrefix(name, "response.") {
			if v, ok := resolveContext(name, ctx); ok {
				return v
			}
			return match
		}

		gen, ok := e.generators[name]
		if !ok {
			return match
		}
		v, ok := gen(args, rng, now)
		if !ok {
			return match
		}
		return v
	})
}

func resolveContext(name string, ctx *Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	switch {
	case name == "request.method":
		return ctx.Method, ctx.Method != ""
	case name == "request.path":
		return ctx.Path, ctx.Path != ""
	case strings.HasPrefix(name, "request.path."):
		v, ok := ctx.PathParams[strings.TrimPrefix(name, "request.path.")]
		return v, ok
	case strings.HasPrefix(name, "request.query."):
		vals := ctx.Query[strings.TrimPrefix(name, "request.query.")]
		if len(vals) == 0 {
			return "", false
		}
		return vals[0], true
	case strings.HasPrefix(name, "request.header."):
		if ctx.Headers == nil {
			return "", false
		}
		key := strings.TrimPrefix(name, "request.header.")
		if _, ok := ctx.Headers[http.CanonicalHeaderKey(key)]; !ok {
			return "", false
		}
		return ctx.Headers.Get(key), true
	case name == "request.body":
		return formatValue(ctx.Body, ctx.Body != nil)
	case strings.HasPrefix(name, "request.body."):
		return formatValue(jsonpath.Lookup(ctx.Body, strings.TrimPrefix(name, "request.body.")))
	case name == "response.status":
		if ctx.Response == nil {
			return "", false
		}
		return strconv.Itoa(ctx.Response.Status), true
	case name == "response.body":
		if ctx.Response == nil {
			return "", false
		}
		return formatValue(ctx.Response.Body, ctx.Response.Body != nil)
	case strings.HasPrefix(name, "response.body."):
		if ctx.Response == nil {
			return "", false
		}
		return formatValue(jsonpath.Lookup(ctx.Response.Body, strings.TrimPrefix(name, "response.body.")))
	}
	return "", false
}

// formatValue prints strings raw and everything else as compact JSON.
func formatValue(v any, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case nil:
		return "null", true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v), true
	}
	return string(b), true
}
