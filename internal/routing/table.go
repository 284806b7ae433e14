package routing

import "strings"

// Route is anything the table can dispatch to.
type Route interface {
	Method() string
	Template() Template
	// Servable reports whether the route can take traffic right now.
	Servable() bool
}

// Table holds the routes of one entity in declaration order. It is immutable;
// build a new one on every change.
type Table[R Route] struct {
	routes []R
}

func NewTable[R Route](routes []R) *Table[R] {
	cp := make([]R, len(routes))
	copy(cp, routes)
	return &Table[R]{routes: cp}
}

func (t *Table[R]) Routes() []R {
	if t == nil {
		return nil
	}
	return t.routes
}

func (t *Table[R]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.routes)
}

// Match returns the most specific servable route for method and path. Among
// equally specific candidates the earliest declared wins.
func (t *Table[R]) Match(method, path string) (R, map[string]string, bool) {
	r, _, params, ok := MatchView(t, func(r R) R { return r }, method, path)
	return r, params, ok
}

// MatchView is Match evaluated against view(r) rather than r. view runs once
// per route, so every check on a candidate sees the same value, and the
// winning view is returned next to its route.
func MatchView[R Route, V Route](t *Table[R], view func(R) V, method, path string) (R, V, map[string]string, bool) {
	var (
		best       R
		bestView   V
		bestParams map[string]string
		found      bool
	)
	if t == nil {
		return best, bestView, nil, false
	}

	method = strings.ToUpper(method)
	for _, r := range t.routes {
		v := view(r)
		if !strings.EqualFold(v.Method(), method) || !v.Servable() {
			continue
		}
		params, ok := v.Template().Match(path)
		if !ok {
			continue
		}
		if !found {
			best, bestView, bestParams, found = r, v, params, true
			continue
		}
		if wins, decided := moreSpecific(v.Template(), bestView.Template()); decided && wins {
			best, bestView, bestParams = r, v, params
		}
	}
	return best, bestView, bestParams, found
}
