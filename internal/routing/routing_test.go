package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRoute struct {
	name     string
	method   string
	tmpl     Template
	servable bool
}

func (r testRoute) Method() string     { return r.method }
func (r testRoute) Template() Template { return r.tmpl }
func (r testRoute) Servable() bool     { return r.servable }

func route(name, method, path string) testRoute {
	return testRoute{name: name, method: method, tmpl: MustParse(path), servable: true}
}

func TestTemplateMatchExtractsParams(t *testing.T) {
	tmpl := MustParse("/users/{id}/orders/{orderId}")

	params, ok := tmpl.Match("/users/42/orders/A7")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "42", "orderId": "A7"}, params)

	_, ok = tmpl.Match("/users/42/orders")
	assert.False(t, ok)
	_, ok = tmpl.Match("/users//orders/A7")
	assert.False(t, ok)
}

func TestTemplateTrailingSlashInsignificant(t *testing.T) {
	tmpl := MustParse("/users/")
	_, ok := tmpl.Match("/users")
	assert.True(t, ok)
	_, ok = tmpl.Match("users/")
	assert.True(t, ok)
}

func TestParseRejectsBadTemplates(t *testing.T) {
	for _, raw := range []string{"/a/{id}/b/{id}", "/a/{1x}", "/a//b"} {
		_, err := Parse(raw)
		assert.Error(t, err, raw)
	}

	tmpl, err := Parse("/files/v{n}")
	require.NoError(t, err)
	assert.False(t, tmpl.Segments()[1].IsParam())
}

func TestTableLiteralBeatsParam(t *testing.T) {
	table := NewTable([]testRoute{
		route("param", "GET", "/users/{id}"),
		route("literal", "GET", "/users/me"),
	})

	r, params, ok := table.Match("GET", "/users/me")
	require.True(t, ok)
	assert.Equal(t, "literal", r.name)
	assert.Empty(t, params)

	r, params, ok = table.Match("get", "/users/7")
	require.True(t, ok)
	assert.Equal(t, "param", r.name)
	assert.Equal(t, "7", params["id"])
}

func TestTableTieBreaksByDeclarationOrder(t *testing.T) {
	table := NewTable([]testRoute{
		route("first", "GET", "/items/{a}"),
		route("second", "GET", "/items/{b}"),
	})

	r, _, ok := table.Match("GET", "/items/1")
	require.True(t, ok)
	assert.Equal(t, "first", r.name)
}

func TestTableSkipsMethodAndUnservable(t *testing.T) {
	off := route("off", "GET", "/health")
	off.servable = false
	table := NewTable([]testRoute{off, route("post", "POST", "/health")})

	_, _, ok := table.Match("GET", "/health")
	assert.False(t, ok)

	r, _, ok := table.Match("POST", "/health")
	require.True(t, ok)
	assert.Equal(t, "post", r.name)
}

type slot struct {
	loads int
	cur   testRoute
}

func (s *slot) Method() string     { return s.cur.method }
func (s *slot) Template() Template { return s.cur.tmpl }
func (s *slot) Servable() bool     { return s.cur.servable }

func TestMatchViewLoadsEachRouteOnce(t *testing.T) {
	a := &slot{cur: route("a", "GET", "/items/{id}")}
	b := &slot{cur: route("b", "GET", "/items/new")}
	table := NewTable([]*slot{a, b})

	load := func(s *slot) testRoute {
		s.loads++
		v := s.cur
		// later reads of the slot observe an unservable route
		s.cur.servable = false
		return v
	}
	sl, v, params, ok := MatchView(table, load, "GET", "/items/new")
	require.True(t, ok)
	assert.Same(t, b, sl)
	assert.Equal(t, "b", v.name)
	assert.True(t, v.servable)
	assert.Empty(t, params)
	assert.Equal(t, 1, a.loads)
	assert.Equal(t, 1, b.loads)
}

func TestNilTable(t *testing.T) {
	var table *Table[testRoute]
	_, _, ok := table.Match("GET", "/")
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
}
