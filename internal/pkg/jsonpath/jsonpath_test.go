package jsonpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	doc, err := Parse([]byte(`{"hooks":{"url":"http://x/cb","retries":3},"tags":["a"]}`))
	require.NoError(t, err)

	s, ok := LookupString(doc, "hooks.url")
	assert.True(t, ok)
	assert.Equal(t, "http://x/cb", s)

	_, ok = LookupString(doc, "hooks.retries")
	assert.False(t, ok, "non-string value")

	v, ok := Lookup(doc, "hooks.retries")
	assert.True(t, ok)
	assert.EqualValues(t, 3, v)

	_, ok = Lookup(doc, "hooks.missing")
	assert.False(t, ok)
	_, ok = Lookup(doc, "a..b")
	assert.False(t, ok)
}

func TestParseEmpty(t *testing.T) {
	doc, err := Parse([]byte("  "))
	assert.NoError(t, err)
	assert.Nil(t, doc)

	_, err = Parse([]byte("{nope"))
	assert.Error(t, err)
}
