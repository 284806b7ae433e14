package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userSchema = `{
  "type": "object",
  "required": ["email", "age"],
  "properties": {
    "email": {"type": "string", "minLength": 3},
    "age": {"type": "integer", "minimum": 18}
  }
}`

func TestValidatePasses(t *testing.T) {
	s, err := Compile(userSchema)
	require.NoError(t, err)
	assert.Empty(t, s.Validate([]byte(`{"email":"a@b.c","age":21}`)))
}

func TestValidateReportsViolations(t *testing.T) {
	s, err := Compile(userSchema)
	require.NoError(t, err)

	vs := s.Validate([]byte(`{"email":"x","age":12}`))
	require.Len(t, vs, 2)

	byField := map[string]Violation{}
	for _, v := range vs {
		byField[v.Field] = v
	}
	assert.Equal(t, "minLength", byField["email"].Constraint)
	assert.Equal(t, "minimum", byField["age"].Constraint)
	assert.Contains(t, byField["age"].String(), "Validation failed at 'age'")
}

func TestValidateMissingRequired(t *testing.T) {
	s, err := Compile(userSchema)
	require.NoError(t, err)

	vs := s.Validate([]byte(`{"email":"abc"}`))
	require.NotEmpty(t, vs)
	assert.Equal(t, "required", vs[0].Constraint)
	assert.Equal(t, "", vs[0].Field)
}

func TestValidateNonJSONAndEmpty(t *testing.T) {
	s, err := Compile(userSchema)
	require.NoError(t, err)

	vs := s.Validate([]byte(`not json`))
	require.Len(t, vs, 1)
	assert.Equal(t, "json", vs[0].Constraint)

	vs = s.Validate(nil)
	require.Len(t, vs, 1)
	assert.Equal(t, "type", vs[0].Constraint)

	anything, err := Compile(`{}`)
	require.NoError(t, err)
	assert.Empty(t, anything.Validate(nil))
}

func TestCompileRejectsBrokenSchema(t *testing.T) {
	for _, doc := range []string{"", "{", `{"type": 12}`} {
		err := Check(doc)
		require.Error(t, err, doc)
		assert.True(t, errors.Is(err, ErrSchemaInvalid))
	}
}
