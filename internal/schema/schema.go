// Package schema validates inbound request bodies against JSON Schema
// (Draft 7) documents attached to endpoints.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrSchemaInvalid marks a schema document that cannot be compiled.
var ErrSchemaInvalid = errors.New("schema invalid")

const resourceName = "request.schema.json"

// Schema is a compiled, immutable schema. Safe for concurrent use.
type Schema struct {
	compiled *jsonschema.Schema
}

// Violation is one failed constraint.
type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

func (v Violation) String() string {
	field := v.Field
	if field == "" {
		field = "root"
	}
	return fmt.Sprintf("Validation failed at '%s': %s", field, v.Message)
}

// Compile parses and compiles schemaText.
func Compile(schemaText string) (*Schema, error) {
	if strings.TrimSpace(schemaText) == "" {
		return nil, fmt.Errorf("%w: empty document", ErrSchemaInvalid)
	}
	if !json.Valid([]byte(schemaText)) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrSchemaInvalid)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(resourceName, strings.NewReader(schemaText)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	return &Schema{compiled: compiled}, nil
}

// Check reports whether schemaText is a usable schema.
func Check(schemaText string) error {
	_, err := Compile(schemaText)
	return err
}

// Validate checks body and returns every violation found. An empty body is
// validated as JSON null; a body that is not JSON yields a single "json"
// violation.
func (s *Schema) Validate(body []byte) []Violation {
	var doc any
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil || dec.More() {
			msg := "request body is not valid JSON"
			if err != nil {
				msg = fmt.Sprintf("request body is not valid JSON: %v", err)
			}
			return []Violation{{Constraint: "json", Message: msg}}
		}
	}

	err := s.compiled.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []Violation{{Constraint: "schema", Message: err.Error()}}
	}

	var out []Violation
	collect(verr, &out)
	if len(out) == 0 {
		out = append(out, Violation{Constraint: "schema", Message: verr.Message})
	}
	return out
}

func collect(err *jsonschema.ValidationError, out *[]Violation) {
	if len(err.Causes) == 0 {
		*out = append(*out, Violation{
			Field:      fieldFromPointer(err.InstanceLocation),
			Constraint: constraintFromKeyword(err.KeywordLocation),
			Message:    err.Message,
		})
		return
	}
	for _, cause := range err.Causes {
		collect(cause, out)
	}
}

// fieldFromPointer converts a JSON pointer (/user/emails/0) to dotted form.
func fieldFromPointer(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}

func constraintFromKeyword(loc string) string {
	loc = strings.TrimRight(loc, "/")
	if i := strings.LastIndex(loc, "/"); i >= 0 {
		loc = loc[i+1:]
	}
	if loc == "" {
		return "schema"
	}
	return loc
}
