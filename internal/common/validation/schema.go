// Package validation checks inbound request bodies against JSON schemas.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names.
const (
	ChatRequest         = "chat_request"
	CreateConversation  = "create_conversation"
	CRMToolRequest      = "crm_tool_request"
	CRMQueryJobVariable = "crm_query_job"
)

var schemaSources = map[string]string{
	ChatRequest: `{
		"type": "object",
		"required": ["messages"],
		"properties": {
			"messages": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["role", "content"],
					"properties": {
						"role": {"type": "string", "enum": ["user", "assistant", "system"]},
						"content": {"type": "string"}
					}
				}
			},
			"conversationId": {"type": ["integer", "null"], "minimum": 1}
		}
	}`,
	CreateConversation: `{
		"type": "object",
		"properties": {
			"title": {"type": ["string", "null"], "maxLength": 200},
			"propertyId": {"type": ["integer", "null"], "minimum": 1}
		}
	}`,
	CRMToolRequest: `{
		"type": "object",
		"required": ["action"],
		"properties": {
			"action": {"type": "string", "minLength": 1},
			"params": {"type": ["object", "null"]}
		}
	}`,
	CRMQueryJobVariable: `{
		"type": "object",
		"required": ["question"],
		"properties": {
			"question": {"type": "string", "minLength": 1, "maxLength": 4000}
		}
	}`,
}

// FieldError is one schema violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error aggregates the violations of one document.
type Error struct {
	Schema string
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("%s validation failed: %s", e.Schema, strings.Join(parts, "; "))
}

// Validator holds the compiled schemas. It is safe for concurrent use.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(schemaSources))}
	for name, src := range schemaSources {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = s
	}
	return v, nil
}

// ValidateJSON validates a raw JSON document.
func (v *Validator) ValidateJSON(schema string, body []byte) error {
	return v.validate(schema, gojsonschema.NewBytesLoader(body))
}

// ValidateValue validates an already decoded value such as job variables.
func (v *Validator) ValidateValue(schema string, value interface{}) error {
	return v.validate(schema, gojsonschema.NewGoLoader(value))
}

func (v *Validator) validate(name string, doc gojsonschema.JSONLoader) error {
	s, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	result, err := s.Validate(doc)
	if err != nil {
		return &Error{Schema: name, Fields: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	if result.Valid() {
		return nil
	}
	verr := &Error{Schema: name}
	for _, re := range result.Errors() {
		verr.Fields = append(verr.Fields, FieldError{Field: re.Field(), Message: re.Description()})
	}
	return verr
}
