package kb

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// JSON Schemas for the three history record kinds. IDs must follow the
// PREFIX-YYYYMMDDHHMMSS-xxxx shape produced by newRecordID.
const (
	bugSchemaJSON = `{
		"type": "object",
		"required": ["id", "title", "severity", "status"],
		"properties": {
			"id": {"type": "string", "pattern": "^BUG-\\d{14}-[a-f0-9]{4}$"},
			"title": {"type": "string", "minLength": 1, "maxLength": 200},
			"description": {"type": "string"},
			"root_cause": {"type": "string"},
			"solution": {"type": "string"},
			"files_changed": {"type": "array", "items": {"type": "string"}},
			"tags": {"type": "array", "items": {"type": "string"}},
			"severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
			"status": {"type": "string", "enum": ["open", "in-progress", "resolved", "closed"]}
		}
	}`

	requirementSchemaJSON = `{
		"type": "object",
		"required": ["id", "title", "priority", "status"],
		"properties": {
			"id": {"type": "string", "pattern": "^REQ-\\d{14}-[a-f0-9]{4}$"},
			"title": {"type": "string", "minLength": 1, "maxLength": 200},
			"description": {"type": "string"},
			"priority": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
			"status": {"type": "string", "enum": ["planned", "in-progress", "completed", "cancelled"]},
			"tags": {"type": "array", "items": {"type": "string"}}
		}
	}`

	decisionSchemaJSON = `{
		"type": "object",
		"required": ["id", "title", "status"],
		"properties": {
			"id": {"type": "string", "pattern": "^DEC-\\d{14}-[a-f0-9]{4}$"},
			"title": {"type": "string", "minLength": 1, "maxLength": 200},
			"context": {"type": "string"},
			"decision": {"type": "string"},
			"consequences": {"type": "string"},
			"status": {"type": "string", "enum": ["proposed", "accepted", "rejected", "deprecated"]},
			"tags": {"type": "array", "items": {"type": "string"}}
		}
	}`
)

var (
	schemaOnce sync.Once
	schemas    map[string]*gojsonschema.Schema
	schemaErr  error
)

func compiledSchemas() (map[string]*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		sources := map[string]string{
			"bug":         bugSchemaJSON,
			"requirement": requirementSchemaJSON,
			"decision":    decisionSchemaJSON,
		}
		schemas = make(map[string]*gojsonschema.Schema, len(sources))
		for kind, src := range sources {
			s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
			if err != nil {
				schemaErr = fmt.Errorf("failed to compile %s schema: %w", kind, err)
				return
			}
			schemas[kind] = s
		}
	})
	return schemas, schemaErr
}

// Validate checks a record of the given kind against its schema.
// Returns (true, "") when valid, otherwise (false, message) with all
// violations joined so callers can batch-report them.
func Validate(kind string, record any) (bool, string) {
	compiled, err := compiledSchemas()
	if err != nil {
		return false, err.Error()
	}
	schema, ok := compiled[kind]
	if !ok {
		return false, fmt.Sprintf("unknown record kind %q", kind)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(record))
	if err != nil {
		return false, fmt.Sprintf("validation failed: %v", err)
	}
	if result.Valid() {
		return true, ""
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return false, strings.Join(msgs, "; ")
}

// ValidateBug checks a bug record against its schema.
func ValidateBug(bug Bug) (bool, string) {
	doc, err := toDocument(bug)
	if err != nil {
		return false, err.Error()
	}
	return Validate("bug", doc)
}

// ValidateRequirement checks a requirement record against its schema.
func ValidateRequirement(req Requirement) (bool, string) {
	doc, err := toDocument(req)
	if err != nil {
		return false, err.Error()
	}
	return Validate("requirement", doc)
}

// ValidateDecision checks a decision record against its schema.
func ValidateDecision(dec Decision) (bool, string) {
	doc, err := toDocument(dec)
	if err != nil {
		return false, err.Error()
	}
	return Validate("decision", doc)
}
