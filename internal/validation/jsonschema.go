// Package validation provides JSON Schema validation for the SDD and WSpec
// wire-format documents, on top of the structural checks internal/compiler
// already performs against the parsed Go types.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/weaver/pkg/schema"
)

// sddSchemaJSON is the JSON Schema for an SDDDocument (spec.md §6).
// Embedded as a constant to avoid filesystem dependencies.
const sddSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://weaver.dev/schemas/sdd.json",
  "type": "object",
  "required": ["nodes", "bundles", "ordering"],
  "properties": {
    "nodes": {
      "type": "object",
      "additionalProperties": { "$ref": "#/$defs/node" }
    },
    "bundles": {
      "type": "array",
      "items": { "$ref": "#/$defs/bundle" }
    },
    "ordering": {
      "type": "array",
      "items": {
        "type": "array",
        "items": { "type": "array", "items": { "type": "string" } }
      }
    },
    "flow_partition": { "$ref": "#/$defs/partition" },
    "time_partition": { "$ref": "#/$defs/partition" }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["kind", "direction"],
      "properties": {
        "kind": { "type": "string", "enum": ["process_group", "waypoint"] },
        "processes": { "type": "array", "items": { "type": "string" } },
        "partition": { "$ref": "#/$defs/partition" },
        "direction": { "type": "string", "enum": ["L", "R"] },
        "title": { "type": "string" },
        "style": { "type": "string" }
      },
      "additionalProperties": false
    },
    "bundle": {
      "type": "object",
      "required": ["source", "target"],
      "properties": {
        "source": { "type": ["string", "null"] },
        "target": { "type": ["string", "null"] },
        "waypoints": { "type": "array", "items": { "type": "string" } },
        "flow_selection": { "type": "string" },
        "flow_partition": { "$ref": "#/$defs/partition" }
      },
      "additionalProperties": false
    },
    "partition": {
      "type": "object",
      "required": ["dimension", "groups"],
      "properties": {
        "dimension": { "type": "string" },
        "groups": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["label", "values"],
            "properties": {
              "label": { "type": "string" },
              "values": { "type": "array", "items": { "type": "string" } }
            },
            "additionalProperties": false
          }
        }
      },
      "additionalProperties": false
    }
  }
}`

// wspecSchemaJSON is the JSON Schema for a WSpecDocument (spec.md §6).
const wspecSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://weaver.dev/schemas/wspec.json",
  "type": "object",
  "required": ["version", "nodes", "groups", "edges", "ordering", "measures", "display", "routing_tree"],
  "properties": {
    "version": { "type": "string" },
    "nodes": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["title", "type", "direction"],
        "properties": {
          "title": { "type": "string" },
          "type": { "type": "string", "enum": ["process", "waypoint"] },
          "group": { "type": "string" },
          "style": { "type": "string" },
          "direction": { "type": "string", "enum": ["L", "R"] },
          "hidden": { "type": "boolean" }
        }
      }
    },
    "groups": { "type": "array" },
    "edges": { "type": "array" },
    "ordering": { "type": "array" },
    "measures": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["column", "aggregation"],
        "properties": {
          "column": { "type": "string" },
          "aggregation": { "type": "string", "enum": ["sum", "mean"] }
        }
      }
    },
    "display": { "type": "object" },
    "routing_tree": { "type": "object" },
    "runtime_filters": {
      "type": "object",
      "additionalProperties": { "type": "string" }
    }
  },
  "additionalProperties": false
}`

// JSONSchemaValidator validates SDD and WSpec wire documents against their
// JSON Schemas, plus dynamically supplied schemas (e.g. a dataset projection
// contract). Safe for concurrent use.
type JSONSchemaValidator struct {
	sddSchema   *jsonschema.Schema
	wspecSchema *jsonschema.Schema

	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the SDD and
// WSpec schemas pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	sddSchema, err := compileConst("https://weaver.dev/schemas/sdd.json", sddSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile SDD schema: %w", err)
	}
	wspecSchema, err := compileConst("https://weaver.dev/schemas/wspec.json", wspecSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile WSpec schema: %w", err)
	}

	return &JSONSchemaValidator{
		sddSchema:   sddSchema,
		wspecSchema: wspecSchema,
		cache:       make(map[string]*jsonschema.Schema),
	}, nil
}

func compileConst(url, schemaJSON string) (*jsonschema.Schema, error) {
	c := newWeaverCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(url)
}

// ValidateSDDDocument validates a decoded SDD wire document against its
// JSON Schema. Callers typically run this before Compile, to reject
// malformed input with precise field-level errors rather than a generic
// unmarshal failure.
func (v *JSONSchemaValidator) ValidateSDDDocument(doc any) error {
	return v.validate(v.sddSchema, doc)
}

// ValidateWSpecDocument validates a decoded WSpec wire document against its
// JSON Schema — used by pkg/mcp's weaver.execute on the caller-supplied
// spec rather than trusting it came from Compile. Specs read back from the
// WSpec cache are not passed through it.
func (v *JSONSchemaValidator) ValidateWSpecDocument(doc any) error {
	return v.validate(v.wspecSchema, doc)
}

func (v *JSONSchemaValidator) validate(s *jsonschema.Schema, doc any) error {
	jv, err := toJSONValue(doc)
	if err != nil {
		return schema.NewWeaverError(schema.CodeSchemaValidation, "failed to serialize document").WithCause(err)
	}
	if err := s.Validate(jv); err != nil {
		return toWeaverError(err)
	}
	return nil
}

// ValidateAgainst validates input against a dynamically supplied JSON
// Schema, provided as raw bytes. The schema is compiled once and cached for
// subsequent calls with the same schema text. Nothing in this module calls
// it outside its tests.
func (v *JSONSchemaValidator) ValidateAgainst(input any, rawSchema []byte) error {
	if len(rawSchema) == 0 {
		return nil
	}

	compiled, err := v.getOrCompile(rawSchema)
	if err != nil {
		return schema.NewWeaverError(schema.CodeSchemaValidation, "invalid schema").WithCause(err)
	}

	doc, err := toJSONValue(input)
	if err != nil {
		return schema.NewWeaverError(schema.CodeSchemaValidation, "failed to serialize input").WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toWeaverError(err)
	}
	return nil
}

func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	url := fmt.Sprintf("weaver://dynamic-schema/%d", len(v.cache))
	c := newWeaverCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

func newWeaverCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toWeaverError converts a jsonschema.ValidationError into a WeaverError
// with a precise per-field violation list.
func toWeaverError(err error) *schema.WeaverError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewWeaverError(schema.CodeSchemaValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewWeaverError(schema.CodeSchemaValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewWeaverError(schema.CodeSchemaValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewWeaverError(schema.CodeSchemaValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
