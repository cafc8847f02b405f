package authority

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed intent.schema.json
var admitRequestSchemaJSON string

const admitRequestSchemaURL = "admit-request-v1.json"

var (
	schemaOnce         sync.Once
	admitRequestSchema *jsonschema.Schema
	schemaErr          error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		admitRequestSchema, schemaErr = jsonschema.CompileString(admitRequestSchemaURL, admitRequestSchemaJSON)
	})
	return admitRequestSchema, schemaErr
}

// Validate checks an encoded admit request against the embedded schema.
// A failure means the gate built an intent the authority would reject:
// an empty file path or a non-positive line number.
func Validate(body []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile admit request schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(body, &instance); err != nil {
		return fmt.Errorf("decode admit request: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("admit request does not match schema: %w", err)
	}
	return nil
}
