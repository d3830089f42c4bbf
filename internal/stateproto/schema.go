package stateproto

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const batchSchemaURL = "https://civscope.ai/schemas/state_batch.schema.json"

//go:embed state_batch.schema.json
var batchSchemaJSON string

var (
	batchOnce   sync.Once
	batchSchema *jsonschema.Schema
	batchErr    error
)

// BatchSchema returns the compiled /api/state schema.
func BatchSchema() (*jsonschema.Schema, error) {
	batchOnce.Do(func() {
		batchSchema, batchErr = jsonschema.CompileString(batchSchemaURL, batchSchemaJSON)
	})
	return batchSchema, batchErr
}

// Validate checks a raw batch document against the schema.
func Validate(raw []byte) error {
	s, err := BatchSchema()
	if err != nil {
		return fmt.Errorf("compile batch schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("parse batch: %w", err)
	}
	return s.Validate(doc)
}

func DecodeBatch(raw []byte) (StateBatch, error) {
	var b StateBatch
	if err := json.Unmarshal(raw, &b); err != nil {
		return StateBatch{}, fmt.Errorf("decode batch: %w", err)
	}
	return b, nil
}
