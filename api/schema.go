package api

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed game_request.schema.json
var gameRequestSchema string

const gameRequestSchemaURL = "game_request.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// RequestSchema returns the compiled schema for turn payloads.
func RequestSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(gameRequestSchemaURL, strings.NewReader(gameRequestSchema)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(gameRequestSchemaURL)
	})
	return compiled, compileErr
}

// ValidateGameRequest checks raw JSON against the turn payload schema.
func ValidateGameRequest(raw []byte) error {
	schema, err := RequestSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}
