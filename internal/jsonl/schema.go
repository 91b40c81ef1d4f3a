package jsonl

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const transactionSchema = `{
  "type": "object",
  "required": ["type", "client", "tx"],
  "properties": {
    "type": {"type": "string", "minLength": 1},
    "client": {"type": "integer", "minimum": 0, "maximum": 65535},
    "tx": {"type": "integer", "minimum": 0, "maximum": 4294967295},
    "amount": {"type": ["string", "number", "null"]}
  }
}`

// schemaValidator checks the shape of a raw line before it is decoded.
type schemaValidator struct {
	schema *jsonschema.Schema
}

func newSchemaValidator() (*schemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("transaction.json", strings.NewReader(transactionSchema)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("transaction.json")
	if err != nil {
		return nil, err
	}
	return &schemaValidator{schema: schema}, nil
}

func (v *schemaValidator) validate(raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode transaction: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("transaction does not match schema: %w", err)
	}
	return nil
}
