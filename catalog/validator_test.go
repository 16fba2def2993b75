package catalog_test

import (
	"testing"

	"github.com/xraph/catcher/catalog"
)

func TestValidatorNilSchema(t *testing.T) {
	v := catalog.NewValidator()

	if err := v.Validate(nil, []byte(`not json`)); err != nil {
		t.Fatal("nil schema should skip validation, got:", err)
	}
}

func TestValidatorMapSchema(t *testing.T) {
	v := catalog.NewValidator()

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount":   map[string]any{"type": "number"},
			"currency": map[string]any{"type": "string"},
		},
		"required": []any{"amount", "currency"},
	}

	if err := v.Validate(schema, []byte(`{"amount":100.50,"currency":"USD"}`)); err != nil {
		t.Fatal("valid payload should pass, got:", err)
	}
	if err := v.Validate(schema, []byte(`{"amount":"100"}`)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidatorCaching(t *testing.T) {
	v := catalog.NewValidator()
	schema := []byte(`{"type":"object","properties":{"x":{"type":"string"}}}`)

	first, err := v.Compile(schema)
	if err != nil {
		t.Fatal(err)
	}
	second, err := v.Compile(string(schema))
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("expected the compiled schema to be reused")
	}
}
