package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates payloads against JSON Schema definitions.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema // keyed by schema digest
}

// NewValidator creates a new schema validator.
func NewValidator() *Validator {
	return &Validator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Compile parses and compiles a schema given as raw JSON, a JSON string, or
// any value that marshals to a schema document.
func (v *Validator) Compile(schema any) (*jsonschema.Schema, error) {
	raw, err := schemaBytes(schema)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(raw)
	key := hex.EncodeToString(sum[:])

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	url := "catcher://schema/" + key

	c := jsonschema.NewCompiler()
	if addErr := c.AddResource(url, doc); addErr != nil {
		return nil, fmt.Errorf("add schema resource: %w", addErr)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.mu.Lock()
	v.cache[key] = compiled
	v.mu.Unlock()

	return compiled, nil
}

// Validate checks a raw JSON payload against the schema. A nil schema skips
// validation; a payload that is not JSON fails it.
func (v *Validator) Validate(schema any, payload []byte) error {
	if schema == nil {
		return nil
	}

	compiled, err := v.Compile(schema)
	if err != nil {
		return fmt.Errorf("schema compilation error: %w", err)
	}

	return v.validateCompiled(compiled, payload)
}

func (v *Validator) validateCompiled(compiled *jsonschema.Schema, payload []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: payload is not JSON: %w", ErrSchemaViolation, err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	return nil
}

func schemaBytes(schema any) ([]byte, error) {
	switch s := schema.(type) {
	case []byte:
		return s, nil
	case json.RawMessage:
		return s, nil
	case string:
		return []byte(s), nil
	default:
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		return raw, nil
	}
}
