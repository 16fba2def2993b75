// Package catalog holds the JSON Schemas that ingested payloads are checked
// against, keyed by target pattern.
//
// Targets without a matching schema accept any payload. When several
// patterns match, the most specific one applies.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrSchemaViolation is returned when a payload does not conform to the
// schema registered for its target.
var ErrSchemaViolation = errors.New("catalog: payload does not match schema")

type entry struct {
	pattern string
	schema  *jsonschema.Schema
}

// Catalog maps target patterns to compiled schemas. It is safe for
// concurrent use.
type Catalog struct {
	validator *Validator
	mu        sync.RWMutex
	entries   []entry // sorted most specific first
	logger    *slog.Logger
}

// NewCatalog creates an empty Catalog.
func NewCatalog(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{validator: NewValidator(), logger: logger}
}

// Register compiles schema and binds it to pattern, replacing any schema
// previously registered for the same pattern.
func (c *Catalog) Register(pattern string, schema any) error {
	if pattern == "" {
		return errors.New("catalog: empty target pattern")
	}
	compiled, err := c.validator.Compile(schema)
	if err != nil {
		return fmt.Errorf("catalog: register %q: %w", pattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	replaced := false
	for i := range c.entries {
		if c.entries[i].pattern == pattern {
			c.entries[i].schema = compiled
			replaced = true
			break
		}
	}
	if !replaced {
		c.entries = append(c.entries, entry{pattern: pattern, schema: compiled})
		sort.SliceStable(c.entries, func(i, j int) bool {
			return specificity(c.entries[i].pattern) > specificity(c.entries[j].pattern)
		})
	}

	c.logger.Debug("schema registered", "pattern", pattern, "replaced", replaced)
	return nil
}

// Lookup returns the pattern governing target, if any.
func (c *Catalog) Lookup(target string) (string, bool) {
	e, ok := c.lookup(target)
	return e.pattern, ok
}

func (c *Catalog) lookup(target string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if Match(e.pattern, target) {
			return e, true
		}
	}
	return entry{}, false
}

// Validate checks payload against the schema governing target. Targets
// without a schema accept anything.
func (c *Catalog) Validate(target string, payload []byte) error {
	e, ok := c.lookup(target)
	if !ok {
		return nil
	}
	if err := c.validator.validateCompiled(e.schema, payload); err != nil {
		return fmt.Errorf("target %q (schema %q): %w", target, e.pattern, err)
	}
	return nil
}
