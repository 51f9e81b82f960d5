// Package shape converts schema trees into JSON Schema documents and checks
// decoded values against them.
package shape

import (
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/goliatone/go-declare/schema"
)

// ErrMismatch reports a decoded value whose shape differs from its schema.
var ErrMismatch = errors.New("shape: value does not match schema")

// Option configures generation.
type Option func(*config)

type config struct {
	requireAll bool
	title      string
}

// WithOptionalFields stops marking object fields as required.
func WithOptionalFields() Option {
	return func(cfg *config) {
		cfg.requireAll = false
	}
}

// WithTitle sets the root title of the generated document.
func WithTitle(title string) Option {
	return func(cfg *config) {
		cfg.title = title
	}
}

func applyOptions(opts []Option) config {
	cfg := config{requireAll: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Generate builds a JSON Schema document for s. Text nodes map to strings,
// objects to objects with one property per field and lists to arrays.
func Generate(s schema.Schema, opts ...Option) (*jsonschema.Schema, error) {
	if err := schema.Validate(s); err != nil {
		return nil, err
	}
	cfg := applyOptions(opts)
	out := schema.Visit[*jsonschema.Schema](s, generator{cfg: cfg})
	if cfg.title != "" {
		out.Title = cfg.title
	}
	return out, nil
}

type generator struct {
	cfg config
}

func (generator) VisitText(s *schema.TextSchema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: s.Description(),
	}
}

func (g generator) VisitObject(s *schema.ObjectSchema) *jsonschema.Schema {
	fields := s.Fields()
	out := &jsonschema.Schema{
		Type:        "object",
		Description: s.Description(),
		Properties:  make(map[string]*jsonschema.Schema, len(fields)),
	}
	for _, field := range fields {
		out.Properties[field.Name] = schema.Visit[*jsonschema.Schema](field.Schema, g)
		if g.cfg.requireAll {
			out.Required = append(out.Required, field.Name)
		}
	}
	return out
}

func (g generator) VisitList(s *schema.ListSchema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: s.Description(),
		Items:       schema.Visit[*jsonschema.Schema](s.Item(), g),
	}
}

// Checker validates decoded values against one schema. It is safe for
// concurrent use.
type Checker struct {
	resolved *jsonschema.Resolved
}

// NewChecker generates and resolves the JSON Schema for s.
func NewChecker(s schema.Schema, opts ...Option) (*Checker, error) {
	doc, err := Generate(s, opts...)
	if err != nil {
		return nil, err
	}
	resolved, err := doc.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("shape: resolve: %w", err)
	}
	return &Checker{resolved: resolved}, nil
}

// Check reports ErrMismatch when value does not conform.
func (c *Checker) Check(value any) error {
	if c == nil || c.resolved == nil {
		return nil
	}
	if err := c.resolved.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	return nil
}

// Check is a convenience wrapper around NewChecker(s).Check(value).
func Check(s schema.Schema, value any) error {
	checker, err := NewChecker(s)
	if err != nil {
		return err
	}
	return checker.Check(value)
}
