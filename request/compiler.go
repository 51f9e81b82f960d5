// Package request compiles declarative steps into completion requests whose
// results are memoized by a declare.Store.
package request

import (
	"context"

	"go.uber.org/zap"

	declare "github.com/goliatone/go-declare"
	"github.com/goliatone/go-declare/completion"
	"github.com/goliatone/go-declare/structured"
)

// DefaultSystemCore frames every request unless overridden.
const DefaultSystemCore = "You are a creative assistant for fantasy stories."

// Declarer is the part of declare.Store the compiler needs.
type Declarer interface {
	Declare(ctx context.Context, name string, decl declare.Declaration) (any, error)
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithSystemCore replaces the default system framing.
func WithSystemCore(systemCore string) Option {
	return func(c *Compiler) {
		if systemCore != "" {
			c.systemCore = systemCore
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDecoder replaces the structured decoder built from the service.
func WithDecoder(decoder *structured.Decoder) Option {
	return func(c *Compiler) {
		if decoder != nil {
			c.decoder = decoder
		}
	}
}

// Compiler owns the request constructors and builds declarations for them.
type Compiler struct {
	service    completion.Service
	decoder    *structured.Decoder
	systemCore string
	logger     *zap.Logger

	static *staticConstructor
	json   *jsonConstructor
	bot    *historyBotConstructor
}

// New builds a Compiler sending requests to svc.
func New(svc completion.Service, opts ...Option) *Compiler {
	c := &Compiler{
		service:    svc,
		systemCore: DefaultSystemCore,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.decoder == nil {
		c.decoder = structured.NewDecoder(svc, structured.WithLogger(c.logger))
	}
	c.static = &staticConstructor{compiler: c}
	c.json = &jsonConstructor{compiler: c}
	c.bot = &historyBotConstructor{compiler: c}
	return c
}

// SystemCore returns the default system framing.
func (c *Compiler) SystemCore() string { return c.systemCore }

// Constructors lists the constructors a store must register to hydrate
// entries produced by this compiler.
func (c *Compiler) Constructors() []declare.Constructor {
	return []declare.Constructor{c.static, c.json, c.bot}
}

// Registry builds a registry holding Constructors.
func (c *Compiler) Registry() (*declare.Registry, error) {
	return declare.NewRegistry(c.Constructors()...)
}
