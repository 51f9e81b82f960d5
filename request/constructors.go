package request

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	declare "github.com/goliatone/go-declare"
	"github.com/goliatone/go-declare/completion"
	"github.com/goliatone/go-declare/schema"
)

const (
	StaticIdentity     = "constructor:static-request"
	JSONIdentity       = "constructor:json-request"
	HistoryBotIdentity = "constructor:history-bot"

	StaticPrefix     = "static-request:"
	JSONPrefix       = "json-request:"
	HistoryBotPrefix = "bot:history-"
)

// Data is the persisted form of a static or JSON request. Result holds the
// cached reply once the request has run.
type Data struct {
	SystemCore string `json:"systemCore"`
	Prompt     string `json:"prompt"`
	Result     any    `json:"result,omitempty"`
}

// Static declares a free-text request. Its instance is the reply string.
func (c *Compiler) Static(systemCore, prompt string) declare.Declaration {
	return declare.Declaration{
		Constructor: c.static,
		Data:        Data{SystemCore: c.core(systemCore), Prompt: prompt},
	}
}

// JSON declares a request whose reply is decoded as JSON. s is used for the
// decoder's shape check only; it is not part of the cache key.
func (c *Compiler) JSON(systemCore, prompt string, s schema.Schema) declare.Declaration {
	return declare.Declaration{
		Constructor: &jsonConstructor{compiler: c, schema: s},
		Data:        Data{SystemCore: c.core(systemCore), Prompt: prompt},
	}
}

func (c *Compiler) core(systemCore string) string {
	if systemCore == "" {
		return c.systemCore
	}
	return systemCore
}

var requestPolicy = declare.WhenChanged("systemCore", "prompt")

// rebuilding returns decl with a constructor that also rebuilds when policy
// asks for it.
func rebuilding(decl declare.Declaration, policy declare.UpdatePolicy) declare.Declaration {
	if !policy.Conditional() {
		return decl
	}
	switch k := decl.Constructor.(type) {
	case *staticConstructor:
		decl.Constructor = &staticConstructor{compiler: k.compiler, rebuild: policy}
	case *jsonConstructor:
		decl.Constructor = &jsonConstructor{compiler: k.compiler, schema: k.schema, rebuild: policy}
	}
	return decl
}

type staticConstructor struct {
	compiler *Compiler
	rebuild  declare.UpdatePolicy
}

func (*staticConstructor) Identity() string              { return StaticIdentity }
func (*staticConstructor) GenerateID(name string) string { return StaticPrefix + name }
func (k *staticConstructor) UpdatePolicy() declare.UpdatePolicy {
	return declare.AnyOf(requestPolicy, k.rebuild)
}

func (k *staticConstructor) Create(ctx context.Context, id string, raw any) (*declare.Resource, error) {
	data, err := declare.DecodeData[Data](id, raw)
	if err != nil {
		return nil, err
	}
	result, _ := data.Result.(string)
	if result == "" {
		start := time.Now()
		result, err = k.compiler.service.Complete(ctx, []completion.Message{
			completion.System(data.SystemCore),
			completion.User(data.Prompt),
		})
		if err != nil {
			return nil, err
		}
		if result == "" {
			return nil, &completion.Error{Provider: id, Err: completion.ErrEmptyReply}
		}
		k.compiler.logger.Debug("static request completed", zap.String("id", id), zap.Duration("duration", time.Since(start)))
	}
	return &declare.Resource{
		ConstructorID: StaticIdentity,
		Instance:      result,
		Serialize: func() any {
			return Data{SystemCore: data.SystemCore, Prompt: data.Prompt, Result: result}
		},
	}, nil
}

type jsonConstructor struct {
	compiler *Compiler
	schema   schema.Schema
	rebuild  declare.UpdatePolicy
}

func (*jsonConstructor) Identity() string              { return JSONIdentity }
func (*jsonConstructor) GenerateID(name string) string { return JSONPrefix + name }
func (k *jsonConstructor) UpdatePolicy() declare.UpdatePolicy {
	return declare.AnyOf(requestPolicy, k.rebuild)
}

func (k *jsonConstructor) Create(ctx context.Context, id string, raw any) (*declare.Resource, error) {
	data, err := declare.DecodeData[Data](id, raw)
	if err != nil {
		return nil, err
	}
	result := data.Result
	if result == nil {
		start := time.Now()
		result, err = k.compiler.decoder.Complete(ctx, k.schema,
			completion.System(data.SystemCore),
			completion.User(data.Prompt),
		)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", id, err)
		}
		k.compiler.logger.Debug("json request completed", zap.String("id", id), zap.Duration("duration", time.Since(start)))
	}
	return &declare.Resource{
		ConstructorID: JSONIdentity,
		Instance:      result,
		Serialize: func() any {
			return Data{SystemCore: data.SystemCore, Prompt: data.Prompt, Result: result}
		},
	}, nil
}
