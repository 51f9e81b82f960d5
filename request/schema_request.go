package request

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	declare "github.com/goliatone/go-declare"
	"github.com/goliatone/go-declare/schema"
	"github.com/goliatone/go-declare/structured"
)

// Suffixes of the two entries declared by TwoStageSchemaRequest.
const (
	RawDataSuffix  = "--raw-data"
	JSONDataSuffix = "--json-data"
)

// Props describes one schema request. Input is any JSON-encodable value
// giving the model the context produced so far. Rebuild, when conditional,
// forces a cached entry to be requested again even though its prompt did not
// change; it applies to every entry the request declares.
type Props struct {
	Name    string
	Input   any
	Schema  schema.Schema
	Rebuild declare.UpdatePolicy
}

// Reserver is implemented by stores that can fix the declaration order of
// entries before they are declared.
type Reserver interface {
	Reserve(name string, c declare.Constructor)
}

func (p Props) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("request: name is required")
	}
	if err := schema.Validate(p.Schema); err != nil {
		return fmt.Errorf("request %s: %w", p.Name, err)
	}
	return nil
}

// SchemaRequest declares p.Name as a single JSON request asking for data
// matching p.Schema and returns the decoded value.
func (c *Compiler) SchemaRequest(ctx context.Context, store Declarer, p Props) (any, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	prompt, err := SchemaPrompt(p.Input, p.Schema)
	if err != nil {
		return nil, err
	}
	return store.Declare(ctx, p.Name, rebuilding(c.JSON("", prompt, p.Schema), p.Rebuild))
}

// ReserveSchemaRequest reserves the entries SchemaRequest declares for name,
// or those of TwoStageSchemaRequest when twoStage is set, in the order they
// are declared.
func (c *Compiler) ReserveSchemaRequest(store Reserver, name string, twoStage bool) {
	if twoStage {
		store.Reserve(name+RawDataSuffix, c.static)
		store.Reserve(name+JSONDataSuffix, c.json)
		return
	}
	store.Reserve(name, c.json)
}

// TwoStageSchemaRequest first asks for a free-text draft (cached as
// Name--raw-data) and then asks to extract JSON from it (cached as
// Name--json-data). Editing the input only reruns the stages whose prompt
// changed.
func (c *Compiler) TwoStageSchemaRequest(ctx context.Context, store Declarer, p Props) (any, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	prompt, err := DraftPrompt(p.Input, p.Schema)
	if err != nil {
		return nil, err
	}
	v, err := store.Declare(ctx, p.Name+RawDataSuffix, rebuilding(c.Static("", prompt), p.Rebuild))
	if err != nil {
		return nil, err
	}
	draft, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s%s is %T", declare.ErrInstanceType, p.Name, RawDataSuffix, v)
	}
	return store.Declare(ctx, p.Name+JSONDataSuffix, rebuilding(c.JSON("", ExtractPrompt(draft, p.Schema), p.Schema), p.Rebuild))
}

// Typed runs SchemaRequest and hydrates the result into T.
func Typed[T any](ctx context.Context, c *Compiler, store Declarer, p Props) (T, error) {
	v, err := c.SchemaRequest(ctx, store, p)
	if err != nil {
		var zero T
		return zero, err
	}
	return structured.Into[T](v)
}

// SchemaPrompt builds the single-stage prompt: context, explanation,
// skeleton and the instruction to answer with JSON only.
func SchemaPrompt(input any, s schema.Schema) (string, error) {
	encoded, err := stringify(input)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		"We're writing a fantasy novel.",
		"Here is what we have so far:",
		encoded,
		"And here is the information that we want to introduce now:",
		schema.Describe(s),
		"Please provide your response according to the following schema:",
		schema.Skeleton(s),
		"Make sure your answer contains only a JSON string and nothing else.",
	}, "\n\n"), nil
}

// DraftPrompt builds the first stage of a two-stage request.
func DraftPrompt(input any, s schema.Schema) (string, error) {
	encoded, err := stringify(input)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		"We're following a formal process to write a fantasy story.",
		"Here is what we have so far:",
		encoded,
		"And here is the information that we want to introduce now:",
		schema.Describe(s),
		"Please generate this information.\nDon't include any introduction such as \"Here's a possible answer ...\".",
	}, "\n\n"), nil
}

// ExtractPrompt builds the second stage of a two-stage request.
func ExtractPrompt(draft string, s schema.Schema) string {
	return strings.Join([]string{
		"Here is a description of some data.",
		"---\n" + draft + "\n---",
		"Please extract from this a JSON string with the following schema:",
		schema.Skeleton(s),
		"Make sure your answer contains only the extracted JSON string and nothing else.",
	}, "\n\n")
}

func stringify(input any) (string, error) {
	encoded, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("request: encode input: %w", err)
	}
	return string(encoded), nil
}
