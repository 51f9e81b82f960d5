// Package pipeline reads generation scripts written as YAML step lists and
// runs them against a declare store. A step names the earlier steps or
// context keys it reads and the schema of the data it asks for:
//
//	name: story
//	context:
//	  genre: heroic fantasy
//	steps:
//	  - name: hero
//	    inputs: [genre]
//	    schema:
//	      description: The hero of the story
//	      type: object
//	      fields:
//	        name: The hero's name
//	        traits:
//	          type: list
//	          description: Defining traits
//	          item: One trait
//
// Object fields keep the order in which they appear in the file. A scalar in
// place of a schema is a text schema with that description.
//
// A step may carry a rebuild_when rule, evaluated against each cached entry
// the step declares, that forces a new request even when the prompt is
// unchanged. rebuild_engine picks the rule language: expr (default), cel,
// or js when built with the js_eval tag.
//
//	  - name: hero
//	    rebuild_when: len(previous.result.traits) == 0
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	declare "github.com/goliatone/go-declare"
	"github.com/goliatone/go-declare/schema"
)

// Mode selects how a step is requested.
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeTwoStage Mode = "two-stage"
)

// ErrInvalidPipeline wraps every parse and planning failure.
var ErrInvalidPipeline = errors.New("pipeline: invalid")

// Pipeline is a parsed generation script.
type Pipeline struct {
	Name       string
	SystemCore string
	Context    map[string]any
	Steps      []Step
}

// Step is one schema request. Rebuild is compiled from RebuildWhen and is
// AlwaysReuse when the step has no rule.
type Step struct {
	Name         string
	Mode         Mode
	Inputs       []string
	Instructions string
	Schema       schema.Schema
	RebuildWhen  string
	Rebuild      declare.UpdatePolicy
}

// Step returns the step called name.
func (p *Pipeline) Step(name string) (Step, bool) {
	for _, step := range p.Steps {
		if step.Name == name {
			return step, true
		}
	}
	return Step{}, false
}

type rawPipeline struct {
	Name       string         `yaml:"name"`
	SystemCore string         `yaml:"system_core"`
	Context    map[string]any `yaml:"context"`
	Steps      []rawStep      `yaml:"steps"`
}

type rawStep struct {
	Name          string    `yaml:"name"`
	Mode          string    `yaml:"mode"`
	Inputs        []string  `yaml:"inputs"`
	Instructions  string    `yaml:"instructions"`
	RebuildWhen   string    `yaml:"rebuild_when"`
	RebuildEngine string    `yaml:"rebuild_engine"`
	Schema        yaml.Node `yaml:"schema"`
}

// Parse reads a pipeline and checks that it can be planned.
func Parse(r io.Reader) (*Pipeline, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var raw rawPipeline
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPipeline)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPipeline, err)
	}
	if strings.TrimSpace(raw.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPipeline)
	}

	p := &Pipeline{
		Name:       raw.Name,
		SystemCore: raw.SystemCore,
		Context:    raw.Context,
		Steps:      make([]Step, 0, len(raw.Steps)),
	}
	for i, rs := range raw.Steps {
		step, err := buildStep(rs)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", ErrInvalidPipeline, i, err)
		}
		p.Steps = append(p.Steps, step)
	}
	if _, err := p.Plan(); err != nil {
		return nil, err
	}
	return p, nil
}

func buildStep(rs rawStep) (Step, error) {
	if strings.TrimSpace(rs.Name) == "" {
		return Step{}, errors.New("name is required")
	}
	mode := Mode(rs.Mode)
	switch mode {
	case "":
		mode = ModeSingle
	case ModeSingle, ModeTwoStage:
	default:
		return Step{}, fmt.Errorf("%s: unknown mode %q", rs.Name, rs.Mode)
	}
	if rs.Schema.Kind == 0 {
		return Step{}, fmt.Errorf("%s: schema is required", rs.Name)
	}
	s, err := decodeSchema(&rs.Schema)
	if err != nil {
		return Step{}, fmt.Errorf("%s: %w", rs.Name, err)
	}
	if err := schema.Validate(s); err != nil {
		return Step{}, fmt.Errorf("%s: %w", rs.Name, err)
	}
	rebuild, err := rebuildPolicy(rs.RebuildWhen, rs.RebuildEngine)
	if err != nil {
		return Step{}, fmt.Errorf("%s: %w", rs.Name, err)
	}
	return Step{
		Name:         rs.Name,
		Mode:         mode,
		Inputs:       rs.Inputs,
		Instructions: rs.Instructions,
		Schema:       s,
		RebuildWhen:  rs.RebuildWhen,
		Rebuild:      rebuild,
	}, nil
}

func rebuildPolicy(expression, engine string) (declare.UpdatePolicy, error) {
	if strings.TrimSpace(expression) == "" {
		if engine != "" {
			return declare.UpdatePolicy{}, errors.New("rebuild_engine needs rebuild_when")
		}
		return declare.AlwaysReuse(), nil
	}
	var evaluator declare.Evaluator
	switch engine {
	case "", "expr":
		evaluator = declare.NewExprEvaluator()
	case "cel":
		evaluator = declare.NewCELEvaluator()
	case "js":
		evaluator = declare.NewJSEvaluator()
	default:
		return declare.UpdatePolicy{}, fmt.Errorf("unknown rebuild_engine %q", engine)
	}
	policy, err := declare.RuleUpdate(expression, declare.WithRuleEvaluator(evaluator))
	if err != nil {
		return declare.UpdatePolicy{}, fmt.Errorf("rebuild_when: %w", err)
	}
	return policy, nil
}

// decodeSchema walks the node by hand so object fields keep file order.
func decodeSchema(node *yaml.Node) (schema.Schema, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return schema.Text(node.Value), nil
	case yaml.MappingNode:
	default:
		return nil, fmt.Errorf("line %d: schema must be a string or a mapping", node.Line)
	}

	var (
		kind        = string(schema.KindText)
		description string
		fields      *yaml.Node
		item        *yaml.Node
	)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "type":
			kind = value.Value
		case "description":
			description = value.Value
		case "fields":
			fields = value
		case "item":
			item = value
		default:
			return nil, fmt.Errorf("line %d: unknown schema key %q", key.Line, key.Value)
		}
	}

	switch schema.Kind(kind) {
	case schema.KindText:
		return schema.Text(description), nil
	case schema.KindObject:
		if fields == nil || fields.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: object schema needs a fields mapping", node.Line)
		}
		out := make([]schema.FieldSchema, 0, len(fields.Content)/2)
		for i := 0; i+1 < len(fields.Content); i += 2 {
			child, err := decodeSchema(fields.Content[i+1])
			if err != nil {
				return nil, err
			}
			out = append(out, schema.Field(fields.Content[i].Value, child))
		}
		return schema.Object(description, out...), nil
	case schema.KindList:
		if item == nil {
			return nil, fmt.Errorf("line %d: list schema needs an item", node.Line)
		}
		child, err := decodeSchema(item)
		if err != nil {
			return nil, err
		}
		return schema.List(description, child), nil
	default:
		return nil, fmt.Errorf("line %d: unknown schema type %q", node.Line, kind)
	}
}
