// Package schema models the shape of structured output requested from a
// completion service. A Schema is one of three variants, each carrying a
// human-readable description:
//
//	Text   a free-text value
//	Object an ordered set of named fields
//	List   a sequence of items sharing one schema
//
// Schemas are built bottom-up with Text, Object, Field and List and are
// immutable once constructed.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyDescription reports a node without a description.
	ErrEmptyDescription = errors.New("schema: description must not be empty")
	// ErrDuplicateField reports two fields sharing a name within one object.
	ErrDuplicateField = errors.New("schema: duplicate field")
	// ErrEmptyFieldName reports a field declared without a name.
	ErrEmptyFieldName = errors.New("schema: field name must not be empty")
	// ErrNilSchema reports a missing node.
	ErrNilSchema = errors.New("schema: nil schema")
)

// Kind identifies a schema variant.
type Kind string

const (
	KindText   Kind = "text"
	KindObject Kind = "object"
	KindList   Kind = "list"
)

// Schema is implemented by *TextSchema, *ObjectSchema and *ListSchema only.
type Schema interface {
	Kind() Kind
	Description() string
	sealed()
}

// TextSchema describes a free-text value.
type TextSchema struct {
	description string
}

// ObjectSchema describes a mapping with ordered, named fields.
type ObjectSchema struct {
	description string
	fields      []FieldSchema
}

// ListSchema describes a homogeneous sequence.
type ListSchema struct {
	description string
	item        Schema
}

// FieldSchema pairs a field name with its schema.
type FieldSchema struct {
	Name   string
	Schema Schema
}

// Text returns a text node.
func Text(description string) *TextSchema {
	return &TextSchema{description: description}
}

// Object returns an object node whose fields keep the given order.
func Object(description string, fields ...FieldSchema) *ObjectSchema {
	copied := make([]FieldSchema, len(fields))
	copy(copied, fields)
	return &ObjectSchema{description: description, fields: copied}
}

// List returns a list node.
func List(description string, item Schema) *ListSchema {
	return &ListSchema{description: description, item: item}
}

// Field names a child schema within an object.
func Field(name string, s Schema) FieldSchema {
	return FieldSchema{Name: name, Schema: s}
}

// TextField is shorthand for Field(name, Text(description)).
func TextField(name, description string) FieldSchema {
	return Field(name, Text(description))
}

func (*TextSchema) Kind() Kind   { return KindText }
func (*ObjectSchema) Kind() Kind { return KindObject }
func (*ListSchema) Kind() Kind   { return KindList }

func (s *TextSchema) Description() string   { return s.description }
func (s *ObjectSchema) Description() string { return s.description }
func (s *ListSchema) Description() string   { return s.description }

func (*TextSchema) sealed()   {}
func (*ObjectSchema) sealed() {}
func (*ListSchema) sealed()   {}

// Fields returns a copy of the object's fields in declaration order.
func (s *ObjectSchema) Fields() []FieldSchema {
	out := make([]FieldSchema, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len reports the number of fields.
func (s *ObjectSchema) Len() int {
	return len(s.fields)
}

// Lookup returns the schema registered for name.
func (s *ObjectSchema) Lookup(name string) (Schema, bool) {
	for _, field := range s.fields {
		if field.Name == name {
			return field.Schema, true
		}
	}
	return nil, false
}

// Item returns the schema shared by every list element.
func (s *ListSchema) Item() Schema {
	return s.item
}

// Validate checks that every node is present, described and that object
// field names are unique and non-empty. The returned error names the path of
// the first offending node.
func Validate(s Schema) error {
	return Walk(s, func(path string, node Schema) error {
		if node == nil {
			return pathError(path, ErrNilSchema)
		}
		if strings.TrimSpace(node.Description()) == "" {
			return pathError(path, ErrEmptyDescription)
		}
		if object, ok := node.(*ObjectSchema); ok {
			seen := make(map[string]struct{}, len(object.fields))
			for _, field := range object.fields {
				if field.Name == "" {
					return pathError(path, ErrEmptyFieldName)
				}
				if _, dup := seen[field.Name]; dup {
					return pathError(path, fmt.Errorf("%w %q", ErrDuplicateField, field.Name))
				}
				seen[field.Name] = struct{}{}
			}
		}
		return nil
	})
}

func pathError(path string, err error) error {
	if path == "" {
		path = "$"
	}
	return fmt.Errorf("%s: %w", path, err)
}
