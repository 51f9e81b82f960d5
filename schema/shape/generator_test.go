package shape

import (
	"errors"
	"testing"

	"github.com/goliatone/go-declare/schema"
)

func locationSchema() schema.Schema {
	return schema.Object("A place in the story",
		schema.TextField("name", "Name of the place"),
		schema.Field("landmarks", schema.List("Notable landmarks", schema.Text("A landmark"))),
	)
}

func TestGenerateMapsVariants(t *testing.T) {
	doc, err := Generate(locationSchema(), WithTitle("location"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Type != "object" || doc.Title != "location" {
		t.Fatalf("unexpected root %+v", doc)
	}
	if got := doc.Properties["name"].Type; got != "string" {
		t.Fatalf("expected string name, got %q", got)
	}
	landmarks := doc.Properties["landmarks"]
	if landmarks.Type != "array" || landmarks.Items == nil || landmarks.Items.Type != "string" {
		t.Fatalf("unexpected landmarks schema %+v", landmarks)
	}
	if len(doc.Required) != 2 || doc.Required[0] != "name" || doc.Required[1] != "landmarks" {
		t.Fatalf("expected required fields in order, got %v", doc.Required)
	}

	optional, err := Generate(locationSchema(), WithOptionalFields())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(optional.Required) != 0 {
		t.Fatalf("expected no required fields, got %v", optional.Required)
	}
}

func TestGenerateRejectsInvalidSchema(t *testing.T) {
	if _, err := Generate(schema.Object("")); !errors.Is(err, schema.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestCheck(t *testing.T) {
	good := map[string]any{
		"name":      "Harbor",
		"landmarks": []any{"lighthouse", "market"},
	}
	if err := Check(locationSchema(), good); err != nil {
		t.Fatalf("expected conforming value, got %v", err)
	}

	bad := map[string]any{"name": 42.0}
	if err := Check(locationSchema(), bad); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}

	if err := Check(locationSchema(), nil); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected null to mismatch an object schema, got %v", err)
	}
}
