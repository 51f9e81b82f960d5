package schema

import (
	"errors"
	"strings"
	"testing"
)

func characterSchema() *ObjectSchema {
	return Object("A character of the story",
		TextField("name", "The character's name"),
		Field("traits", List("Personality traits", Text("A single trait"))),
	)
}

func TestSkeletonObjectWithList(t *testing.T) {
	s := Object("root",
		TextField("a", "first"),
		Field("b", List("second", Text("entry"))),
	)

	want := strings.Join([]string{
		`{`,
		`  "a": "...",`,
		`  "b": [`,
		`    "...",`,
		`    ...`,
		`  ]`,
		`}`,
	}, "\n")
	if got := Skeleton(s); got != want {
		t.Fatalf("unexpected skeleton:\n%s\nwant:\n%s", got, want)
	}
}

func TestSkeletonVariants(t *testing.T) {
	if got := Skeleton(Text("x")); got != `"..."` {
		t.Fatalf("text skeleton = %q", got)
	}
	if got := Skeleton(Object("empty")); got != "{}" {
		t.Fatalf("empty object skeleton = %q", got)
	}
	if got := Skeleton(nil); got != "null" {
		t.Fatalf("nil skeleton = %q", got)
	}

	nested := Skeleton(List("characters", characterSchema()))
	if strings.Count(nested, `"name": "..."`) != 1 {
		t.Fatalf("expected exactly one exemplar item, got:\n%s", nested)
	}
	if !strings.HasSuffix(nested, "  ...\n]") {
		t.Fatalf("expected trailing ellipsis, got:\n%s", nested)
	}
}

func TestSkeletonPreservesFieldOrder(t *testing.T) {
	s := Object("ordered", TextField("zeta", "z"), TextField("alpha", "a"), TextField("mid", "m"))
	got := Skeleton(s)
	z, a, m := strings.Index(got, "zeta"), strings.Index(got, "alpha"), strings.Index(got, "mid")
	if !(z < a && a < m) {
		t.Fatalf("fields rendered out of order:\n%s", got)
	}
}

func TestDescribeText(t *testing.T) {
	if got := Describe(Text("A short title")); got != "A short title" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestDescribeObject(t *testing.T) {
	want := strings.Join([]string{
		"A character of the story",
		"",
		"It consists of the following:",
		"name:",
		"  The character's name",
		"traits:",
		"  Personality traits:",
		"    A single trait",
	}, "\n")
	if got := Describe(characterSchema()); got != want {
		t.Fatalf("unexpected description:\n%s\nwant:\n%s", got, want)
	}
}

func TestDescribeIsDeterministic(t *testing.T) {
	s := List("cast", characterSchema())
	first := Describe(s)
	for i := 0; i < 5; i++ {
		if Describe(s) != first {
			t.Fatalf("describe output changed between calls")
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(characterSchema()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Validate(Object("root", Field("items", List("items", Object("")))))
	if !errors.Is(err, ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "$.items[]") {
		t.Fatalf("expected path in error, got %v", err)
	}

	err = Validate(Object("root", TextField("a", "x"), TextField("a", "y")))
	if !errors.Is(err, ErrDuplicateField) {
		t.Fatalf("expected ErrDuplicateField, got %v", err)
	}

	err = Validate(List("broken", nil))
	if !errors.Is(err, ErrNilSchema) {
		t.Fatalf("expected ErrNilSchema, got %v", err)
	}
}

type kindCounter struct{}

func (kindCounter) VisitText(*TextSchema) int { return 1 }
func (c kindCounter) VisitObject(s *ObjectSchema) int {
	total := 1
	for _, field := range s.Fields() {
		total += Visit[int](field.Schema, c)
	}
	return total
}
func (c kindCounter) VisitList(s *ListSchema) int { return 1 + Visit[int](s.Item(), c) }

func TestVisitAndWalkAgree(t *testing.T) {
	s := List("cast", characterSchema())

	var paths []string
	if err := Walk(s, func(path string, _ Schema) error {
		paths = append(paths, path)
		return nil
	}); err != nil {
		t.Fatalf("unexpected walk error: %v", err)
	}

	if got := Visit[int](s, kindCounter{}); got != len(paths) {
		t.Fatalf("visit counted %d nodes, walk saw %d", got, len(paths))
	}
	want := []string{"$", "$[]", "$[].name", "$[].traits", "$[].traits[]"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected paths %v", paths)
	}
}
