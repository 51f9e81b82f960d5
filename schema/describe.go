package schema

import (
	"strconv"
	"strings"
)

const indentUnit = "  "

// Describe renders the natural-language explanation of s. Objects list each
// field under a "key:" line with the nested explanation indented; lists
// introduce their item explanation after the list description.
func Describe(s Schema) string {
	return Visit[string](s, describer{})
}

// Skeleton renders a JSON-like template of s. Text becomes "...", objects
// list every field in order and lists show a single exemplar item followed by
// an ellipsis.
func Skeleton(s Schema) string {
	if isNil(s) {
		return "null"
	}
	return Visit[string](s, skeletonizer{})
}

type describer struct{}

func (describer) VisitText(s *TextSchema) string {
	return s.description
}

func (d describer) VisitObject(s *ObjectSchema) string {
	var b strings.Builder
	b.WriteString(s.description)
	b.WriteString("\n\nIt consists of the following:")
	for _, field := range s.fields {
		b.WriteString("\n")
		b.WriteString(field.Name)
		b.WriteString(":\n")
		b.WriteString(indent(Visit[string](field.Schema, d)))
	}
	return b.String()
}

func (d describer) VisitList(s *ListSchema) string {
	return s.description + ":\n" + indent(Visit[string](s.item, d))
}

type skeletonizer struct{}

func (skeletonizer) VisitText(*TextSchema) string {
	return `"..."`
}

func (k skeletonizer) VisitObject(s *ObjectSchema) string {
	if len(s.fields) == 0 {
		return "{}"
	}
	entries := make([]string, 0, len(s.fields))
	for _, field := range s.fields {
		entries = append(entries, indent(strconv.Quote(field.Name)+": "+Skeleton(field.Schema)))
	}
	return "{\n" + strings.Join(entries, ",\n") + "\n}"
}

func (k skeletonizer) VisitList(s *ListSchema) string {
	return "[\n" + indent(Skeleton(s.item)+",") + "\n" + indentUnit + "...\n]"
}

func indent(text string) string {
	if text == "" {
		return indentUnit
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lines[i] = indentUnit + line
	}
	return strings.Join(lines, "\n")
}
