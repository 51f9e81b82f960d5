package schema

// Visitor handles each schema variant. Adding a variant adds a method, so
// every implementation must be updated before it compiles again.
type Visitor[R any] interface {
	VisitText(*TextSchema) R
	VisitObject(*ObjectSchema) R
	VisitList(*ListSchema) R
}

// Visit dispatches s to the matching visitor method. A nil schema yields the
// zero value of R.
func Visit[R any](s Schema, v Visitor[R]) R {
	var zero R
	switch node := s.(type) {
	case *TextSchema:
		if node == nil {
			return zero
		}
		return v.VisitText(node)
	case *ObjectSchema:
		if node == nil {
			return zero
		}
		return v.VisitObject(node)
	case *ListSchema:
		if node == nil {
			return zero
		}
		return v.VisitList(node)
	default:
		return zero
	}
}

// WalkFunc is called for every node reached by Walk. Returning a non-nil
// error stops the walk.
type WalkFunc func(path string, node Schema) error

// Walk traverses s depth-first, parents before children. Paths use "$" for
// the root, ".name" for object fields and "[]" for list items. Missing nodes
// are reported to fn as nil.
func Walk(s Schema, fn WalkFunc) error {
	return walk("$", s, fn)
}

func walk(path string, s Schema, fn WalkFunc) error {
	if isNil(s) {
		return fn(path, nil)
	}
	if err := fn(path, s); err != nil {
		return err
	}
	switch node := s.(type) {
	case *ObjectSchema:
		for _, field := range node.fields {
			if err := walk(path+"."+field.Name, field.Schema, fn); err != nil {
				return err
			}
		}
	case *ListSchema:
		return walk(path+"[]", node.item, fn)
	}
	return nil
}

func isNil(s Schema) bool {
	switch node := s.(type) {
	case nil:
		return true
	case *TextSchema:
		return node == nil
	case *ObjectSchema:
		return node == nil
	case *ListSchema:
		return node == nil
	}
	return false
}
