// Package layering merges configuration layers. Layers are ordered strongest
// first; nil pointers, nil maps and nil slices mean "not set" and fall
// through to weaker layers.
package layering

import (
	"reflect"
	"sort"
	"strings"
)

// Layer is a named configuration source.
type Layer[T any] struct {
	Name  string
	Value T
}

// Provenance maps a dotted field path to the name of the layer that set it.
type Provenance map[string]string

// Paths returns the recorded paths sorted.
func (p Provenance) Paths() []string {
	paths := make([]string, 0, len(p))
	for path := range p {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// MergeLayers composes values ordered from strongest to weakest, keeping
// what stronger layers set and filling the rest from weaker ones.
func MergeLayers[T any](values ...T) T {
	layers := make([]Layer[T], len(values))
	for i, v := range values {
		layers[i] = Layer[T]{Value: v}
	}
	merged, _ := Merge(layers...)
	return merged
}

// Merge combines named layers like MergeLayers and reports which layer
// supplied each set leaf. Paths use yaml tag names when present. The result
// never aliases pointers, maps or slices of the inputs.
func Merge[T any](layers ...Layer[T]) (T, Provenance) {
	var merged T
	provenance := Provenance{}
	if len(layers) == 0 {
		return merged, provenance
	}
	m := merger{provenance: provenance, names: make([]string, len(layers))}
	sources := make([]reflect.Value, len(layers))
	for i, layer := range layers {
		m.names[i] = layer.Name
		sources[i] = reflect.ValueOf(&layers[i].Value).Elem()
	}
	m.merge(reflect.ValueOf(&merged).Elem(), "", sources)
	return merged, provenance
}

type merger struct {
	names      []string
	provenance Provenance
}

func (m merger) set(path string, layer int) {
	m.provenance[path] = m.names[layer]
}

// merge fills dst from sources, which hold one value of dst's type per layer.
func (m merger) merge(dst reflect.Value, path string, sources []reflect.Value) {
	switch dst.Kind() {
	case reflect.Struct:
		t := dst.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			fields := make([]reflect.Value, len(sources))
			for j, src := range sources {
				fields[j] = src.Field(i)
			}
			m.merge(dst.Field(i), joinPath(path, fieldName(field)), fields)
		}

	case reflect.Pointer:
		if dst.Type().Elem().Kind() == reflect.Struct {
			m.mergeStructPointer(dst, path, sources)
			return
		}
		for i, src := range sources {
			if src.IsNil() {
				continue
			}
			clone := reflect.New(src.Type().Elem())
			clone.Elem().Set(src.Elem())
			dst.Set(clone)
			// a set pointer counts even when it points at a zero value
			m.set(path, i)
			return
		}

	case reflect.Map:
		m.mergeMap(dst, path, sources)

	case reflect.Slice:
		for i, src := range sources {
			if src.IsNil() {
				continue
			}
			clone := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
			reflect.Copy(clone, src)
			dst.Set(clone)
			m.set(path, i)
			return
		}

	default:
		for i, src := range sources {
			if src.IsZero() {
				continue
			}
			dst.Set(src)
			m.set(path, i)
			return
		}
	}
}

func (m merger) mergeStructPointer(dst reflect.Value, path string, sources []reflect.Value) {
	elems := make([]reflect.Value, len(sources))
	found := false
	for i, src := range sources {
		if src.IsNil() {
			elems[i] = reflect.Zero(src.Type().Elem())
			continue
		}
		elems[i] = src.Elem()
		found = true
	}
	if !found {
		return
	}
	result := reflect.New(dst.Type().Elem())
	m.merge(result.Elem(), path, elems)
	dst.Set(result)
}

// mergeMap unions keys across layers; each key takes the strongest layer
// that has it.
func (m merger) mergeMap(dst reflect.Value, path string, sources []reflect.Value) {
	var result reflect.Value
	for i := len(sources) - 1; i >= 0; i-- {
		src := sources[i]
		if src.IsNil() {
			continue
		}
		if !result.IsValid() {
			result = reflect.MakeMapWithSize(src.Type(), src.Len())
		}
		iter := src.MapRange()
		for iter.Next() {
			result.SetMapIndex(iter.Key(), iter.Value())
			if key, ok := iter.Key().Interface().(string); ok {
				m.set(joinPath(path, key), i)
			} else {
				m.set(path, i)
			}
		}
	}
	if result.IsValid() {
		dst.Set(result)
	}
}

func fieldName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("yaml"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(field.Name)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
