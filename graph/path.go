package graph

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/syssam/datagraph"
)

// simpleName matches attribute keys accepted by FlattenAttrs.
var simpleName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Resolve replaces every path that names an alias with the alias expansion
// and returns the flattened, duplicate-free result in first-occurrence order.
//
// Expansion is a single pass: an alias that expands to another alias name is
// not expanded again.
func Resolve(paths []string, aliases map[string][]string) []string {
	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		if expansion, ok := aliases[p]; ok {
			resolved = append(resolved, expansion...)
			continue
		}
		resolved = append(resolved, p)
	}
	return uniq(resolved)
}

// Partition splits dotted paths on their first segment. Paths without a dot
// are returned in attrs; the others are grouped by head in nested, each list
// holding the remaining suffixes in input order.
func Partition(paths []string) (attrs []string, nested map[string][]string) {
	nested = make(map[string][]string)
	for _, p := range paths {
		head, tail, ok := strings.Cut(p, ".")
		if !ok {
			attrs = append(attrs, head)
			continue
		}
		nested[head] = append(nested[head], tail)
	}
	return attrs, nested
}

// FlattenAttrs returns the dotted leaf paths of a nested attribute payload,
// as submitted for a write. attrs must be a map with string keys; nested maps
// and slices of maps are walked recursively.
//
// A key whose full path appears in nestPaths and whose value is a map is a
// keyed collection of positional children: the map keys are ignored and the
// values are walked in key order as if they were a slice.
//
// Keys that are not strings, or not simple names, fail with an
// *datagraph.InvalidKeyError.
func FlattenAttrs(attrs any, nestPaths []string) ([]string, error) {
	v := indirect(reflect.ValueOf(attrs))
	if !v.IsValid() {
		return nil, nil
	}
	if v.Kind() != reflect.Map {
		return nil, fmt.Errorf("graph: attributes must be a map, got %T", attrs)
	}
	nest := make(map[string]struct{}, len(nestPaths))
	for _, p := range nestPaths {
		nest[p] = struct{}{}
	}
	var paths []string
	if err := flattenMap(v, nest, "", &paths); err != nil {
		return nil, err
	}
	return uniq(paths), nil
}

func flattenMap(m reflect.Value, nest map[string]struct{}, prefix string, paths *[]string) error {
	names := make([]string, 0, m.Len())
	values := make(map[string]reflect.Value, m.Len())
	iter := m.MapRange()
	for iter.Next() {
		k := indirect(iter.Key())
		if k.Kind() != reflect.String {
			return &datagraph.InvalidKeyError{Key: fmt.Sprint(iter.Key().Interface()), Path: strings.TrimSuffix(prefix, ".")}
		}
		name := k.String()
		if !simpleName.MatchString(name) {
			return &datagraph.InvalidKeyError{Key: name, Path: strings.TrimSuffix(prefix, ".")}
		}
		names = append(names, name)
		values[name] = iter.Value()
	}
	sort.Strings(names)
	for _, name := range names {
		path := prefix + name
		v := indirect(values[name])
		if _, ok := nest[path]; ok && v.Kind() == reflect.Map {
			v = positional(v)
		}
		switch {
		case v.Kind() == reflect.Map:
			if err := flattenMap(v, nest, path+".", paths); err != nil {
				return err
			}
		case isList(v):
			if err := flattenList(v, nest, path, paths); err != nil {
				return err
			}
		default:
			*paths = append(*paths, path)
		}
	}
	return nil
}

// flattenList walks a collection of child payloads. A list of scalars, such
// as a list of ids, is a single leaf. An empty collection adds nothing.
func flattenList(v reflect.Value, nest map[string]struct{}, path string, paths *[]string) error {
	leaf := false
	for i := 0; i < v.Len(); i++ {
		e := indirect(v.Index(i))
		if e.Kind() != reflect.Map {
			leaf = true
			continue
		}
		if err := flattenMap(e, nest, path+".", paths); err != nil {
			return err
		}
	}
	if leaf {
		*paths = append(*paths, path)
	}
	return nil
}

// positional returns the values of a keyed collection ordered by key.
func positional(m reflect.Value) reflect.Value {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	values := make([]any, 0, len(keys))
	for _, k := range keys {
		values = append(values, m.MapIndex(k).Interface())
	}
	return reflect.ValueOf(values)
}

func isList(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice:
		return v.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

// indirect unwraps interfaces and pointers.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// uniq removes duplicates, keeping the first occurrence of each path.
func uniq(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// intersect returns the elements of a that are in b, in a's order.
func intersect(a, b []string) []string {
	out := make([]string, 0, len(a))
	for _, s := range a {
		if slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}

// subtract returns the elements of a that are not in b, in a's order.
// Duplicates in a are kept.
func subtract(a, b []string) []string {
	out := make([]string, 0, len(a))
	for _, s := range a {
		if !slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}
