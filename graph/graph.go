package graph

import (
	"context"
	"maps"
	"slices"
	"sort"

	"github.com/syssam/datagraph"
)

// DefaultSubset is the subset bound to the whole root Node unless it is
// overridden or removed.
const DefaultSubset = "default"

// GraphOptions configure a Graph.
type GraphOptions struct {
	// Aliases are merged over the aliases of the root Node; entries here win.
	Aliases map[string][]string `yaml:"aliases,omitempty"`
	// Subsets maps subset names to path lists. Paths are alias-resolved
	// before the subset is materialized. A nil list removes the subset.
	Subsets map[string][]string `yaml:"subsets,omitempty"`
}

// Graph adds alias expansion and named subsets to a root Node. Subsets are
// restricted Nodes materialized up front; they bound what a request may read
// (Validate) and write (ValidateAttrs).
//
// A Graph is immutable. Register and Unregister return new Graphs; use a
// Builder to assemble one step by step.
type Graph struct {
	node      *Node
	aliases   map[string][]string
	nestPaths []string
	paths     map[string][]string
	subsets   map[string]*Node
}

// NewGraph returns a Graph over node.
func NewGraph(node *Node, opts GraphOptions) *Graph {
	g := &Graph{
		node:      node,
		aliases:   node.Aliases(),
		nestPaths: node.NestPaths(),
		paths:     make(map[string][]string, len(opts.Subsets)),
		subsets:   map[string]*Node{DefaultSubset: node},
	}
	maps.Copy(g.aliases, opts.Aliases)
	for _, name := range sortedKeys(opts.Subsets) {
		g.register(name, opts.Subsets[name])
	}
	return g
}

func (g *Graph) register(name string, paths []string) {
	if paths == nil {
		delete(g.paths, name)
		delete(g.subsets, name)
		return
	}
	resolved := g.Resolve(paths)
	g.paths[name] = resolved
	g.subsets[name] = g.node.Only(resolved)
}

func (g *Graph) clone() *Graph {
	return &Graph{
		node:      g.node,
		aliases:   g.aliases,
		nestPaths: g.nestPaths,
		paths:     maps.Clone(g.paths),
		subsets:   maps.Clone(g.subsets),
	}
}

// Node returns the root Node.
func (g *Graph) Node() *Node { return g.node }

// Aliases returns a copy of the alias table.
func (g *Graph) Aliases() map[string][]string {
	return maps.Clone(g.aliases)
}

// NestPaths returns the nested write collection keys of the root Node.
func (g *Graph) NestPaths() []string { return g.nestPaths }

// Resolve expands aliases in paths. See Resolve.
func (g *Graph) Resolve(paths []string) []string {
	return Resolve(paths, g.aliases)
}

// Register returns a Graph with the subset name bound to the resolved paths,
// or removed when paths is nil. The receiver is not modified.
func (g *Graph) Register(name string, paths []string) *Graph {
	c := g.clone()
	c.register(name, paths)
	return c
}

// Unregister returns a Graph without the named subset.
func (g *Graph) Unregister(name string) *Graph {
	return g.Register(name, nil)
}

// Subsets returns the registered subset names, sorted.
func (g *Graph) Subsets() []string {
	return sortedKeys(g.subsets)
}

// Path returns the resolved paths registered for the named subset.
func (g *Graph) Path(name string) ([]string, error) {
	paths, ok := g.paths[name]
	if !ok {
		return nil, datagraph.NewConfigError("no such path: %q", name)
	}
	return paths, nil
}

// Subset returns the named subset, falling back to the default subset.
func (g *Graph) Subset(name string) (*Node, error) {
	if n, ok := g.subsets[name]; ok {
		return n, nil
	}
	if n, ok := g.subsets[DefaultSubset]; ok {
		return n, nil
	}
	return nil, datagraph.NewConfigError("no such subset: %q", name)
}

// Validate returns paths unchanged if the named subset may read all of them.
// Otherwise it fails with a *datagraph.InaccessiblePathError listing the
// paths outside the subset. Paths are not alias-resolved.
func (g *Graph) Validate(name string, paths []string) ([]string, error) {
	sub, err := g.Subset(name)
	if err != nil {
		return nil, err
	}
	if err := inaccessible(paths, sub.GetPaths()); err != nil {
		return nil, err
	}
	return paths, nil
}

// ValidateAttrs returns attrs unchanged if the named subset may write every
// attribute path in it. The payload is rejected as a whole, never filtered.
func (g *Graph) ValidateAttrs(name string, attrs any) (any, error) {
	sub, err := g.Subset(name)
	if err != nil {
		return nil, err
	}
	paths, err := FlattenAttrs(attrs, g.nestPaths)
	if err != nil {
		return nil, err
	}
	if err := inaccessible(paths, sub.SetPaths()); err != nil {
		return nil, err
	}
	return attrs, nil
}

func inaccessible(paths, allowed []string) error {
	var bad []string
	for _, p := range paths {
		if !slices.Contains(allowed, p) {
			bad = append(bad, p)
		}
	}
	if len(bad) > 0 {
		return datagraph.NewInaccessiblePathError(bad)
	}
	return nil
}

// Only returns a Graph over the root Node restricted to the resolved paths.
func (g *Graph) Only(paths []string) *Graph {
	return NewGraph(g.node.Only(g.Resolve(paths)), GraphOptions{})
}

// Except returns a Graph over the root Node without the resolved paths.
func (g *Graph) Except(paths []string) *Graph {
	return NewGraph(g.node.Except(g.Resolve(paths)), GraphOptions{})
}

// Find delegates to the root Node.
func (g *Graph) Find(ctx context.Context, q datagraph.Querier, query *datagraph.Query) ([]*datagraph.Record, error) {
	return g.node.Find(ctx, q, query)
}

// Paginate delegates to the root Node.
func (g *Graph) Paginate(ctx context.Context, q datagraph.Querier, query *datagraph.Query, page, perPage int) (*datagraph.Page, error) {
	return g.node.Paginate(ctx, q, query, page, perPage)
}

// Project projects records through the named subset.
func (g *Graph) Project(name string, recs []*datagraph.Record) ([]map[string]any, error) {
	sub, err := g.Subset(name)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(recs))
	for i, r := range recs {
		out[i] = sub.Project(r)
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
