package graph

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/datagraph"
	"github.com/syssam/datagraph/schema"
)

// MaxDepth bounds the nesting of included associations. Include trees are
// caller-authored and finite; a deeper tree is treated as a cyclic
// configuration.
const MaxDepth = 32

// DefaultPerPage is the page size used by Paginate when none is given.
const DefaultPerPage = 30

// ReservedMarkers are the control keys accepted in every nested write
// payload, in addition to the attributes of the nested type.
var ReservedMarkers = []string{"_destroy", "_delete"}

// Node is an immutable projection of one entity type: the visible columns
// and computed attributes, and a Linkage per included association.
//
// A Node holds no resources and is safe for concurrent use. Only and Except
// return new Nodes.
type Node struct {
	typ      *schema.Type
	columns  []string
	methods  []string
	always   []string
	linkages []*Linkage
}

// NewNode returns the Node for the named type of the registry.
func NewNode(reg *schema.Registry, typeName string, opts Options) (*Node, error) {
	t, ok := reg.Type(typeName)
	if !ok {
		return nil, datagraph.NewConfigError("unknown type %q", typeName)
	}
	return newNode(reg, t, opts, 0)
}

// MustNode is like NewNode but panics on error.
func MustNode(reg *schema.Registry, typeName string, opts Options) *Node {
	n, err := NewNode(reg, typeName, opts)
	if err != nil {
		panic(err)
	}
	return n
}

func newNode(reg *schema.Registry, t *schema.Type, opts Options, depth int) (*Node, error) {
	if depth > MaxDepth {
		return nil, datagraph.NewConfigError("%s: includes nested deeper than %d levels", t.Name, MaxDepth)
	}
	n := &Node{typ: t, methods: slices.Clone(opts.Methods)}
	switch {
	case opts.Only != nil && opts.Except != nil:
		return nil, datagraph.NewConfigError("%s: only and except are both specified", t.Name)
	case opts.Except != nil:
		n.columns = subtract(t.Columns, opts.Except)
	case opts.Only != nil:
		n.columns = intersect(uniq(opts.Only), t.Columns)
	default:
		n.columns = slices.Clone(t.Columns)
	}
	n.always = uniq(append(slices.Clone(t.PrimaryKey), opts.Always...))
	for _, inc := range opts.Include {
		refl, ok := reg.Reflect(t.Name, inc.Name)
		if !ok {
			slog.Debug("graph: dropping unknown association", "type", t.Name, "association", inc.Name)
			continue
		}
		l, err := newLinkage(reg, refl, inc.Options, depth)
		if err != nil {
			return nil, err
		}
		n.setLinkage(l)
	}
	return n, nil
}

// setLinkage adds l, replacing a linkage of the same name in place.
func (n *Node) setLinkage(l *Linkage) {
	for i, cur := range n.linkages {
		if cur.name == l.name {
			n.linkages[i] = l
			return
		}
	}
	n.linkages = append(n.linkages, l)
}

// Type returns the entity type of the node.
func (n *Node) Type() *schema.Type { return n.typ }

// Columns returns the visible columns.
func (n *Node) Columns() []string { return n.columns }

// Methods returns the computed attribute names.
func (n *Node) Methods() []string { return n.methods }

// AlwaysColumns returns the columns always selected: the primary key and the
// configured always columns.
func (n *Node) AlwaysColumns() []string { return n.always }

// Linkages returns the linkages in include order.
func (n *Node) Linkages() []*Linkage { return n.linkages }

// Associations returns the included association names in include order.
func (n *Node) Associations() []string {
	names := make([]string, len(n.linkages))
	for i, l := range n.linkages {
		names[i] = l.name
	}
	return names
}

// Linkage returns the linkage of the named association, or nil.
func (n *Node) Linkage(name string) *Linkage {
	for _, l := range n.linkages {
		if l.name == name {
			return l
		}
	}
	return nil
}

// Child returns the Node of the named association target, or nil.
func (n *Node) Child(name string) *Node {
	if l := n.Linkage(name); l != nil {
		return l.Node()
	}
	return nil
}

// Paths returns the visible paths: columns, methods and the paths of every
// included association prefixed with its name.
func (n *Node) Paths() []string {
	paths := slices.Concat(n.columns, n.methods)
	for _, l := range n.linkages {
		for _, p := range l.Node().Paths() {
			paths = append(paths, l.name+"."+p)
		}
	}
	return uniq(paths)
}

// GetPaths returns the readable paths. Besides the visible ones they hold
// the primary key, each association name, and the join columns needed to
// load each association, so a read request may always address them.
func (n *Node) GetPaths() []string {
	paths := slices.Concat(n.typ.PrimaryKey, n.columns, n.methods)
	for _, l := range n.linkages {
		paths = append(paths, l.name)
		paths = append(paths, l.parentColumns...)
		for _, p := range slices.Concat(l.Node().GetPaths(), l.childColumns) {
			paths = append(paths, l.name+"."+p)
		}
	}
	return uniq(paths)
}

// SetPaths returns the writable paths. Included associations that accept
// nested attributes contribute "<name>_attributes.<path>" for each writable
// path of the target and each reserved marker. Association names themselves
// are never writable.
func (n *Node) SetPaths() []string {
	paths := slices.Concat(n.typ.PrimaryKey, n.columns, n.methods)
	for _, l := range n.linkages {
		if !n.typ.AcceptsNestedAttributes(l.name) {
			continue
		}
		for _, p := range slices.Concat(l.Node().SetPaths(), ReservedMarkers) {
			paths = append(paths, l.name+"_attributes."+p)
		}
	}
	return uniq(paths)
}

// NestPaths returns the attribute keys that hold nested write collections:
// "<name>_attributes" for every has-many association, recursively.
func (n *Node) NestPaths() []string {
	var paths []string
	for _, l := range n.linkages {
		if l.macro == schema.HasMany {
			paths = append(paths, l.name+"_attributes")
		}
		for _, p := range l.Node().NestPaths() {
			paths = append(paths, l.name+"."+p, l.name+"_attributes."+p)
		}
	}
	return uniq(paths)
}

// Aliases returns the default alias table: "*" expands to the visible
// columns, and "<name>.*" to the visible columns of each association.
func (n *Node) Aliases() map[string][]string {
	aliases := map[string][]string{"*": slices.Clone(n.columns)}
	for _, l := range n.linkages {
		for alias, paths := range l.Node().Aliases() {
			prefixed := make([]string, len(paths))
			for i, p := range paths {
				prefixed[i] = l.name + "." + p
			}
			aliases[l.name+"."+alias] = prefixed
		}
	}
	return aliases
}

// Options returns options that rebuild the projection of the node.
func (n *Node) Options() Options {
	opts := Options{
		Only:    slices.Clone(n.columns),
		Methods: slices.Clone(n.methods),
	}
	if always := subtract(n.always, n.typ.PrimaryKey); len(always) > 0 {
		opts.Always = always
	}
	for _, l := range n.linkages {
		opts.Include = append(opts.Include, Include{Name: l.name, Options: l.Node().Options()})
	}
	return opts
}

// Only returns a copy of the node restricted to paths. Columns, methods and
// associations not named are dropped; an association named with nested
// paths is restricted recursively.
func (n *Node) Only(paths []string) *Node {
	attrs, nested := Partition(paths)
	c := &Node{
		typ:     n.typ,
		columns: intersect(n.columns, attrs),
		methods: intersect(n.methods, attrs),
		always:  n.always,
	}
	for _, l := range n.linkages {
		switch sub, ok := nested[l.name]; {
		case ok:
			c.linkages = append(c.linkages, l.Inherit(RestrictOnly, sub))
		case slices.Contains(attrs, l.name):
			c.linkages = append(c.linkages, l)
		}
	}
	return c
}

// Except returns a copy of the node without paths. An association named
// directly is dropped; one named with nested paths is restricted
// recursively; the others are kept.
func (n *Node) Except(paths []string) *Node {
	attrs, nested := Partition(paths)
	c := &Node{
		typ:     n.typ,
		columns: subtract(n.columns, attrs),
		methods: subtract(n.methods, attrs),
		always:  n.always,
	}
	for _, l := range n.linkages {
		switch sub, ok := nested[l.name]; {
		case ok:
			c.linkages = append(c.linkages, l.Inherit(RestrictExcept, sub))
		case slices.Contains(attrs, l.name):
		default:
			c.linkages = append(c.linkages, l)
		}
	}
	return c
}

// Scope returns a copy of query selecting everything the node needs: the
// requested columns, the visible and always columns, and the join columns of
// every linkage. Type and Table default to the node's type.
func (n *Node) Scope(query *datagraph.Query) *datagraph.Query {
	c := query.Clone()
	if c.Type == "" {
		c.Type = n.typ.Name
	}
	if c.Table == "" {
		c.Table = n.typ.Table
	}
	sel := slices.Concat(c.Select, n.columns, n.always)
	for _, l := range n.linkages {
		sel = append(sel, l.parentColumns...)
	}
	c.Select = uniq(sel)
	return c
}

// Find runs the scoped query and links the result.
func (n *Node) Find(ctx context.Context, q datagraph.Querier, query *datagraph.Query) ([]*datagraph.Record, error) {
	recs, err := q.Query(ctx, n.Scope(query))
	if err != nil {
		return nil, datagraph.NewQueryError(n.typ.Name, "find", err)
	}
	if err := n.Link(ctx, q, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Paginate returns one page of the scoped query, linked. Pages start at 1.
func (n *Node) Paginate(ctx context.Context, q datagraph.Querier, query *datagraph.Query, page, perPage int) (*datagraph.Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	scoped := n.Scope(query)
	total, err := q.Count(ctx, scoped)
	if err != nil {
		return nil, datagraph.NewQueryError(n.typ.Name, "count", err)
	}
	scoped.Limit = perPage
	scoped.Offset = (page - 1) * perPage
	recs, err := q.Query(ctx, scoped)
	if err != nil {
		return nil, datagraph.NewQueryError(n.typ.Name, "paginate", err)
	}
	if err := n.Link(ctx, q, recs); err != nil {
		return nil, err
	}
	return &datagraph.Page{Records: recs, Page: page, PerPage: perPage, Total: total}, nil
}

// Get returns the record with the given primary key, linked. It fails with a
// *datagraph.NotFoundError when no record matches.
func (n *Node) Get(ctx context.Context, q datagraph.Querier, key ...any) (*datagraph.Record, error) {
	pk := n.typ.PrimaryKey
	if len(key) != len(pk) {
		return nil, datagraph.NewConfigError("%s: primary key %v expects %d values, got %d", n.typ.Name, pk, len(pk), len(key))
	}
	recs, err := n.Find(ctx, q, &datagraph.Query{
		Where: []datagraph.Predicate{datagraph.KeyIn{Table: n.typ.Table, Columns: pk, Tuples: [][]any{key}}},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, datagraph.NewNotFoundError(n.typ.Name, key...)
	}
	return recs[0], nil
}

// Link runs every linkage on records, in include order. Levels are always
// sequential; siblings run concurrently when the context carries a
// parallelism above one (see WithParallelism), which requires a Querier safe
// for concurrent use.
func (n *Node) Link(ctx context.Context, q datagraph.Querier, records []*datagraph.Record) error {
	limit := parallelism(ctx)
	if limit <= 1 || len(n.linkages) < 2 || len(records) == 0 {
		for _, l := range n.linkages {
			if err := l.Link(ctx, q, records); err != nil {
				return err
			}
		}
		return nil
	}
	// Edges are created up front so linkages never write the same map.
	for _, r := range records {
		for _, l := range n.linkages {
			r.InitEdge(l.name, l.macro.Many())
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, l := range n.linkages {
		g.Go(func() error {
			return l.Link(ctx, q, records)
		})
	}
	return g.Wait()
}

// Project returns the visible attributes of a linked record: its columns and
// methods present on the record, and each loaded association projected by
// the association Node. To-many associations project to a slice, to-one
// associations to a map or nil.
func (n *Node) Project(r *datagraph.Record) map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(n.columns)+len(n.methods)+len(n.linkages))
	for _, c := range slices.Concat(n.columns, n.methods) {
		if v, ok := r.Get(c); ok {
			out[c] = v
		}
	}
	for _, l := range n.linkages {
		e := r.Edge(l.name)
		if e == nil || !e.Loaded {
			continue
		}
		child := l.Node()
		if e.Many {
			items := make([]map[string]any, len(e.Items))
			for i, item := range e.Items {
				items[i] = child.Project(item)
			}
			out[l.name] = items
			continue
		}
		if e.Target == nil {
			out[l.name] = nil
			continue
		}
		out[l.name] = child.Project(e.Target)
	}
	return out
}

type parallelismKey struct{}

// WithParallelism returns a context under which sibling linkages of a Node
// run concurrently, at most n at a time.
func WithParallelism(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, parallelismKey{}, n)
}

func parallelism(ctx context.Context) int {
	n, _ := ctx.Value(parallelismKey{}).(int)
	return n
}
