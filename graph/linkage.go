package graph

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/syssam/datagraph"
	"github.com/syssam/datagraph/contrib/dataloader"
	"github.com/syssam/datagraph/schema"
)

// Restriction selects the Node operation applied by Linkage.Inherit.
type Restriction uint8

// Restrictions.
const (
	RestrictOnly Restriction = iota + 1
	RestrictExcept
)

// Linkage is one included association of a Node. It owns the child Node and
// loads the association for a batch of parent records with a single query.
type Linkage struct {
	name    string
	macro   schema.Macro
	through string // source association on the hop target, through linkages only
	table   string

	parentColumns []string
	childColumns  []string
	targetKey     []string

	// child is the Node over the queried type: the target itself, or the
	// through hop whose single include is the source association.
	child *Node
}

func newLinkage(reg *schema.Registry, refl *schema.Reflection, opts Options, depth int) (*Linkage, error) {
	l := &Linkage{
		name:      refl.Name,
		macro:     refl.Macro,
		targetKey: refl.Target.PrimaryKey,
	}
	hop := refl
	switch refl.Macro {
	case schema.BelongsTo:
		if refl.Through != nil {
			return nil, datagraph.NewConfigError("%s.%s: belongs_to cannot go through %q", refl.Owner.Name, refl.Name, refl.Through.Name)
		}
	case schema.HasOne, schema.HasMany:
		if refl.Through != nil {
			hop = refl.Through
			if hop.Through != nil || refl.Source.Through != nil {
				return nil, datagraph.NewConfigError("%s.%s: nested through associations are not supported", refl.Owner.Name, refl.Name)
			}
			l.through = refl.Source.Name
			opts = Options{
				Only:    []string{},
				Include: Includes{{Name: l.through, Options: opts}},
			}
		}
	default:
		return nil, datagraph.NewConfigError("%s.%s: unsupported association macro %v", refl.Owner.Name, refl.Name, refl.Macro)
	}
	l.parentColumns = hop.ParentColumns()
	l.childColumns = hop.ChildColumns()
	if len(l.parentColumns) == 0 || len(l.parentColumns) != len(l.childColumns) {
		return nil, datagraph.NewConfigError("%s.%s: parent key %v and child key %v differ in arity",
			refl.Owner.Name, refl.Name, l.parentColumns, l.childColumns)
	}
	child, err := newNode(reg, hop.Target, opts, depth+1)
	if err != nil {
		return nil, err
	}
	l.child = child
	l.table = hop.Target.Table
	return l, nil
}

// Name returns the association name.
func (l *Linkage) Name() string { return l.name }

// Macro returns the association kind.
func (l *Linkage) Macro() schema.Macro { return l.macro }

// Through returns the source association traversed on the hop target, or ""
// for direct associations.
func (l *Linkage) Through() string { return l.through }

// Table returns the table queried by Link.
func (l *Linkage) Table() string { return l.table }

// ParentColumns returns the join columns read from parent records.
func (l *Linkage) ParentColumns() []string { return l.parentColumns }

// ChildColumns returns the join columns read from queried records.
func (l *Linkage) ChildColumns() []string { return l.childColumns }

// Node returns the Node over the association target. For through linkages it
// is the source Node nested under the hop.
func (l *Linkage) Node() *Node {
	if l.through != "" {
		return l.child.Child(l.through)
	}
	return l.child
}

// Inherit returns a copy of the linkage with its child Node restricted by
// paths. Paths address the association target; for through linkages they
// are re-rooted under the source association of the hop.
func (l *Linkage) Inherit(op Restriction, paths []string) *Linkage {
	if l.through != "" {
		prefixed := make([]string, len(paths))
		for i, p := range paths {
			prefixed[i] = l.through + "." + p
		}
		paths = prefixed
	}
	c := *l
	switch op {
	case RestrictOnly:
		c.child = l.child.Only(paths)
	case RestrictExcept:
		c.child = l.child.Except(paths)
	}
	return &c
}

// Link loads the association for all parents with one query and records the
// result in each parent's edge. When Link returns without error, every parent
// edge is loaded: with its matches, or empty when nothing matched.
//
// No query is issued when there are no parents, or when no parent has a
// complete key.
func (l *Linkage) Link(ctx context.Context, q datagraph.Querier, parents []*datagraph.Record) error {
	many := l.macro.Many()
	keyed := make([]*datagraph.Record, 0, len(parents))
	for _, p := range parents {
		p.InitEdge(l.name, many)
		// A parent with a NULL key component can never match.
		if _, ok := tupleKey(p, l.parentColumns); ok {
			keyed = append(keyed, p)
		}
	}
	if len(keyed) == 0 {
		l.finish(parents)
		return nil
	}
	keys := make([]string, 0, len(keyed))
	for _, p := range keyed {
		k, _ := tupleKey(p, l.parentColumns)
		keys = append(keys, k)
	}
	keys = uniq(keys)
	groups := dataloader.GroupByKey(keyed, func(p *datagraph.Record) string {
		k, _ := tupleKey(p, l.parentColumns)
		return k
	})
	// Parents sharing a key share a tuple; the first one supplies its values.
	tuples := make([][]any, len(keys))
	for i, group := range dataloader.OrderGroupsByKeys(keys, groups) {
		tuples[i] = tuple(group[0], l.parentColumns)
	}
	slog.DebugContext(ctx, "graph: linking association",
		"association", l.name, "table", l.table, "parents", len(parents), "keys", len(tuples))
	children, err := l.child.Find(ctx, q, &datagraph.Query{
		Select: l.childColumns,
		Where: []datagraph.Predicate{
			datagraph.KeyIn{Table: l.table, Columns: l.childColumns, Tuples: tuples},
		},
	})
	if err != nil {
		return fmt.Errorf("graph: link %s: %w", l.name, err)
	}
	for _, child := range children {
		k, ok := tupleKey(child, l.childColumns)
		if !ok {
			continue
		}
		targets := l.targets(child)
		for _, p := range groups[k] {
			l.attach(p.Edge(l.name), targets)
		}
	}
	l.finish(parents)
	return nil
}

// targets returns the records a queried child contributes: the child itself,
// or the source records reached through the hop.
func (l *Linkage) targets(child *datagraph.Record) []*datagraph.Record {
	if l.through == "" {
		return []*datagraph.Record{child}
	}
	return child.Edge(l.through).Records()
}

func (l *Linkage) attach(e *datagraph.Edge, targets []*datagraph.Record) {
	if l.macro.Many() {
		e.Append(targets...)
		return
	}
	// To-one associations keep the first match.
	if e.Target == nil && len(targets) > 0 {
		e.SetTarget(targets[0])
	}
}

// finish marks every parent edge loaded and removes duplicate targets
// reached through different hop records.
func (l *Linkage) finish(parents []*datagraph.Record) {
	for _, p := range parents {
		e := p.Edge(l.name)
		e.MarkLoaded()
		if l.through != "" && e.Many && len(e.Items) > 1 {
			e.Items = dataloader.UniqueByKey(e.Items, l.identity)
		}
	}
}

// identity keys a target record by its primary key, or by the record itself
// when the key was not loaded.
func (l *Linkage) identity(r *datagraph.Record) string {
	if k, ok := tupleKey(r, l.targetKey); ok {
		return k
	}
	return fmt.Sprintf("%p", r)
}

// tuple returns the normalized values of cols on r.
func tuple(r *datagraph.Record, cols []string) []any {
	t := make([]any, len(cols))
	for i, c := range cols {
		t[i] = normalize(r.Value(c))
	}
	return t
}

// tupleKey returns a comparable key for the values of cols on r. It reports
// false when any component is NULL or missing.
func tupleKey(r *datagraph.Record, cols []string) (string, bool) {
	var b strings.Builder
	for i, c := range cols {
		v := normalize(r.Value(c))
		if v == nil {
			return "", false
		}
		if i > 0 {
			b.WriteByte(0)
		}
		fmt.Fprintf(&b, "%T:%v", v, v)
	}
	return b.String(), true
}

// normalize maps driver values of the same logical key onto one
// representation: integers to int64 and byte slices to string.
func normalize(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return normUint(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return normUint(v)
	case []byte:
		if v == nil {
			return nil
		}
		return string(v)
	}
	return v
}

func normUint(v uint64) any {
	if v > math.MaxInt64 {
		return v
	}
	return int64(v)
}
