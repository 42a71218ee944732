package datagraph

// Record is a single row materialized by a Querier. Column values are read by
// name, and each association the graph links is tracked in an explicit Edge.
//
// A Record is owned by the call that loaded it. Edges are mutated only while
// linking; once Find returns, the record is read-only for the caller.
type Record struct {
	// Type is the entity type name the record belongs to.
	Type string

	columns []string
	values  map[string]any
	edges   map[string]*Edge
}

// NewRecord returns a record of the given type holding the given values.
func NewRecord(typ string, values map[string]any) *Record {
	r := &Record{Type: typ, values: make(map[string]any, len(values))}
	for k, v := range values {
		r.Set(k, v)
	}
	return r
}

// Get returns the raw value of a column and whether the column was loaded.
func (r *Record) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Value returns the raw value of a column, or nil if it was not loaded.
func (r *Record) Value(column string) any {
	return r.values[column]
}

// Set stores a column value. Columns keep the order of their first Set.
func (r *Record) Set(column string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Columns returns the names of the loaded columns in load order.
func (r *Record) Columns() []string {
	return r.columns
}

// Edge returns the association state for name, or nil if the association was
// never touched by a linkage.
func (r *Record) Edge(name string) *Edge {
	return r.edges[name]
}

// InitEdge returns the association state for name, creating an unloaded
// one when missing. It is part of the mutation surface used while linking.
func (r *Record) InitEdge(name string, many bool) *Edge {
	if e, ok := r.edges[name]; ok {
		return e
	}
	if r.edges == nil {
		r.edges = make(map[string]*Edge)
	}
	e := &Edge{Many: many}
	r.edges[name] = e
	return e
}

// Loaded reports whether the association was linked.
func (r *Record) Loaded(name string) bool {
	e := r.edges[name]
	return e != nil && e.Loaded
}

// One returns the target of a to-one association. A nil record with a nil
// error means the association was loaded and has no value.
func (r *Record) One(name string) (*Record, error) {
	e := r.edges[name]
	if e == nil || !e.Loaded {
		return nil, NewNotLoadedError(name)
	}
	return e.Target, nil
}

// Many returns the collection of a to-many association.
func (r *Record) Many(name string) ([]*Record, error) {
	e := r.edges[name]
	if e == nil || !e.Loaded {
		return nil, NewNotLoadedError(name)
	}
	return e.Items, nil
}

// Edge is the resolved state of one association on one record.
type Edge struct {
	// Loaded is set once the association was resolved, with or without a value.
	Loaded bool
	// Many reports whether the association is a collection.
	Many bool
	// Target holds the value of a to-one association.
	Target *Record
	// Items holds the values of a to-many association.
	Items []*Record
}

// SetTarget resolves a to-one association.
func (e *Edge) SetTarget(rec *Record) {
	e.Target = rec
	e.Loaded = true
}

// Append adds records to a to-many association and marks it loaded.
func (e *Edge) Append(recs ...*Record) {
	if e.Items == nil {
		e.Items = make([]*Record, 0, len(recs))
	}
	e.Items = append(e.Items, recs...)
	e.Loaded = true
}

// MarkLoaded resolves the association without a value: an empty collection
// for to-many edges and an absent target for to-one edges.
func (e *Edge) MarkLoaded() {
	if e.Many && e.Items == nil {
		e.Items = []*Record{}
	}
	e.Loaded = true
}

// Records returns the associated records regardless of cardinality.
func (e *Edge) Records() []*Record {
	if e == nil {
		return nil
	}
	if e.Many {
		return e.Items
	}
	if e.Target != nil {
		return []*Record{e.Target}
	}
	return nil
}
