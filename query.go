package datagraph

import (
	"context"
	"slices"
)

// Query describes one row query against one entity type.
type Query struct {
	// Type is the entity type name stamped on returned records.
	Type string
	// Table is the table (or collection) to read from.
	Table string
	// Select lists the columns to fetch. Entries that are not plain
	// identifiers are passed through as expressions.
	Select []string
	// Where holds predicates combined with AND.
	Where []Predicate
	// OrderBy holds ordering terms, e.g. "name" or "id DESC".
	OrderBy []string
	// Limit and Offset page the result when positive.
	Limit  int
	Offset int
}

// Clone returns a copy of the query that can be modified independently.
func (q *Query) Clone() *Query {
	if q == nil {
		return &Query{}
	}
	return &Query{
		Type:    q.Type,
		Table:   q.Table,
		Select:  slices.Clone(q.Select),
		Where:   slices.Clone(q.Where),
		OrderBy: slices.Clone(q.OrderBy),
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
}

// Predicate is a row condition understood by a Querier.
type Predicate interface {
	predicate()
}

// KeyIn matches rows whose key tuple equals one of Tuples. A single column is
// a plain membership test; composite keys are an OR of per-tuple AND groups.
type KeyIn struct {
	Table   string
	Columns []string
	Tuples  [][]any
}

// Eq matches rows whose columns equal the given values.
type Eq map[string]any

// Expr is a raw condition template with bound values, using ? placeholders.
type Expr struct {
	SQL  string
	Args []any
}

func (KeyIn) predicate() {}
func (Eq) predicate()    {}
func (Expr) predicate()  {}

// Querier executes row queries. Implementations own connections, timeouts and
// transactions; the graph only hands them a context.
type Querier interface {
	// Query returns the rows matching q, in storage order.
	Query(ctx context.Context, q *Query) ([]*Record, error)
	// Count returns the number of rows matching q, ignoring Limit and Offset.
	Count(ctx context.Context, q *Query) (int, error)
}

// QueryFunc is an adapter to allow the use of ordinary functions as Querier.
// Count runs the function without paging and counts the rows.
type QueryFunc func(context.Context, *Query) ([]*Record, error)

// Query calls f(ctx, q).
func (f QueryFunc) Query(ctx context.Context, q *Query) ([]*Record, error) {
	return f(ctx, q)
}

// Count calls f without Limit and Offset and returns the number of rows.
func (f QueryFunc) Count(ctx context.Context, q *Query) (int, error) {
	c := q.Clone()
	c.Limit, c.Offset = 0, 0
	recs, err := f(ctx, c)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Interceptor wraps a Querier with additional behavior.
type Interceptor interface {
	Intercept(Querier) Querier
}

// InterceptFunc is an adapter to allow the use of ordinary functions as Interceptor.
type InterceptFunc func(Querier) Querier

// Intercept calls f(next).
func (f InterceptFunc) Intercept(next Querier) Querier {
	return f(next)
}

// Intercept wraps q with the given interceptors. The first interceptor is the
// outermost one.
func Intercept(q Querier, interceptors ...Interceptor) Querier {
	for i := len(interceptors) - 1; i >= 0; i-- {
		q = interceptors[i].Intercept(q)
	}
	return q
}

// Page is one page of a paginated result.
type Page struct {
	Records []*Record
	Page    int
	PerPage int
	Total   int
}

// TotalPages returns the number of pages for Total records.
func (p *Page) TotalPages() int {
	if p.PerPage <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}
