package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/syssam/datagraph"
	"github.com/syssam/datagraph/dialect"
)

// Querier is a datagraph.Querier that renders queries with squirrel and runs
// them on a dialect.ExecQuerier. It holds no state besides its driver and is
// safe for concurrent use when the driver is.
type Querier struct {
	drv     dialect.ExecQuerier
	dialect string
	builder sq.StatementBuilderType
	logger  *slog.Logger
}

// QuerierOption configures a Querier.
type QuerierOption func(*Querier)

// WithLogger sets the logger queries are logged to at debug level.
func WithLogger(l *slog.Logger) QuerierOption {
	return func(q *Querier) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithDialect overrides the dialect reported by the driver.
func WithDialect(name string) QuerierOption {
	return func(q *Querier) {
		q.dialect = name
	}
}

// NewQuerier returns a Querier over drv.
//
//	drv, _ := sql.Open(dialect.SQLite, "file:app.db")
//	jobs, err := node.Find(ctx, sql.NewQuerier(drv), &datagraph.Query{})
func NewQuerier(drv dialect.Driver, opts ...QuerierOption) *Querier {
	q := &Querier{
		drv:     drv,
		dialect: drv.Dialect(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	format := sq.PlaceholderFormat(sq.Question)
	if q.dialect == dialect.Postgres {
		format = sq.Dollar
	}
	q.builder = sq.StatementBuilder.PlaceholderFormat(format)
	return q
}

// WithTx returns a copy of the Querier running its statements in tx.
func (q *Querier) WithTx(tx dialect.Tx) *Querier {
	c := *q
	c.drv = tx
	return &c
}

// Dialect returns the dialect queries are rendered for.
func (q *Querier) Dialect() string { return q.dialect }

// Query implements datagraph.Querier.
func (q *Querier) Query(ctx context.Context, query *datagraph.Query) ([]*datagraph.Record, error) {
	stmt, args, err := q.SelectSQL(query)
	if err != nil {
		return nil, err
	}
	q.logger.DebugContext(ctx, "dialect/sql: query", "table", query.Table, "sql", stmt, "args", args)
	rows := &Rows{}
	if err := q.drv.Query(ctx, stmt, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(query.Type, rows)
}

// Count implements datagraph.Querier.
func (q *Querier) Count(ctx context.Context, query *datagraph.Query) (int, error) {
	stmt, args, err := q.CountSQL(query)
	if err != nil {
		return 0, err
	}
	q.logger.DebugContext(ctx, "dialect/sql: count", "table", query.Table, "sql", stmt, "args", args)
	rows := &Rows{}
	if err := q.drv.Query(ctx, stmt, args, rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, errors.New("dialect/sql: count returned no rows")
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return 0, fmt.Errorf("dialect/sql: scan count: %w", err)
	}
	return int(n), rows.Err()
}

// SelectSQL renders the SELECT statement of query.
func (q *Querier) SelectSQL(query *datagraph.Query) (string, []any, error) {
	if query.Table == "" {
		return "", nil, errors.New("dialect/sql: query without table")
	}
	cols := make([]string, len(query.Select))
	for i, c := range query.Select {
		cols[i] = q.quote(c)
	}
	if len(cols) == 0 {
		cols = []string{"*"}
	}
	b := q.builder.Select(cols...).From(q.quote(query.Table))
	b, err := q.where(b, query.Where)
	if err != nil {
		return "", nil, err
	}
	for _, o := range query.OrderBy {
		b = b.OrderBy(q.orderTerm(o))
	}
	switch {
	case query.Limit > 0:
		b = b.Limit(uint64(query.Limit))
	case query.Offset > 0 && q.dialect != dialect.Postgres:
		// MySQL and SQLite have no OFFSET without LIMIT.
		b = b.Limit(math.MaxInt64)
	}
	if query.Offset > 0 {
		b = b.Offset(uint64(query.Offset))
	}
	return b.ToSql()
}

// CountSQL renders the COUNT statement of query, ignoring ordering and
// paging.
func (q *Querier) CountSQL(query *datagraph.Query) (string, []any, error) {
	if query.Table == "" {
		return "", nil, errors.New("dialect/sql: query without table")
	}
	b, err := q.where(q.builder.Select("COUNT(*)").From(q.quote(query.Table)), query.Where)
	if err != nil {
		return "", nil, err
	}
	return b.ToSql()
}

func (q *Querier) where(b sq.SelectBuilder, preds []datagraph.Predicate) (sq.SelectBuilder, error) {
	for _, p := range preds {
		s, err := q.predicate(p)
		if err != nil {
			return b, err
		}
		b = b.Where(s)
	}
	return b, nil
}

func (q *Querier) predicate(p datagraph.Predicate) (sq.Sqlizer, error) {
	switch p := p.(type) {
	case datagraph.KeyIn:
		return q.keyIn(p)
	case datagraph.Eq:
		eq := make(sq.Eq, len(p))
		for c, v := range p {
			eq[q.quote(c)] = v
		}
		return eq, nil
	case datagraph.Expr:
		return sq.Expr(p.SQL, p.Args...), nil
	default:
		return nil, fmt.Errorf("dialect/sql: unsupported predicate %T", p)
	}
}

// keyIn renders a single column as "c IN (...)" and a composite key as an OR
// of per-tuple AND groups, keeping the column order.
func (q *Querier) keyIn(p datagraph.KeyIn) (sq.Sqlizer, error) {
	if len(p.Columns) == 0 {
		return nil, errors.New("dialect/sql: key predicate without columns")
	}
	cols := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		if p.Table != "" {
			c = p.Table + "." + c
		}
		cols[i] = q.quote(c)
	}
	for _, t := range p.Tuples {
		if len(t) != len(cols) {
			return nil, fmt.Errorf("dialect/sql: key tuple %v does not match columns %v", t, p.Columns)
		}
	}
	if len(cols) == 1 {
		vals := make([]any, len(p.Tuples))
		for i, t := range p.Tuples {
			vals[i] = t[0]
		}
		return sq.Eq{cols[0]: vals}, nil
	}
	or := make(sq.Or, len(p.Tuples))
	for i, t := range p.Tuples {
		and := make(sq.And, len(cols))
		for j, c := range cols {
			and[j] = sq.Eq{c: t[j]}
		}
		or[i] = and
	}
	return or, nil
}

// quote quotes a plain, optionally qualified, identifier for the dialect.
// Anything else is passed through as an expression.
func (q *Querier) quote(ident string) string {
	if !isIdent(ident) {
		return ident
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		switch q.dialect {
		case dialect.Postgres:
			parts[i] = pq.QuoteIdentifier(p)
		case dialect.MySQL:
			parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
		default:
			parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
		}
	}
	return strings.Join(parts, ".")
}

// orderTerm quotes the column of an ordering term such as "name DESC".
func (q *Querier) orderTerm(term string) string {
	col, dir, ok := strings.Cut(strings.TrimSpace(term), " ")
	if !ok {
		return q.quote(col)
	}
	return q.quote(col) + " " + strings.TrimSpace(dir)
}

func scanRecords(typ string, rows ColumnScanner) ([]*datagraph.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	var recs []*datagraph.Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		rec := datagraph.NewRecord(typ, nil)
		for i, c := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec.Set(c, v)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

var _ datagraph.Querier = (*Querier)(nil)
