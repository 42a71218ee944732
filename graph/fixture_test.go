package graph_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/datagraph"
	"github.com/syssam/datagraph/schema"
)

// memQuerier is an in-memory Querier over rows keyed by table. It records
// every query it serves.
type memQuerier struct {
	tables map[string][]map[string]any
	err    error

	mu      sync.Mutex
	queries []*datagraph.Query
}

func newMemQuerier(tables map[string][]map[string]any) *memQuerier {
	return &memQuerier{tables: tables}
}

func (m *memQuerier) Query(_ context.Context, q *datagraph.Query) ([]*datagraph.Record, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q.Clone())
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var recs []*datagraph.Record
	for _, row := range m.match(q) {
		rec := datagraph.NewRecord(q.Type, nil)
		cols := q.Select
		if len(cols) == 0 {
			cols = sortedColumns(row)
		}
		for _, c := range cols {
			if v, ok := row[c]; ok {
				rec.Set(c, v)
			}
		}
		recs = append(recs, rec)
	}
	if q.Offset > 0 {
		recs = recs[min(q.Offset, len(recs)):]
	}
	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[:q.Limit]
	}
	return recs, nil
}

func (m *memQuerier) Count(_ context.Context, q *datagraph.Query) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.match(q)), nil
}

func (m *memQuerier) match(q *datagraph.Query) []map[string]any {
	var rows []map[string]any
	for _, row := range m.tables[q.Table] {
		if matches(row, q.Where) {
			rows = append(rows, row)
		}
	}
	return rows
}

func matches(row map[string]any, where []datagraph.Predicate) bool {
	for _, p := range where {
		switch p := p.(type) {
		case datagraph.KeyIn:
			found := false
			for _, t := range p.Tuples {
				ok := true
				for i, c := range p.Columns {
					if row[c] == nil || row[c] != t[i] {
						ok = false
						break
					}
				}
				if ok {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case datagraph.Eq:
			for c, v := range p {
				if row[c] != v {
					return false
				}
			}
		default:
			panic("memQuerier: unsupported predicate")
		}
	}
	return true
}

func sortedColumns(row map[string]any) []string {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	return cols
}

// Queries returns the queries served so far.
func (m *memQuerier) Queries() []*datagraph.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.queries)
}

// Reset forgets the recorded queries.
func (m *memQuerier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = nil
}

// row builds a fixture row from alternating column names and values. Ints
// are stored as int64, like database drivers return them.
func row(kv ...any) map[string]any {
	r := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		v := kv[i+1]
		if n, ok := v.(int); ok {
			v = int64(n)
		}
		r[kv[i].(string)] = v
	}
	return r
}

var errBoom = errors.New("boom")

// companyTypes returns the Job/Emp/Dept catalogue:
//
//	Job  has_many employees (Emp), has_many departments through employees
//	Emp  belongs_to department (Dept, dept_id), job, manager (Emp); has_many workers (Emp)
//	Dept has_many employees (Emp, dept_id)
func companyTypes() []*schema.Type {
	return []*schema.Type{
		{
			Name:    "Job",
			Columns: []string{"id", "name"},
			Associations: []*schema.Association{
				{Name: "employees", Macro: schema.HasMany, Type: "Emp"},
				{Name: "departments", Macro: schema.HasMany, Through: "employees"},
			},
		},
		{
			Name:    "Emp",
			Columns: []string{"id", "first_name", "last_name", "job_id", "dept_id", "manager_id", "salary"},
			Associations: []*schema.Association{
				{Name: "department", Macro: schema.BelongsTo, Type: "Dept", ForeignKey: []string{"dept_id"}},
				{Name: "job", Macro: schema.BelongsTo},
				{Name: "manager", Macro: schema.BelongsTo, Type: "Emp"},
				{Name: "workers", Macro: schema.HasMany, Type: "Emp", ForeignKey: []string{"manager_id"}},
			},
		},
		{
			Name:    "Dept",
			Columns: []string{"id", "name", "city", "state"},
			Associations: []*schema.Association{
				{Name: "employees", Macro: schema.HasMany, Type: "Emp", ForeignKey: []string{"dept_id"}},
			},
		},
	}
}

func companyRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.New(companyTypes()...)
	require.NoError(t, err)
	return reg
}

// companyData: Clerk (1) is held in Research and Sales, Analyst (2) only in
// Research, Manager (3) by nobody.
func companyData() *memQuerier {
	return newMemQuerier(map[string][]map[string]any{
		"jobs": {
			row("id", 1, "name", "Clerk"),
			row("id", 2, "name", "Analyst"),
			row("id", 3, "name", "Manager"),
		},
		"emps": {
			row("id", 1, "first_name", "Kim", "last_name", "Lane", "job_id", 1, "dept_id", 10, "manager_id", nil, "salary", 100),
			row("id", 2, "first_name", "Bob", "last_name", "Ford", "job_id", 1, "dept_id", 20, "manager_id", 1, "salary", 80),
			row("id", 3, "first_name", "Ann", "last_name", "Gray", "job_id", 2, "dept_id", 10, "manager_id", 1, "salary", 90),
			row("id", 4, "first_name", "Tom", "last_name", "Hill", "job_id", 1, "dept_id", 10, "manager_id", 2, "salary", 70),
			row("id", 5, "first_name", "Sue", "last_name", "Park", "job_id", nil, "dept_id", nil, "manager_id", 2, "salary", 60),
		},
		"depts": {
			row("id", 10, "name", "Research", "city", "Dallas", "state", "TX"),
			row("id", 20, "name", "Sales", "city", "Chicago", "state", "IL"),
			row("id", 30, "name", "Accounting", "city", "New York", "state", "NY"),
		},
	})
}

func names(t *testing.T, recs []*datagraph.Record, col string) []any {
	t.Helper()
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = r.Value(col)
	}
	return out
}
