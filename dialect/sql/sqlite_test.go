package sql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/datagraph"
	"github.com/syssam/datagraph/dialect"
	"github.com/syssam/datagraph/dialect/sql"
	"github.com/syssam/datagraph/graph"
	"github.com/syssam/datagraph/schema"
)

// openSQLite returns a stats driver over a private in-memory database
// populated by stmts.
func openSQLite(t *testing.T, stmts ...string) *sql.StatsDriver {
	t.Helper()
	drv, err := sql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a database of its own.
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	ctx := context.Background()
	for _, stmt := range stmts {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil), stmt)
	}
	return sql.NewStatsDriver(drv)
}

var companyDDL = []string{
	`CREATE TABLE jobs (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
	`CREATE TABLE depts (id INTEGER PRIMARY KEY, name TEXT NOT NULL, city TEXT, state TEXT)`,
	`CREATE TABLE emps (
		id INTEGER PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		job_id INTEGER REFERENCES jobs (id),
		dept_id INTEGER REFERENCES depts (id),
		manager_id INTEGER REFERENCES emps (id),
		salary INTEGER
	)`,
}

var companyRows = []string{
	`INSERT INTO jobs (id, name) VALUES (1, 'Clerk'), (2, 'Analyst'), (3, 'Manager')`,
	`INSERT INTO depts (id, name, city, state) VALUES
		(10, 'Research', 'Dallas', 'TX'),
		(20, 'Sales', 'Chicago', 'IL'),
		(30, 'Accounting', 'New York', 'NY')`,
	`INSERT INTO emps (id, first_name, last_name, job_id, dept_id, manager_id, salary) VALUES
		(1, 'Kim', 'Lane', 1, 10, NULL, 100),
		(2, 'Bob', 'Ford', 1, 20, 1, 80),
		(3, 'Ann', 'Gray', 2, 10, 1, 90),
		(4, 'Tom', 'Hill', 1, 10, 2, 70),
		(5, 'Sue', 'Park', NULL, NULL, 2, 60)`,
}

func companyRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Load([]byte(`
types:
  - name: Job
    columns: [id, name]
    associations:
      - {name: employees, macro: has_many, type: Emp}
      - {name: departments, macro: has_many, through: employees, source: department}
  - name: Emp
    columns: [id, first_name, last_name, job_id, dept_id, manager_id, salary]
    associations:
      - {name: department, macro: belongs_to, type: Dept, foreign_key: [dept_id]}
      - {name: job, macro: belongs_to}
      - {name: manager, macro: belongs_to, type: Emp}
  - name: Dept
    columns: [id, name, city, state]
`))
	require.NoError(t, err)
	return reg
}

func values(recs []*datagraph.Record, col string) []any {
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = r.Value(col)
	}
	return out
}

func TestSQLite_Find(t *testing.T) {
	t.Parallel()
	drv := openSQLite(t, append(companyDDL, companyRows...)...)
	q := sql.NewQuerier(drv)
	node := graph.MustNode(companyRegistry(t), "Job", graph.Options{
		Include: graph.Includes{
			{Name: "employees", Options: graph.Options{
				Only:    []string{"first_name"},
				Include: graph.IncludeNames("department"),
			}},
			{Name: "departments"},
		},
	})

	jobs, err := node.Find(context.Background(), q, &datagraph.Query{OrderBy: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"Clerk", "Analyst", "Manager"}, values(jobs, "name"))
	// jobs, employees, department, and the employees hop plus depts for
	// departments.
	assert.Equal(t, int64(5), drv.QueryStats().Stats().TotalQueries)

	emps, err := jobs[0].Many("employees")
	require.NoError(t, err)
	assert.Equal(t, []any{"Kim", "Bob", "Tom"}, values(emps, "first_name"))
	dept, err := emps[1].One("department")
	require.NoError(t, err)
	require.NotNil(t, dept)
	assert.Equal(t, "Sales", dept.Value("name"))

	depts, err := jobs[0].Many("departments")
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"Research", "Sales"}, values(depts, "name"))
	depts, err = jobs[1].Many("departments")
	require.NoError(t, err)
	assert.Equal(t, []any{"Research"}, values(depts, "name"))

	emps, err = jobs[2].Many("employees")
	require.NoError(t, err)
	assert.Empty(t, emps)
	depts, err = jobs[2].Many("departments")
	require.NoError(t, err)
	assert.Empty(t, depts)

	out := node.Project(jobs[1])
	assert.Equal(t, map[string]any{
		"id":   int64(2),
		"name": "Analyst",
		"employees": []map[string]any{{
			"first_name": "Ann",
			"department": map[string]any{"id": int64(10), "name": "Research", "city": "Dallas", "state": "TX"},
		}},
		"departments": []map[string]any{
			{"id": int64(10), "name": "Research", "city": "Dallas", "state": "TX"},
		},
	}, out)
}

func TestSQLite_EmptyTables(t *testing.T) {
	t.Parallel()
	drv := openSQLite(t, companyDDL...)
	node := graph.MustNode(companyRegistry(t), "Job", graph.Options{
		Include: graph.IncludeNames("employees", "departments"),
	})
	jobs, err := node.Find(context.Background(), sql.NewQuerier(drv), &datagraph.Query{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Equal(t, int64(1), drv.QueryStats().Stats().TotalQueries, "nothing to link")
}

func TestSQLite_GetPaginate(t *testing.T) {
	t.Parallel()
	drv := openSQLite(t, append(companyDDL, companyRows...)...)
	q := sql.NewQuerier(drv)
	node := graph.MustNode(companyRegistry(t), "Emp", graph.Options{
		Only:    []string{"first_name"},
		Include: graph.IncludeNames("manager"),
	})
	ctx := context.Background()

	ann, err := node.Get(ctx, q, int64(3))
	require.NoError(t, err)
	assert.Equal(t, "Ann", ann.Value("first_name"))
	mgr, err := ann.One("manager")
	require.NoError(t, err)
	assert.Equal(t, "Kim", mgr.Value("first_name"))

	_, err = node.Get(ctx, q, int64(99))
	assert.True(t, datagraph.IsNotFound(err))

	page, err := node.Paginate(ctx, q, &datagraph.Query{OrderBy: []string{"id"}}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages())
	assert.Equal(t, []any{"Ann", "Tom"}, values(page.Records, "first_name"))

	page, err = node.Paginate(ctx, q, &datagraph.Query{
		Where:   []datagraph.Predicate{datagraph.Expr{SQL: "salary > ?", Args: []any{75}}},
		OrderBy: []string{"salary DESC"},
	}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, graph.DefaultPerPage, page.PerPage)
	assert.Equal(t, []any{"Kim", "Ann", "Bob"}, values(page.Records, "first_name"))
}

func TestSQLite_CompositeHasManyThrough(t *testing.T) {
	t.Parallel()
	drv := openSQLite(t,
		`CREATE TABLE ones (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE threes (a INTEGER, b INTEGER, label TEXT, PRIMARY KEY (a, b))`,
		`CREATE TABLE twos (
			one_id INTEGER REFERENCES ones (id),
			three_a INTEGER,
			three_b INTEGER,
			PRIMARY KEY (one_id, three_a, three_b),
			FOREIGN KEY (three_a, three_b) REFERENCES threes (a, b)
		)`,
		`INSERT INTO ones (id) VALUES (1), (2), (3)`,
		`INSERT INTO threes (a, b, label) VALUES (10, 100, 'x'), (20, 100, 'y'), (30, 300, 'z'), (10, 200, 'w')`,
		`INSERT INTO twos (one_id, three_a, three_b) VALUES (1, 10, 100), (1, 20, 100), (2, 10, 100)`,
	)
	reg, err := schema.New(
		&schema.Type{Name: "One", Columns: []string{"id"}, Associations: []*schema.Association{
			{Name: "twos", Macro: schema.HasMany},
			{Name: "threes", Macro: schema.HasMany, Through: "twos", Source: "three"},
		}},
		&schema.Type{Name: "Two", Columns: []string{"one_id", "three_a", "three_b"},
			PrimaryKey: []string{"one_id", "three_a", "three_b"},
			Associations: []*schema.Association{
				{Name: "three", Macro: schema.BelongsTo, ForeignKey: []string{"three_a", "three_b"}},
			}},
		&schema.Type{Name: "Three", Columns: []string{"a", "b", "label"}, PrimaryKey: []string{"a", "b"}},
	)
	require.NoError(t, err)
	refl, ok := reg.Reflect("Two", "three")
	require.True(t, ok)
	assert.True(t, refl.Composite())

	node := graph.MustNode(reg, "One", graph.Options{Include: graph.IncludeNames("threes")})
	ones, err := node.Find(context.Background(), sql.NewQuerier(drv), &datagraph.Query{OrderBy: []string{"id"}})
	require.NoError(t, err)
	require.Len(t, ones, 3)
	assert.Equal(t, int64(3), drv.QueryStats().Stats().TotalQueries)

	threes, err := ones[0].Many("threes")
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"x", "y"}, values(threes, "label"))
	threes, err = ones[1].Many("threes")
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, values(threes, "label"))
	threes, err = ones[2].Many("threes")
	require.NoError(t, err)
	assert.Empty(t, threes)
}

func TestSQLite_Tx(t *testing.T) {
	t.Parallel()
	drv := openSQLite(t, append(companyDDL, companyRows...)...)
	ctx := context.Background()
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.Exec(ctx, `INSERT INTO jobs (id, name) VALUES (4, 'Director')`, []any{}, nil))
	q := sql.NewQuerier(drv).WithTx(tx)
	n, err := q.Count(ctx, &datagraph.Query{Table: "jobs"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = q.Count(ctx, &datagraph.Query{Table: "emps", Where: []datagraph.Predicate{datagraph.Eq{"dept_id": 10}}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(1), drv.QueryStats().Stats().TotalExecs)
}
