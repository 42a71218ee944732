// Package schema reads live table definitions with Atlas and reconciles them
// with a datagraph type registry.
package schema

import (
	"context"
	"fmt"
	"slices"

	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/datagraph/dialect"
	"github.com/syssam/datagraph/dialect/sql"
	dgschema "github.com/syssam/datagraph/schema"
)

// Inspector reads table definitions from a live database.
type Inspector struct {
	insp   atlas.Inspector
	schema string
}

// InspectOption configures an Inspector.
type InspectOption func(*Inspector)

// WithSchema selects the database schema to inspect. The default is the
// connection's current schema, or "main" on SQLite.
func WithSchema(name string) InspectOption {
	return func(i *Inspector) {
		i.schema = name
	}
}

// NewInspector returns an Inspector for the dialect of drv.
func NewInspector(drv *sql.Driver, opts ...InspectOption) (*Inspector, error) {
	var (
		insp atlas.Inspector
		err  error
		i    = &Inspector{}
	)
	switch drv.Dialect() {
	case dialect.SQLite:
		i.schema = "main"
		insp, err = sqlite.Open(drv)
	case dialect.Postgres:
		insp, err = postgres.Open(drv)
	case dialect.MySQL:
		insp, err = mysql.Open(drv)
	default:
		return nil, fmt.Errorf("dialect/sql/schema: unsupported dialect %q", drv.Dialect())
	}
	if err != nil {
		return nil, fmt.Errorf("dialect/sql/schema: open %s inspector: %w", drv.Dialect(), err)
	}
	i.insp = insp
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Tables returns the named tables found in the database, keyed by name.
// Missing tables are absent from the result.
func (i *Inspector) Tables(ctx context.Context, names ...string) (map[string]*atlas.Table, error) {
	s, err := i.insp.InspectSchema(ctx, i.schema, &atlas.InspectOptions{Tables: names})
	if err != nil {
		return nil, fmt.Errorf("dialect/sql/schema: inspect: %w", err)
	}
	tables := make(map[string]*atlas.Table, len(s.Tables))
	for _, t := range s.Tables {
		tables[t.Name] = t
	}
	return tables, nil
}

// Inspect returns a registry over the types of reg completed from the
// database: types without columns get the table's columns in table order,
// and tables with a primary key replace the declared one. Types whose table
// does not exist are kept as declared.
func (i *Inspector) Inspect(ctx context.Context, reg *dgschema.Registry) (*dgschema.Registry, error) {
	types := reg.Types()
	tables, err := i.Tables(ctx, tableNames(types)...)
	if err != nil {
		return nil, err
	}
	out := make([]*dgschema.Type, len(types))
	for n, t := range types {
		c := *t
		c.Columns = slices.Clone(t.Columns)
		c.PrimaryKey = slices.Clone(t.PrimaryKey)
		if tbl, ok := tables[t.Table]; ok {
			if len(c.Columns) == 0 {
				c.Columns = columnNames(tbl.Columns)
			}
			if pk := primaryKey(tbl); len(pk) > 0 {
				c.PrimaryKey = pk
			}
		}
		out[n] = &c
	}
	return dgschema.New(out...)
}

// Inspect is a shorthand for NewInspector followed by Inspector.Inspect.
func Inspect(ctx context.Context, drv *sql.Driver, reg *dgschema.Registry) (*dgschema.Registry, error) {
	i, err := NewInspector(drv)
	if err != nil {
		return nil, err
	}
	return i.Inspect(ctx, reg)
}

func tableNames(types []*dgschema.Type) []string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		if !slices.Contains(names, t.Table) {
			names = append(names, t.Table)
		}
	}
	return names
}

func columnNames(cols []*atlas.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func primaryKey(t *atlas.Table) []string {
	if t.PrimaryKey == nil {
		return nil
	}
	var pk []string
	for _, p := range t.PrimaryKey.Parts {
		if p.C != nil {
			pk = append(pk, p.C.Name)
		}
	}
	return pk
}
