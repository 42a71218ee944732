// Package sql runs datagraph queries on database/sql.
//
// Driver wraps a *sql.DB as a dialect.Driver, with per-context session
// variables (WithVar). StatsDriver counts statements and reports slow ones.
// Open accepts the mysql, postgres and sqlite dialects without further
// driver imports.
//
// Querier renders datagraph.Query values with squirrel for the driver's
// dialect and scans rows into records:
//
//	drv, err := sql.Open(dialect.Postgres, dsn)
//	if err != nil {
//	    return err
//	}
//	q := sql.NewQuerier(sql.NewStatsDriver(drv), sql.WithLogger(logger))
//	jobs, err := node.Find(ctx, q, &datagraph.Query{OrderBy: []string{"name"}})
//
// Key predicates render as a plain IN list for single-column keys and as an
// OR of AND groups for composite keys:
//
//	"emps"."dept_id" IN ($1,$2)
//	(("lines"."shop" = $1 AND "lines"."number" = $2) OR (...))
//
// Identifiers are quoted per dialect; Select entries and ordering terms that
// are not plain identifiers pass through as expressions.
package sql
