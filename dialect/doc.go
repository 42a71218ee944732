// Package dialect names the supported SQL dialects and defines the driver
// interfaces the SQL Querier runs on.
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// A Driver executes statements and opens transactions; a Tx is bound to one
// transaction. Both implement ExecQuerier:
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//	q := sql.NewQuerier(drv)
//
// Sub-packages:
//
//   - dialect/sql: database/sql driver wrapper, statistics driver and Querier
//   - dialect/sql/schema: live schema inspection with Atlas
package dialect
