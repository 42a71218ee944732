package sql

import (
	// Open accepts the dialect names as database/sql driver names: lib/pq
	// registers "postgres", go-sql-driver/mysql "mysql" and modernc "sqlite".
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)
