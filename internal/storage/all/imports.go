// Package all wires the built-in storage backends into the storage factory.
//
// Importing it (even as a blank import) runs each backend's init function,
// which registers its factory. Kinds available after import:
//
//   - "postgres" (storage/postgres, pgx)
//   - "mssql"    (storage/mssql)
//   - "mysql"    (storage/mysql)
//   - "sqlite"   (storage/sqlite, pure Go)
//   - "memory"   (storage/memory, in-process)
//   - "duckdb"   (storage/duckdb, cgo builds only)
//
// Binaries that need only a subset of backends can import those packages
// directly instead.
package all

import (
	_ "dwh/internal/storage/memory"
	_ "dwh/internal/storage/mssql"
	_ "dwh/internal/storage/mysql"
	_ "dwh/internal/storage/postgres"
	_ "dwh/internal/storage/sqlite"
)
