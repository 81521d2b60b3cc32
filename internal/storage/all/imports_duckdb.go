//go:build cgo

package all

import _ "dwh/internal/storage/duckdb"
