// Package datasource abstracts where staging extracts are read from.
package datasource

import (
	"context"
	"io"
)

// Source opens one extract for reading. Callers close the returned reader.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
