// Package transformer curates bronze records into silver records and provides
// the pooled Row that carries staging rows from the CSV reader to the loader.
package transformer

import "sync"

// Row is a pooled positional row aligned to a bronze table's columns.
//
// The reader fills V[0:len(columns)] and sends the row downstream. The loader
// calls Free once the batch holding the row has been flushed; nobody may keep
// r or r.V after that.
type Row struct {
	V []any
}

var rowPool sync.Pool

// GetRow returns a pooled Row of length colCount with every element nil.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		clear(r.V)
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Values returns the positional values; it satisfies storage.PooledRow.
func (r *Row) Values() []any { return r.V }

// Free returns the Row to the pool.
func (r *Row) Free() { rowPool.Put(r) }
