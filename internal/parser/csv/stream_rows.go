// Package csv streams CSV extracts into pooled rows aligned to a bronze
// table's columns.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"dwh/internal/config"
	"dwh/internal/transformer"
	"dwh/internal/transformer/builtin"
)

const utf8BOM = "\uFEFF"

// ErrNoColumns is returned when a header matches none of the target columns.
var ErrNoColumns = errors.New("csv header matches none of the target columns")

// StreamCSVRows streams CSV into pooled *transformer.Row objects aligned to
// the target columns. It reuses csv.Reader buffers (ReuseRecord=true) and
// copies cells into row.V[i] as strings, or nil for empty cells.
//
// Header handling:
//   - has_header (default true): the first line is the header. Names are
//     trimmed, stripped of a BOM, mapped through header_map, and otherwise
//     lower-cased with spaces replaced by underscores. Target columns missing
//     from the header stay NULL.
//   - has_header=false: the mapping is positional.
//
// Options: comma (default ','), trim_space (default false; bronze keeps raw
// values), lazy_quotes, fields_per_record (0 = variable).
//
// onErr(line, err) receives recoverable row errors (soft-drop).
func StreamCSVRows(
	ctx context.Context,
	src io.ReadCloser,
	columns []string,
	opt config.Options,
	out chan<- *transformer.Row,
	onErr func(line int, err error),
) error {
	defer src.Close()

	hasHeader := opt.Bool("has_header", true)
	trim := opt.Bool("trim_space", false)
	hm := opt.StringMap("header_map")

	cr := csv.NewReader(src)
	cr.Comma = opt.Rune("comma", ',')
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	if n := opt.Int("fields_per_record", 0); n != 0 {
		cr.FieldsPerRecord = n
	} else {
		cr.FieldsPerRecord = -1
	}

	// colIx[target] = source index, or -1.
	colIx := make([]int, len(columns))
	for i := range colIx {
		colIx[i] = -1
	}

	line := 0
	read := func() ([]string, error) { line++; return cr.Read() }

	if hasHeader {
		hdr, err := read()
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("read header: %w", err))
			}
			return fmt.Errorf("read header: %w", err)
		}
		srcToIdx := make(map[string]int, len(hdr))
		for i, h := range hdr {
			srcToIdx[normalizeHeader(h, i == 0, hm)] = i
		}
		matched := 0
		for t, target := range columns {
			if si, ok := srcToIdx[target]; ok {
				colIx[t] = si
				matched++
			}
		}
		if matched == 0 && len(columns) > 0 {
			return fmt.Errorf("%w: header=%v columns=%v", ErrNoColumns, hdr, columns)
		}
	} else {
		for i := range columns {
			colIx[i] = i
		}
	}

	const logEveryN = 50_000
	emitted := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		row := transformer.GetRow(len(columns))
		for t := range columns {
			si := colIx[t]
			if si < 0 || si >= len(rec) {
				continue
			}
			v := rec[si]
			if trim && builtin.HasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			if v != "" {
				row.V[t] = v
			}
		}

		select {
		case out <- row:
			emitted++
			if emitted%logEveryN == 0 {
				log.Printf("reader: line=%d emitted=%d", line, emitted)
			}
		case <-ctx.Done():
			row.Free()
			return ctx.Err()
		}
	}
}

func normalizeHeader(h string, first bool, hm map[string]string) string {
	if first {
		h = strings.TrimPrefix(h, utf8BOM)
	}
	if builtin.HasEdgeSpace(h) {
		h = strings.TrimSpace(h)
	}
	if mapped, ok := hm[h]; ok {
		return mapped
	}
	return strings.ReplaceAll(strings.ToLower(h), " ", "_")
}
