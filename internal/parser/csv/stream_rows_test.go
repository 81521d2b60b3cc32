package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"dwh/internal/config"
	"dwh/internal/transformer"
)

// fakeRC is an io.ReadCloser over a byte slice that records Close.
type fakeRC struct {
	*bytes.Reader
	closed bool
}

func newFakeRC(b []byte) *fakeRC { return &fakeRC{Reader: bytes.NewReader(b)} }
func (f *fakeRC) Close() error   { f.closed = true; return nil }

// makeCSV builds a CSV document with encoding/csv so quoting is correct.
func makeCSV(delim rune, header []string, rows [][]string) []byte {
	var b bytes.Buffer
	w := csv.NewWriter(&b)
	w.Comma = delim
	if header != nil {
		_ = w.Write(header)
	}
	for _, r := range rows {
		_ = w.Write(r)
	}
	w.Flush()
	return b.Bytes()
}

// run streams src fully and returns the emitted rows (copied) and errors.
func run(t *testing.T, src []byte, columns []string, opt config.Options) ([][]any, []string, error) {
	t.Helper()
	out := make(chan *transformer.Row, 64)
	var errs []string
	err := StreamCSVRows(context.Background(), newFakeRC(src), columns, opt, out,
		func(line int, err error) { errs = append(errs, fmt.Sprintf("%d:%v", line, err)) })
	close(out)
	var rows [][]any
	for r := range out {
		rows = append(rows, append([]any(nil), r.V...))
		r.Free()
	}
	return rows, errs, err
}

func TestStreamCSVRows_ERPHeaderMapping(t *testing.T) {
	// ERP extracts use upper-case headers and the first cell may carry a BOM.
	src := makeCSV(',', []string{"\uFEFFCID", "BDATE", "GEN"}, [][]string{
		{"NASAW00011000", "1971-10-06", "Male "},
		{"AW00011001", "", " F"},
	})
	rows, errs, err := run(t, src, []string{"cid", "bdate", "gen"}, config.Options{"has_header": true})
	if err != nil || len(errs) != 0 {
		t.Fatalf("err=%v errs=%v", err, errs)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}
	if rows[0][0] != "NASAW00011000" || rows[0][2] != "Male " {
		t.Fatalf("raw fidelity lost: %v", rows[0])
	}
	if rows[1][1] != nil || rows[1][2] != " F" {
		t.Fatalf("row 2: %v", rows[1])
	}
}

func TestStreamCSVRows_HeaderMapAndTrim(t *testing.T) {
	src := makeCSV(';', []string{"Customer Id", "Country"}, [][]string{{" AW-00011000 ", "  "}})
	opt := config.Options{
		"comma":      ";",
		"trim_space": true,
		"header_map": map[string]any{"Country": "cntry"},
	}
	rows, _, err := run(t, src, []string{"customer_id", "cntry"}, opt)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if rows[0][0] != "AW-00011000" || rows[0][1] != nil {
		t.Fatalf("got %v", rows[0])
	}
}

func TestStreamCSVRows_MissingTargetIsNull(t *testing.T) {
	src := makeCSV(',', []string{"id", "cat"}, [][]string{{"AC_BR", "Accessories"}})
	rows, _, err := run(t, src, []string{"id", "cat", "subcat", "maintenance"}, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(rows[0]) != 4 || rows[0][2] != nil || rows[0][3] != nil {
		t.Fatalf("got %v", rows[0])
	}
}

func TestStreamCSVRows_NoHeaderPositional(t *testing.T) {
	src := makeCSV(',', nil, [][]string{{"AW-1", "DE", "extra"}, {"AW-2"}})
	rows, _, err := run(t, src, []string{"cid", "cntry"}, config.Options{"has_header": false})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if rows[0][0] != "AW-1" || rows[0][1] != "DE" {
		t.Fatalf("row 1: %v", rows[0])
	}
	if rows[1][1] != nil {
		t.Fatalf("short row should pad with nil: %v", rows[1])
	}
}

func TestStreamCSVRows_FieldCountEnforced(t *testing.T) {
	src := []byte("cid,cntry\nAW-1,DE\nAW-2,US,extra\nAW-3,FR\n")
	rows, errs, err := run(t, src, []string{"cid", "cntry"}, config.Options{"fields_per_record": 2})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(rows) != 2 || len(errs) != 1 || !strings.HasPrefix(errs[0], "3:") {
		t.Fatalf("rows=%v errs=%v", rows, errs)
	}
}

func TestStreamCSVRows_BadQuoteContinues(t *testing.T) {
	src := []byte("id,cat\nA,\"Bikes\nB,x\"y\nC,Clothing\n")
	rows, errs, err := run(t, src, []string{"id", "cat"}, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(errs) == 0 {
		t.Fatalf("expected a parse error")
	}
	_ = rows
}

func TestStreamCSVRows_LazyQuotes(t *testing.T) {
	src := []byte("id,cat\nA,Bikes \"Road\"\n")
	rows, errs, err := run(t, src, []string{"id", "cat"}, config.Options{"lazy_quotes": true})
	if err != nil || len(errs) != 0 {
		t.Fatalf("err=%v errs=%v", err, errs)
	}
	if rows[0][1] != `Bikes "Road"` {
		t.Fatalf("got %v", rows[0][1])
	}
}

func TestStreamCSVRows_HeaderErrors(t *testing.T) {
	if _, _, err := run(t, nil, []string{"cid"}, nil); err == nil {
		t.Fatalf("expected header read error on empty input")
	}
	src := makeCSV(',', []string{"foo", "bar"}, [][]string{{"1", "2"}})
	if _, _, err := run(t, src, []string{"cid"}, nil); !errors.Is(err, ErrNoColumns) {
		t.Fatalf("err=%v want ErrNoColumns", err)
	}
}

func TestStreamCSVRows_ClosesSourceAndHonorsCancel(t *testing.T) {
	src := newFakeRC(makeCSV(',', []string{"cid"}, [][]string{{"A"}, {"B"}}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan *transformer.Row)
	err := StreamCSVRows(ctx, src, []string{"cid"}, nil, out, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if !src.closed {
		t.Fatalf("source not closed")
	}
}

func BenchmarkStreamCSVRows(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("sls_ord_num,sls_prd_key,sls_cust_id,sls_order_dt,sls_ship_dt,sls_due_dt,sls_sales,sls_quantity,sls_price\n")
	for i := 0; i < 20_000; i++ {
		sb.WriteString("SO43697,BK-R93R-62,21768,20101229,20110105,20110110,3578,1,3578\n")
	}
	data := []byte(sb.String())
	cols := []string{"sls_ord_num", "sls_prd_key", "sls_cust_id", "sls_order_dt", "sls_ship_dt", "sls_due_dt", "sls_sales", "sls_quantity", "sls_price"}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		out := make(chan *transformer.Row, 8192)
		go func() {
			_ = StreamCSVRows(context.Background(), io.NopCloser(bytes.NewReader(data)), cols, nil, out, nil)
			close(out)
		}()
		for r := range out {
			r.Free()
		}
	}
}
