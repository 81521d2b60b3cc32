package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

const jsonPipeline = `{
  "job": "nightly",
  "staging": {
    "sources": [ { "table": "crm_cust_info", "path": "cust_info.csv" } ],
    "parser": { "kind": "csv", "options": { "has_header": true } }
  },
  "storage": { "kind": "postgres", "db": { "dsn": "${TEST_DWH_PG}" } },
  "runtime": { "batch_size": 500 }
}`

func TestLoadJSONExpandsAndDefaults(t *testing.T) {
	t.Setenv("TEST_DWH_PG", "postgres://u@h/db")
	p, err := Load(writeFile(t, t.TempDir(), "pipeline.json", jsonPipeline))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Storage.DB.DSN != "postgres://u@h/db" {
		t.Fatalf("dsn=%q", p.Storage.DB.DSN)
	}
	if p.Runtime.BatchSize != 500 || p.Runtime.ReaderWorkers != DefaultReaderWorkers {
		t.Fatalf("runtime=%+v", p.Runtime)
	}
	if p.Storage.DB.BronzeSchema != "bronze" || p.Storage.DB.SilverSchema != "silver" {
		t.Fatalf("schemas=%+v", p.Storage.DB)
	}
	if p.Audit.MinBirthdate != DefaultMinBirthdate || p.Audit.MaxFindings != DefaultMaxFindings {
		t.Fatalf("audit=%+v", p.Audit)
	}
	if !p.Staging.Parser.Options.Bool("has_header", false) {
		t.Fatalf("parser options lost")
	}
}

func TestLoadYAML(t *testing.T) {
	body := `job: yaml-run
storage:
  kind: sqlite
  db:
    dsn: "file:dwh.db"
audit:
  enabled: true
  min_birthdate: "1930-01-01"
dead_letter:
  path: rejects.csv
`
	p, err := Load(writeFile(t, t.TempDir(), "pipeline.yaml", body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Job != "yaml-run" || p.Storage.Kind != "sqlite" || !p.Audit.Enabled {
		t.Fatalf("decoded %+v", p)
	}
	if p.Audit.MinBirthdate != "1930-01-01" || p.DeadLetter.Path != "rejects.csv" {
		t.Fatalf("decoded %+v", p)
	}
	if p.Staging.Parser.Kind != "csv" || p.Staging.Parser.Options == nil {
		t.Fatalf("parser defaults: %+v", p.Staging.Parser)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TEST_DWH_PG", "postgres://file")
	t.Setenv("DWH_STORAGE_DSN", "postgres://env")
	t.Setenv("DWH_BATCH_SIZE", "42")
	t.Setenv("DWH_READER_WORKERS", "not-a-number")

	p, err := Load(writeFile(t, t.TempDir(), "pipeline.json", jsonPipeline))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Storage.DB.DSN != "postgres://env" {
		t.Fatalf("dsn=%q", p.Storage.DB.DSN)
	}
	if p.Runtime.BatchSize != 42 {
		t.Fatalf("batch=%d", p.Runtime.BatchSize)
	}
	if p.Runtime.ReaderWorkers != DefaultReaderWorkers {
		t.Fatalf("invalid env must be ignored, readers=%d", p.Runtime.ReaderWorkers)
	}
}

func TestLoadDotEnvNextToPipeline(t *testing.T) {
	dir := t.TempDir()
	const key = "TEST_DWH_DOTENV_DSN"
	t.Cleanup(func() { os.Unsetenv(key) })
	writeFile(t, dir, ".env", key+"=sqlite-from-dotenv\n")
	body := strings.ReplaceAll(jsonPipeline, "${TEST_DWH_PG}", "${"+key+"}")

	p, err := Load(writeFile(t, dir, "pipeline.json", body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Storage.DB.DSN != "sqlite-from-dotenv" {
		t.Fatalf("dsn=%q", p.Storage.DB.DSN)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	bad := writeFile(t, dir, "typo.json", `{"jobb":"x"}`)
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "decode json config") {
		t.Fatalf("err=%v, want unknown field error", err)
	}
	badYAML := writeFile(t, dir, "bad.yml", "job: [unterminated")
	if _, err := Load(badYAML); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestPickInt(t *testing.T) {
	if pickInt(5, 1) != 5 || pickInt(0, 1) != 1 || pickInt(-3, 1) != 1 {
		t.Fatalf("pickInt")
	}
}
