package config

import (
	"fmt"
	"strings"
	"time"

	"dwh/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the config
// (e.g. "storage.kind", "staging.sources[2].table").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// StorageKinds are the backends this binary knows how to open.
var StorageKinds = []string{"postgres", "mssql", "mysql", "sqlite", "duckdb", "memory"}

// ValidatePipeline lints p without mutating it. Callers decide whether
// warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and dead-letter rows",
		})
	}
	issues = append(issues, validateStaging(p.Staging)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateAudit(p.Audit)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

func validateStaging(s Staging) []Issue {
	var issues []Issue

	seen := map[string]int{}
	for i, src := range s.Sources {
		path := fmt.Sprintf("staging.sources[%d]", i)
		if _, ok := schema.Bronze(src.Table); !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".table",
				Message:  fmt.Sprintf("unknown bronze table %q; expected one of %s", src.Table, strings.Join(schema.Entities, ", ")),
			})
		} else if prev, dup := seen[src.Table]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".table",
				Message:  fmt.Sprintf("table %q already loaded by staging.sources[%d]", src.Table, prev),
			})
		} else {
			seen[src.Table] = i
		}
		if strings.TrimSpace(src.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".path",
				Message:  "source requires a non-empty path",
			})
		}
	}
	if len(s.Sources) > 0 {
		for _, e := range schema.Entities {
			if _, ok := seen[e]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     "staging.sources",
					Message:  fmt.Sprintf("no source for %s; its bronze table will be emptied", e),
				})
			}
		}
	}

	if k := s.Parser.Kind; k != "" && k != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "staging.parser.kind",
			Message:  fmt.Sprintf("unsupported parser kind %q; only csv is implemented", k),
		})
	}
	if c := s.Parser.Options.String("comma", ","); len([]rune(c)) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "staging.parser.options.comma",
			Message:  fmt.Sprintf("comma must be a single character, got %q", c),
		})
	}
	if s.Parser.Options.Bool("trim_space", false) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "staging.parser.options.trim_space",
			Message:  "trim_space alters raw values before staging; the curated layer trims anyway",
		})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	}
	known := false
	for _, k := range StorageKinds {
		if s.Kind == k {
			known = true
		}
	}
	if !known {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; expected one of %s", s.Kind, strings.Join(StorageKinds, ", ")),
		})
	}

	switch s.Kind {
	case "memory", "duckdb":
	default:
		if strings.TrimSpace(s.DB.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.db.dsn",
				Message:  fmt.Sprintf("%s storage requires a dsn", s.Kind),
			})
		}
	}

	if s.DB.BronzeSchema != "" && s.DB.BronzeSchema == s.DB.SilverSchema {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.silver_schema",
			Message:  "bronze_schema and silver_schema must differ; the layers share table names",
		})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	for _, f := range []struct {
		name string
		v    int
	}{
		{"reader_workers", r.ReaderWorkers},
		{"batch_size", r.BatchSize},
		{"channel_buffer", r.ChannelBuffer},
	} {
		if f.v < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "runtime." + f.name,
				Message:  fmt.Sprintf("%s must be >= 0 (0 means default)", f.name),
			})
		}
	}
	if r.ReaderWorkers > len(schema.Entities) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.reader_workers",
			Message:  fmt.Sprintf("more than %d readers cannot be used; there are only %d tables", len(schema.Entities), len(schema.Entities)),
		})
	}
	return issues
}

func validateAudit(a Audit) []Issue {
	if a.MinBirthdate == "" {
		return nil
	}
	if _, err := time.Parse(schema.DateLayout, a.MinBirthdate); err != nil {
		return []Issue{{
			Severity: SeverityError,
			Path:     "audit.min_birthdate",
			Message:  fmt.Sprintf("min_birthdate must be YYYY-MM-DD: %v", err),
		}}
	}
	return nil
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none", "pushgateway", "datadog":
		return nil
	}
	return []Issue{{
		Severity: SeverityWarning,
		Path:     "metrics.backend",
		Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
	}}
}
