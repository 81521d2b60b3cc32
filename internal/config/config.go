// Package config defines the pipeline configuration model for the warehouse
// loader. Pipelines are decoded from JSON (or YAML, see Load) and passed
// through the program without additional glue code.
//
// Example (trimmed):
//
//	{
//	  "job": "dwh_nightly",
//	  "staging": {
//	    "sources": [ { "table": "crm_cust_info", "path": "datasets/source_crm/cust_info.csv" } ],
//	    "parser":  { "kind": "csv", "options": { "has_header": true } }
//	  },
//	  "storage": { "kind": "postgres", "db": { "dsn": "postgresql://..." } },
//	  "audit":   { "enabled": true }
//	}
package config

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels the run in logs, metrics, and dead-letter output.
	Job string `json:"job" yaml:"job"`

	Staging    Staging       `json:"staging" yaml:"staging"`
	Storage    Storage       `json:"storage" yaml:"storage"`
	Runtime    RuntimeConfig `json:"runtime" yaml:"runtime"`
	Audit      Audit         `json:"audit" yaml:"audit"`
	DeadLetter DeadLetter    `json:"dead_letter" yaml:"dead_letter"`
	Metrics    Metrics       `json:"metrics" yaml:"metrics"`
}

// Staging lists the CSV extracts loaded into the bronze layer.
type Staging struct {
	Sources []Source `json:"sources" yaml:"sources"`
	Parser  Parser   `json:"parser" yaml:"parser"`
}

// Source binds one bronze table to a local extract file.
type Source struct {
	Table string `json:"table" yaml:"table"`
	Path  string `json:"path" yaml:"path"`
}

// Parser selects how extracts are parsed.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the parser. For CSV:
	//   has_header (bool), comma (string), trim_space (bool, default false),
	//   lazy_quotes (bool), fields_per_record (int), header_map (object)
	Options Options `json:"options" yaml:"options"`
}

// Storage selects the warehouse backend.
type Storage struct {
	// Kind is one of postgres, mssql, mysql, sqlite, duckdb, memory.
	Kind string   `json:"kind" yaml:"kind"`
	DB   DBConfig `json:"db" yaml:"db"`
}

// DBConfig configures the warehouse connection and layer schemas.
type DBConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`

	// BronzeSchema and SilverSchema name the database schemas of the two
	// layers. Backends without schemas use them as table prefixes.
	BronzeSchema string `json:"bronze_schema" yaml:"bronze_schema"`
	SilverSchema string `json:"silver_schema" yaml:"silver_schema"`

	// AutoCreateTable creates missing layer tables before loading.
	AutoCreateTable bool `json:"auto_create_table" yaml:"auto_create_table"`
}

// RuntimeConfig controls concurrency and batching.
type RuntimeConfig struct {
	ReaderWorkers int `json:"reader_workers" yaml:"reader_workers"`
	BatchSize     int `json:"batch_size" yaml:"batch_size"`
	ChannelBuffer int `json:"channel_buffer" yaml:"channel_buffer"`
}

// Audit configures the post-load quality checks.
type Audit struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MinBirthdate is the oldest plausible birthdate, YYYY-MM-DD.
	MinBirthdate string `json:"min_birthdate" yaml:"min_birthdate"`

	// MaxFindings caps the findings kept per entity and rule; counts are
	// always exact.
	MaxFindings int `json:"max_findings" yaml:"max_findings"`
}

// DeadLetter configures where rejected rows are written.
type DeadLetter struct {
	// Path of the CSV file. Empty disables the dead-letter file.
	Path string `json:"path" yaml:"path"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is pushgateway, datadog, or none.
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Options fetches typed values from a free-form map. It performs minimal
// type coercion and returns the provided default when a key is absent or of
// an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64
// and YAML integers as int; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns the string-valued entries of an object under key. It is
// never nil.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// UnmarshalJSON decodes a missing or null options object to an empty map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// UnmarshalYAML is UnmarshalJSON for YAML pipelines.
func (o *Options) UnmarshalYAML(n *yaml.Node) error {
	var tmp map[string]any
	if err := n.Decode(&tmp); err != nil {
		return err
	}
	if tmp == nil {
		tmp = map[string]any{}
	}
	*o = Options(tmp)
	return nil
}
