package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when a value is unset.
const (
	DefaultReaderWorkers = 3
	DefaultBatchSize     = 10000
	DefaultChannelBuffer = 4096
	DefaultMinBirthdate  = "1924-01-01"
	DefaultMaxFindings   = 1000
)

// Load reads a pipeline file. Files ending in .yaml or .yml are decoded as
// YAML, anything else as JSON. ${VAR} references in the file are expanded
// from the environment, which is first populated from a .env file next to
// the pipeline and one in the working directory (existing variables win).
// DWH_* variables then override file values, and defaults fill the rest.
func Load(path string) (Pipeline, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	p, err := Decode(path, []byte(os.ExpandEnv(string(data))))
	if err != nil {
		return Pipeline{}, err
	}
	ApplyEnv(&p)
	ApplyDefaults(&p)
	return p, nil
}

// Decode parses data as YAML or JSON depending on name's extension. Unknown
// JSON fields are rejected so typos surface early.
func Decode(name string, data []byte) (Pipeline, error) {
	var p Pipeline
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Pipeline{}, fmt.Errorf("decode yaml config: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("decode json config: %w", err)
		}
	}
	if p.Staging.Parser.Options == nil {
		p.Staging.Parser.Options = Options{}
	}
	return p, nil
}

// ApplyEnv overrides pipeline values from DWH_* environment variables.
func ApplyEnv(p *Pipeline) {
	setString(&p.Job, "DWH_JOB")
	setString(&p.Storage.Kind, "DWH_STORAGE_KIND")
	setString(&p.Storage.DB.DSN, "DWH_STORAGE_DSN")
	setString(&p.Storage.DB.BronzeSchema, "DWH_BRONZE_SCHEMA")
	setString(&p.Storage.DB.SilverSchema, "DWH_SILVER_SCHEMA")
	setString(&p.DeadLetter.Path, "DWH_DEAD_LETTER_PATH")
	setString(&p.Metrics.Backend, "DWH_METRICS_BACKEND")
	setString(&p.Metrics.PushgatewayURL, "DWH_PUSHGATEWAY_URL")
	setString(&p.Metrics.DatadogAddr, "DWH_DATADOG_ADDR")

	p.Runtime.ReaderWorkers = getenvInt("DWH_READER_WORKERS", p.Runtime.ReaderWorkers)
	p.Runtime.BatchSize = getenvInt("DWH_BATCH_SIZE", p.Runtime.BatchSize)
	p.Runtime.ChannelBuffer = getenvInt("DWH_CH_BUFFER", p.Runtime.ChannelBuffer)
}

// ApplyDefaults fills unset values.
func ApplyDefaults(p *Pipeline) {
	if p.Job == "" {
		p.Job = "dwh"
	}
	if p.Staging.Parser.Kind == "" {
		p.Staging.Parser.Kind = "csv"
	}
	if p.Staging.Parser.Options == nil {
		p.Staging.Parser.Options = Options{}
	}
	if p.Storage.DB.BronzeSchema == "" {
		p.Storage.DB.BronzeSchema = "bronze"
	}
	if p.Storage.DB.SilverSchema == "" {
		p.Storage.DB.SilverSchema = "silver"
	}
	p.Runtime.ReaderWorkers = pickInt(p.Runtime.ReaderWorkers, DefaultReaderWorkers)
	p.Runtime.BatchSize = pickInt(p.Runtime.BatchSize, DefaultBatchSize)
	p.Runtime.ChannelBuffer = pickInt(p.Runtime.ChannelBuffer, DefaultChannelBuffer)
	if p.Audit.MinBirthdate == "" {
		p.Audit.MinBirthdate = DefaultMinBirthdate
	}
	p.Audit.MaxFindings = pickInt(p.Audit.MaxFindings, DefaultMaxFindings)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value a, otherwise returns b.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
