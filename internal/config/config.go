// Package config defines the JSON/YAML configuration model for an import
// job and the helpers that load and lint it.
//
// A job names the source table, how the engine should render rows as text,
// how many partitions to split the unload into and where the records go:
//
//	{
//	  "job": "cities-nightly",
//	  "source": {
//	    "kind": "netezza",
//	    "dsn": "host=nz1 port=5480 dbname=geo user=etl password=...",
//	    "table": "cities",
//	    "columns": ["id", "country", "city"],
//	    "where": "country <> 'Atlantis'"
//	  },
//	  "format": { "field_delimiter": ",", "null_value": "null", "error_threshold": 1 },
//	  "partitions": 4,
//	  "sink": { "kind": "file", "options": { "dir": "/data/cities" } }
//	}
package config

import (
	"encoding/json"
	"strconv"
)

// Job is the top-level configuration object.
type Job struct {
	// Job names the run in metrics and the ledger.
	Job string `json:"job" mapstructure:"job"`

	Source Source `json:"source" mapstructure:"source"`
	Format Format `json:"format" mapstructure:"format"`

	// Partitions is the total number of slices the table is split into.
	Partitions int `json:"partitions" mapstructure:"partitions"`

	Runtime Runtime `json:"runtime" mapstructure:"runtime"`
	Sink    Sink    `json:"sink" mapstructure:"sink"`
	Ledger  Ledger  `json:"ledger" mapstructure:"ledger"`
	Metrics Metrics `json:"metrics" mapstructure:"metrics"`
}

// Source identifies the engine and the table to unload.
type Source struct {
	// Kind selects the connector: "netezza", "postgres" or "duckdb".
	Kind string `json:"kind" mapstructure:"kind"`
	DSN  string `json:"dsn" mapstructure:"dsn"`

	// Table may be schema-qualified; it is used verbatim.
	Table string `json:"table" mapstructure:"table"`
	// Columns is the projection in output order. Empty selects all columns.
	Columns []string `json:"columns" mapstructure:"columns"`
	// Where is an optional row filter ANDed with the partition predicate.
	Where string `json:"where" mapstructure:"where"`
	// PartitionKey is hashed to assign rows to partitions on engines
	// without data slices.
	PartitionKey string `json:"partition_key" mapstructure:"partition_key"`

	// Options carries dialect settings such as "remote_source".
	Options Options `json:"options" mapstructure:"options"`
}

// Format is the textual row layout requested from the engine. Character
// settings are strings so that escapes like "\t" or "\001" can be written.
type Format struct {
	FieldDelimiter  string `json:"field_delimiter" mapstructure:"field_delimiter"`
	RecordDelimiter string `json:"record_delimiter" mapstructure:"record_delimiter"`
	EnclosedBy      string `json:"enclosed_by" mapstructure:"enclosed_by"`
	EscapedBy       string `json:"escaped_by" mapstructure:"escaped_by"`
	NullValue       string `json:"null_value" mapstructure:"null_value"`
	ErrorThreshold  *int   `json:"error_threshold" mapstructure:"error_threshold"`
	LogDir          string `json:"log_dir" mapstructure:"log_dir"`
	Encoding        string `json:"encoding" mapstructure:"encoding"`
}

// Runtime controls local resources.
type Runtime struct {
	// WorkDir is where per-run directories holding the pipes are created.
	WorkDir    string `json:"work_dir" mapstructure:"work_dir"`
	PipePrefix string `json:"pipe_prefix" mapstructure:"pipe_prefix"`
	// Parallelism caps concurrently running partitions; zero runs all.
	Parallelism int `json:"parallelism" mapstructure:"parallelism"`
}

// Sink selects where records are forwarded.
type Sink struct {
	// Kind is one of "file", "table", "amqp", "kafka", "discard".
	Kind    string  `json:"kind" mapstructure:"kind"`
	Options Options `json:"options" mapstructure:"options"`
}

// Ledger configures the optional run history store.
type Ledger struct {
	// DSN is a SQLite DSN; empty disables the ledger.
	DSN string `json:"dsn" mapstructure:"dsn"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "none", "pushgateway" or "datadog".
	Backend        string `json:"backend" mapstructure:"backend"`
	PushgatewayURL string `json:"pushgateway_url" mapstructure:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" mapstructure:"datadog_addr"`
}

// Options is a free-form map with typed getters. Getters perform minimal
// coercion and return def when a key is absent or of an unexpected type.
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

// Bool returns the bool value for key or def. The strings "true"/"false"
// are accepted so values can come from environment variables.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int returns the integer value for key or def. JSON decodes numbers as
// float64 and YAML as int; numeric strings are accepted too.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// StringSlice returns the string elements of an array value, or nil.
func (o Options) StringSlice(key string) []string {
	switch vv := o[key].(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	}
	return nil
}

// StringMap returns the string-valued entries of an object value.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if m, ok := o[key].(map[string]any); ok {
		for k, vv := range m {
			if s, ok := vv.(string); ok {
				res[k] = s
			}
		}
	}
	return res
}

// Strings returns the string-valued top-level entries.
func (o Options) Strings() map[string]string {
	res := make(map[string]string, len(o))
	for k, v := range o {
		if s, ok := v.(string); ok {
			res[k] = s
		}
	}
	return res
}

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
