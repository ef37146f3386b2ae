// This file adds a lightweight linter for Job values. It performs static
// checks over a decoded Job and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.

package config

import (
	"fmt"
	"net/url"
	"strings"

	"extimport/internal/charset"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users
	// but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Job.
//
// Path is a dotted path into the config (e.g. "source.kind",
// "format.field_delimiter"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	sourceKinds  = []string{"netezza", "postgres", "duckdb"}
	sinkKinds    = []string{"file", "table", "amqp", "kafka", "discard"}
	metricsKinds = []string{"", "none", "pushgateway", "datadog"}
)

// ValidateJob performs static validation of j. It does not mutate j and
// does not touch the network or the filesystem.
func ValidateJob(j Job) []Issue {
	var issues []Issue
	if strings.TrimSpace(j.Job) == "" {
		issues = append(issues, errorf("job", "job must not be empty; it labels metrics and ledger entries"))
	}
	if j.Partitions < 1 {
		issues = append(issues, errorf("partitions", "partitions must be >= 1, got %d", j.Partitions))
	}
	issues = append(issues, validateSource(j.Source)...)
	issues = append(issues, validateFormat(j.Format)...)
	issues = append(issues, validateRuntime(j.Runtime, j.Partitions)...)
	issues = append(issues, validateSink(j.Sink)...)
	issues = append(issues, validateMetrics(j.Metrics)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	kind := strings.ToLower(strings.TrimSpace(s.Kind))
	switch {
	case kind == "":
		issues = append(issues, errorf("source.kind", "source.kind must not be empty"))
	case !contains(sourceKinds, kind):
		issues = append(issues, errorf("source.kind", "unsupported source.kind %q (want one of %s)", s.Kind, strings.Join(sourceKinds, ", ")))
	}
	if strings.TrimSpace(s.DSN) == "" && kind != "duckdb" {
		issues = append(issues, errorf("source.dsn", "source.dsn must not be empty"))
	}
	if strings.TrimSpace(s.Table) == "" {
		issues = append(issues, errorf("source.table", "source.table must not be empty"))
	}
	seen := map[string]bool{}
	for i, c := range s.Columns {
		p := fmt.Sprintf("source.columns[%d]", i)
		c = strings.TrimSpace(c)
		if c == "" {
			issues = append(issues, errorf(p, "column name must not be empty"))
			continue
		}
		if seen[strings.ToLower(c)] {
			issues = append(issues, warnf(p, "duplicate column %q", c))
		}
		seen[strings.ToLower(c)] = true
	}
	if (kind == "postgres" || kind == "duckdb") && strings.TrimSpace(s.PartitionKey) == "" {
		issues = append(issues, errorf("source.partition_key", "source.partition_key is required for %s", kind))
	}
	if kind == "netezza" && s.PartitionKey != "" {
		issues = append(issues, warnf("source.partition_key", "netezza partitions by data slice; partition_key is ignored"))
	}
	return issues
}

func validateFormat(f Format) []Issue {
	var issues []Issue
	chars := map[string]rune{}
	for _, c := range []struct{ path, val string }{
		{"format.field_delimiter", f.FieldDelimiter},
		{"format.record_delimiter", f.RecordDelimiter},
		{"format.enclosed_by", f.EnclosedBy},
		{"format.escaped_by", f.EscapedBy},
	} {
		r, err := ParseChar(c.val)
		if err != nil {
			issues = append(issues, errorf(c.path, "%v", err))
			continue
		}
		chars[c.path] = r
	}

	fd := chars["format.field_delimiter"]
	rd := chars["format.record_delimiter"]
	if fd != 0 && fd == rd {
		issues = append(issues, errorf("format.field_delimiter", "field and record delimiter must differ"))
	}
	switch eb := chars["format.enclosed_by"]; eb {
	case 0, '"', '\'':
	default:
		issues = append(issues, warnf("format.enclosed_by", "enclosed_by %q is not supported by every engine and may be ignored", eb))
	}
	if eb := chars["format.escaped_by"]; eb != 0 && eb != '\\' {
		issues = append(issues, warnf("format.escaped_by", "netezza only escapes with backslash"))
	}
	if f.ErrorThreshold != nil && *f.ErrorThreshold < 0 {
		issues = append(issues, errorf("format.error_threshold", "error_threshold must be >= 0, got %d", *f.ErrorThreshold))
	}
	if f.Encoding != "" {
		if _, err := charset.Lookup(f.Encoding); err != nil {
			issues = append(issues, errorf("format.encoding", "%v", err))
		}
	}
	return issues
}

func validateRuntime(r Runtime, partitions int) []Issue {
	var issues []Issue
	if r.Parallelism < 0 {
		issues = append(issues, errorf("runtime.parallelism", "parallelism must be >= 0, got %d", r.Parallelism))
	}
	if partitions > 0 && r.Parallelism > partitions {
		issues = append(issues, warnf("runtime.parallelism", "parallelism %d exceeds partitions %d", r.Parallelism, partitions))
	}
	if strings.ContainsRune(r.PipePrefix, '/') {
		issues = append(issues, errorf("runtime.pipe_prefix", "pipe_prefix must not contain '/'"))
	}
	return issues
}

func validateSink(s Sink) []Issue {
	var issues []Issue
	kind := strings.ToLower(strings.TrimSpace(s.Kind))
	if kind == "" {
		return append(issues, errorf("sink.kind", "sink.kind must not be empty"))
	}
	if !contains(sinkKinds, kind) {
		return append(issues, errorf("sink.kind", "unsupported sink.kind %q (want one of %s)", s.Kind, strings.Join(sinkKinds, ", ")))
	}
	switch kind {
	case "file":
		if s.Options.String("dir", "") == "" {
			issues = append(issues, errorf("sink.options.dir", "file sink requires options.dir"))
		}
	case "table":
		if s.Options.String("dsn", "") == "" {
			issues = append(issues, errorf("sink.options.dsn", "table sink requires options.dsn"))
		}
		if s.Options.String("table", "") == "" {
			issues = append(issues, errorf("sink.options.table", "table sink requires options.table"))
		}
		switch k := s.Options.String("kind", "postgres"); k {
		case "postgres", "sqlite", "mssql", "mysql":
		default:
			issues = append(issues, errorf("sink.options.kind", "unsupported table sink kind %q", k))
		}
		if s.Options.Int("batch_size", 1) < 1 {
			issues = append(issues, errorf("sink.options.batch_size", "batch_size must be >= 1"))
		}
	case "amqp":
		u := s.Options.String("url", "")
		if u == "" {
			issues = append(issues, errorf("sink.options.url", "amqp sink requires options.url"))
		} else if pu, err := url.Parse(u); err != nil || (pu.Scheme != "amqp" && pu.Scheme != "amqps") {
			issues = append(issues, errorf("sink.options.url", "amqp url must use amqp:// or amqps://"))
		}
		if s.Options.String("exchange", "") == "" && s.Options.String("routing_key", "") == "" {
			issues = append(issues, errorf("sink.options.routing_key", "amqp sink needs an exchange or a routing_key"))
		}
	case "kafka":
		if len(s.Options.StringSlice("brokers")) == 0 {
			issues = append(issues, errorf("sink.options.brokers", "kafka sink requires at least one broker"))
		}
		if s.Options.String("topic", "") == "" {
			issues = append(issues, errorf("sink.options.topic", "kafka sink requires options.topic"))
		}
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	b := strings.ToLower(strings.TrimSpace(m.Backend))
	if !contains(metricsKinds, b) {
		return append(issues, errorf("metrics.backend", "unsupported metrics.backend %q", m.Backend))
	}
	if b == "pushgateway" && m.PushgatewayURL == "" {
		issues = append(issues, errorf("metrics.pushgateway_url", "pushgateway backend requires pushgateway_url"))
	}
	if b == "datadog" && m.DatadogAddr == "" {
		issues = append(issues, warnf("metrics.datadog_addr", "datadog_addr empty; the client default is used"))
	}
	return issues
}

func errorf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warnf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
