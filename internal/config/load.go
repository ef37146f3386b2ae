package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: source.dsn is read from
// EXTIMPORT_SOURCE_DSN.
const EnvPrefix = "EXTIMPORT"

// Defaults applied by Load and Decode for keys left unset.
const (
	DefaultFieldDelimiter  = ","
	DefaultRecordDelimiter = "\n"
	DefaultNullValue       = "null"
	DefaultErrorThreshold  = 1
	DefaultEncoding        = "UTF-8"
	DefaultPipePrefix      = "nzexttable"
	DefaultPartitions      = 1
	DefaultSinkKind        = "file"
	DefaultMetricsBackend  = "none"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("format.field_delimiter", DefaultFieldDelimiter)
	v.SetDefault("format.record_delimiter", DefaultRecordDelimiter)
	v.SetDefault("format.null_value", DefaultNullValue)
	v.SetDefault("format.error_threshold", DefaultErrorThreshold)
	v.SetDefault("format.encoding", DefaultEncoding)
	v.SetDefault("partitions", DefaultPartitions)
	v.SetDefault("runtime.work_dir", os.TempDir())
	v.SetDefault("runtime.pipe_prefix", DefaultPipePrefix)
	v.SetDefault("sink.kind", DefaultSinkKind)
	v.SetDefault("metrics.backend", DefaultMetricsBackend)
}

// Load reads a job file (format chosen by extension: .json, .yaml, .yml,
// .toml), overlays EXTIMPORT_* environment variables and applies defaults.
func Load(path string) (Job, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Job{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return unmarshal(v)
}

// Decode reads a JSON job from r. Unknown fields are rejected so typos
// surface early. Environment overrides and defaults apply as in Load.
func Decode(r io.Reader) (Job, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var raw Job
	if err := dec.Decode(&raw); err != nil {
		return Job{}, fmt.Errorf("config: decode: %w", err)
	}

	// Round-trip through viper so defaults and env overrides apply the same
	// way they do for files.
	b, err := json.Marshal(raw)
	if err != nil {
		return Job{}, fmt.Errorf("config: re-encode: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(b, &tree); err != nil {
		return Job{}, fmt.Errorf("config: re-decode: %w", err)
	}
	dropZero(tree)

	v := newViper()
	if err := v.MergeConfigMap(tree); err != nil {
		return Job{}, fmt.Errorf("config: merge: %w", err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	bindEnvs(v, Job{})
	return v
}

func unmarshal(v *viper.Viper) (Job, error) {
	var j Job
	if err := v.Unmarshal(&j); err != nil {
		return Job{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if j.Source.Options == nil {
		j.Source.Options = Options{}
	}
	if j.Sink.Options == nil {
		j.Sink.Options = Options{}
	}
	return j, nil
}

// bindEnvs registers every scalar key of cfg so viper consults the
// matching environment variable during Unmarshal even when the file does
// not mention the key. Option maps are free-form and not bound.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	typ := reflect.TypeOf(cfg)
	val := reflect.ValueOf(cfg)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
		val = val.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string{}, parts...), tag)
		switch f.Type.Kind() {
		case reflect.Struct:
			bindEnvs(v, val.Field(i).Interface(), key...)
		case reflect.Map:
		default:
			_ = v.BindEnv(strings.Join(key, "."))
		}
	}
}

// keepZero lists numeric keys where an explicit zero is a real setting.
var keepZero = map[string]bool{"error_threshold": true}

// dropZero removes empty strings, zero numbers and empty collections so the
// viper defaults underneath are not masked by JSON zero values.
func dropZero(m map[string]any) {
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			if k == "options" {
				continue
			}
			dropZero(t)
			if len(t) == 0 {
				delete(m, k)
			}
		case string:
			if t == "" {
				delete(m, k)
			}
		case float64:
			if t == 0 && !keepZero[k] {
				delete(m, k)
			}
		case []any:
			if len(t) == 0 {
				delete(m, k)
			}
		case nil:
			delete(m, k)
		}
	}
}
