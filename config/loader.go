package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "RECALL_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
)

// DefaultSearchPaths are tried in order when no config file is given.
var DefaultSearchPaths = []string{
	"recall.yaml",
	"recall.yml",
	"recall.json",
	"config/recall.yaml",
	"/etc/recall/recall.yaml",
}

var durationType = reflect.TypeOf(time.Duration(0))

// Loader layers defaults, a config file, RECALL_ environment variables and
// command line overrides, in increasing priority.
type Loader struct {
	k           *koanf.Koanf
	searchPaths []string
	source      string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		k:           koanf.New(Delimiter),
		searchPaths: DefaultSearchPaths,
	}
}

// Reset discards every loaded value so the loader can be reused.
func (l *Loader) Reset() {
	l.k = koanf.New(Delimiter)
	l.source = ""
}

// Source is the config file the last Load read, explicit or discovered.
// It is empty when only defaults, env and overrides were used.
func (l *Loader) Source() string {
	return l.source
}

// Load builds and validates a Config. An explicit configPath must exist;
// otherwise the first existing search path is used, and a discovered file
// that fails to parse is an error rather than silently skipped.
func (l *Loader) Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	if err := l.k.Load(confmap.Provider(structToMap(DefaultConfig(), ""), Delimiter), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := configPath
	if path == "" {
		path = l.discover()
	}
	if path != "" {
		if err := l.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		l.source = path
	}

	if err := l.k.Load(env.Provider(EnvPrefix, Delimiter, envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := l.k.Load(confmap.Provider(overrides, Delimiter), nil); err != nil {
			return nil, fmt.Errorf("failed to apply overrides: %w", err)
		}
	}

	// An override that sets a whole section as a map replaces it in koanf,
	// so backfill any default key that went missing.
	if err := l.fillDefaults(); err != nil {
		return nil, fmt.Errorf("failed to fill defaults: %w", err)
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := ValidateWithDetails(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) discover() string {
	for _, path := range l.searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (l *Loader) loadFile(path string) error {
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config file not found: %s", path)
	}
	return l.k.Load(file.Provider(path), parser)
}

// envKey maps an environment variable to a config key. A double underscore
// separates sections so single underscores survive inside key names:
// RECALL_LOG__LEVEL -> log.level
// RECALL_EMBEDDING__API_KEY -> embedding.api_key
// RECALL_MEMORY__SCORING__HALF_LIFE_DAYS -> memory.scoring.half_life_days
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", Delimiter)
}

func (l *Loader) fillDefaults() error {
	for key, value := range structToMap(DefaultConfig(), "") {
		if l.k.Get(key) != nil {
			continue
		}
		if err := l.k.Set(key, value); err != nil {
			return fmt.Errorf("failed to set default for %s: %w", key, err)
		}
	}
	return nil
}

// structToMap flattens a config struct into dotted mapstructure keys.
// Durations stay time.Duration; empty maps and nil pointers are skipped.
func structToMap(v interface{}, prefix string) map[string]interface{} {
	result := make(map[string]interface{})
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return result
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + Delimiter + key
		}

		fv := val.Field(i)
		switch {
		case fv.Type() == durationType:
			result[key] = fv.Interface()
		case fv.Kind() == reflect.Ptr:
			if !fv.IsNil() {
				for k, v := range structToMap(fv.Elem().Interface(), key) {
					result[k] = v
				}
			}
		case fv.Kind() == reflect.Struct:
			for k, v := range structToMap(fv.Interface(), key) {
				result[k] = v
			}
		case fv.Kind() == reflect.Map:
			if fv.Len() > 0 {
				result[key] = fv.Interface()
			}
		case fv.Kind() == reflect.Slice:
			items := make([]interface{}, fv.Len())
			for j := range items {
				items[j] = fv.Index(j).Interface()
			}
			result[key] = items
		default:
			result[key] = fv.Interface()
		}
	}
	return result
}

// Load is a convenience function to load configuration.
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	return NewLoader().Load(configPath, overrides)
}
