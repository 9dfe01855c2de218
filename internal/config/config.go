// Package config resolves the server configuration once at startup.
//
// Values come from, highest priority first: command-line flags, environment
// variables, an optional YAML file and built-in defaults. The resulting
// Config is passed down explicitly; no package reads the environment after
// startup.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sakif/recipe-box/internal/guard"
)

// Store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds every setting the server needs.
type Config struct {
	Port           int
	DataPath       string // directory holding the recipe store
	UploadDir      string // directory holding uploaded images
	StoreBackend   string // BackendJSON or BackendSQLite
	LockMode       guard.Mode
	TemplateDir    string // empty means the embedded templates
	StaticDir      string // empty means the embedded assets
	LogLevel       slog.Level
	CORSOrigins    []string
	MaxUploadBytes int64
}

// setting ties a config key to its environment variable, flag and default.
type setting struct {
	key   string
	env   string
	flag  string
	usage string
	def   any
}

var settings = []setting{
	{"port", "PORT", "port", "HTTP port to listen on", 5000},
	{"data_path", "DATA_PATH", "data-path", "directory holding the recipe store", "data"},
	{"upload_dir", "UPLOAD_DIR", "upload-dir", "directory for uploaded images", "uploads"},
	{"store_backend", "STORE_BACKEND", "store", "recipe store backend: json or sqlite", BackendJSON},
	{"lock_mode", "LOCK_MODE", "lock-mode", "write guard: mutex, file or none", string(guard.ModeMutex)},
	{"template_dir", "TEMPLATE_DIR", "template-dir", "override the embedded HTML templates", ""},
	{"static_dir", "STATIC_DIR", "static-dir", "override the embedded static assets", ""},
	{"log_level", "LOG_LEVEL", "log-level", "debug, info, warn or error", "info"},
	{"cors_origins", "CORS_ORIGINS", "cors-origins", "comma-separated allowed CORS origins", "*"},
	{"max_upload_bytes", "MAX_UPLOAD_BYTES", "max-upload-bytes", "largest accepted upload request", int64(10 << 20)},
}

// RegisterFlags adds one flag per setting to fs. Flags only override the
// other sources when set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, s := range settings {
		switch d := s.def.(type) {
		case int:
			fs.Int(s.flag, d, s.usage)
		case int64:
			fs.Int64(s.flag, d, s.usage)
		case string:
			fs.String(s.flag, d, s.usage)
		}
	}
}

// Load builds the Config. flags may be nil; configFile may be empty.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()

	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", s.env, err)
		}
		if flags != nil {
			if f := flags.Lookup(s.flag); f != nil {
				if err := v.BindPFlag(s.key, f); err != nil {
					return nil, fmt.Errorf("config: binding --%s: %w", s.flag, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Port:           v.GetInt("port"),
		DataPath:       v.GetString("data_path"),
		UploadDir:      v.GetString("upload_dir"),
		StoreBackend:   strings.ToLower(strings.TrimSpace(v.GetString("store_backend"))),
		LockMode:       guard.Mode(strings.ToLower(strings.TrimSpace(v.GetString("lock_mode")))),
		TemplateDir:    v.GetString("template_dir"),
		StaticDir:      v.GetString("static_dir"),
		CORSOrigins:    splitList(v.GetStringSlice("cors_origins")),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("config: log_level: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.DataPath == "" {
		return fmt.Errorf("config: data_path must not be empty")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("config: upload_dir must not be empty")
	}
	switch c.StoreBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown store_backend %q", c.StoreBackend)
	}
	switch c.LockMode {
	case guard.ModeMutex, guard.ModeFile, guard.ModeNone:
	default:
		return fmt.Errorf("config: unknown lock_mode %q", c.LockMode)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: max_upload_bytes must be positive")
	}
	return nil
}

// splitList flattens comma-separated entries, so both a YAML list and
// CORS_ORIGINS="a,b" work.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
