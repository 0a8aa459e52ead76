// Package config provides configuration management for framescout.
// Values come from FRAMESCOUT_* environment variables, optionally seeded from a
// .env file, with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvPrefix = "FRAMESCOUT_"

	DefaultPort     = 8787
	DefaultDataDir  = ".framescout"
	DBFilename      = "framescout.db"
	DefaultDotEnv   = ".env"
	EnvDotEnvPath   = EnvPrefix + "ENV_FILE"
	EnvDataDir      = EnvPrefix + "DATA_DIR"
	EnvPort         = EnvPrefix + "PORT"
	EnvDatabaseURL  = EnvPrefix + "DATABASE_URL"
	EnvLogFormat    = EnvPrefix + "LOG_FORMAT"
	EnvEventBuffer  = EnvPrefix + "EVENT_BUFFER"
	EnvHeadless     = EnvPrefix + "HEADLESS"
	EnvOllamaHost   = EnvPrefix + "OLLAMA_HOST"
	EnvModel        = EnvPrefix + "MODEL"
	EnvTranslateURL = EnvPrefix + "TRANSLATE_URL"

	DefaultDoctorTimeout = 30 * time.Second
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	ExportDir() string
	DatabaseURL() string
	Headless() bool
	EventBuffer() int

	OllamaHost() string
	Model() string
	InferenceTimeout() time.Duration

	FFmpegPath() string
	FFprobePath() string

	TranslateEnabled() bool
	TranslateURL() string
	SourceLang() string
	TargetLang() string

	DoctorTimeout() time.Duration
}

type values struct {
	Port        int    `env:"PORT"         envDefault:"8787"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT"   envDefault:"json"`
	DataDir     string `env:"DATA_DIR"`
	DatabaseURL string `env:"DATABASE_URL"`
	Headless    bool   `env:"HEADLESS"     envDefault:"false"`
	EventBuffer int    `env:"EVENT_BUFFER" envDefault:"256"`

	OllamaHost       string        `env:"OLLAMA_HOST"       envDefault:"http://127.0.0.1:11434"`
	Model            string        `env:"MODEL"             envDefault:"moondream"`
	InferenceTimeout time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"60s"`

	FFmpegPath  string `env:"FFMPEG_PATH"  envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`

	TranslateEnabled bool   `env:"TRANSLATE_ENABLED" envDefault:"true"`
	TranslateURL     string `env:"TRANSLATE_URL"     envDefault:"https://translate.googleapis.com"`
	SourceLang       string `env:"SOURCE_LANG"       envDefault:"auto"`
	TargetLang       string `env:"TARGET_LANG"       envDefault:"en"`
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	v values
}

// New loads an optional .env file and parses the environment. Variables
// already set in the process environment win over the file.
func New() (*EnvConfig, error) {
	path := os.Getenv(EnvDotEnvPath)
	if path == "" {
		path = DefaultDotEnv
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return FromEnvironment()
}

// FromEnvironment parses the process environment without reading a .env file.
func FromEnvironment() (*EnvConfig, error) {
	var v values
	if err := env.ParseWithOptions(&v, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if v.Port < 1 || v.Port > 65535 {
		return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
	}
	v.LogFormat = strings.ToLower(strings.TrimSpace(v.LogFormat))
	if v.LogFormat != "json" && v.LogFormat != "text" {
		return nil, fmt.Errorf("invalid %s: %q (want json or text)", EnvLogFormat, v.LogFormat)
	}
	if v.EventBuffer < 1 {
		return nil, fmt.Errorf("invalid %s: must be positive", EnvEventBuffer)
	}
	if v.InferenceTimeout <= 0 {
		return nil, fmt.Errorf("invalid %sINFERENCE_TIMEOUT: must be positive", EnvPrefix)
	}
	if v.DataDir == "" {
		v.DataDir = defaultDataDir()
	}

	return &EnvConfig{v: v}, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int { return c.v.Port }

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string { return c.v.LogLevel }

func (c *EnvConfig) LogFormat() string { return c.v.LogFormat }

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string { return c.v.DataDir }

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.v.DataDir, DBFilename)
}

// ExportDir is where EDL files are written when a request names no directory.
func (c *EnvConfig) ExportDir() string {
	return filepath.Join(c.v.DataDir, "exports")
}

// DatabaseURL selects Postgres history storage when non-empty.
func (c *EnvConfig) DatabaseURL() string { return c.v.DatabaseURL }

func (c *EnvConfig) Headless() bool { return c.v.Headless }

func (c *EnvConfig) EventBuffer() int { return c.v.EventBuffer }

func (c *EnvConfig) OllamaHost() string { return c.v.OllamaHost }

func (c *EnvConfig) Model() string { return c.v.Model }

func (c *EnvConfig) InferenceTimeout() time.Duration { return c.v.InferenceTimeout }

func (c *EnvConfig) FFmpegPath() string { return c.v.FFmpegPath }

func (c *EnvConfig) FFprobePath() string { return c.v.FFprobePath }

func (c *EnvConfig) TranslateEnabled() bool { return c.v.TranslateEnabled }

func (c *EnvConfig) TranslateURL() string { return c.v.TranslateURL }

func (c *EnvConfig) SourceLang() string { return c.v.SourceLang }

func (c *EnvConfig) TargetLang() string { return c.v.TargetLang }

func (c *EnvConfig) DoctorTimeout() time.Duration { return DefaultDoctorTimeout }

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
