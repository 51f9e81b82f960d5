// Package config resolves the settings of the declare command from defaults,
// a YAML file, the environment and command line overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the resolved configuration.
type Config struct {
	SystemCore string           `json:"system_core"`
	State      StateConfig      `json:"state"`
	Log        LogConfig        `json:"log"`
	Completion CompletionConfig `json:"completion"`
}

// StateConfig selects where stores are persisted.
type StateConfig struct {
	Backend   string `json:"backend"`
	Dir       string `json:"dir"`
	DSN       string `json:"dsn"`
	RedisAddr string `json:"redis_addr"`
}

// LogConfig controls the process logger and the run log directory.
type LogConfig struct {
	Dir   string `json:"dir"`
	Mode  string `json:"mode"`
	Level string `json:"level"`
}

// CompletionConfig selects and tunes the completion backend.
type CompletionConfig struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	APIKey         string  `json:"api_key"`
	BaseURL        string  `json:"base_url"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int64   `json:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// Timeout returns the per-call completion deadline.
func (c CompletionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch c.State.Backend {
	case BackendFile:
		if strings.TrimSpace(c.State.Dir) == "" {
			fail("state.dir is required for the file backend")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.State.DSN) == "" {
			fail("state.dsn is required for the sqlite backend")
		}
	case BackendRedis:
		if strings.TrimSpace(c.State.RedisAddr) == "" {
			fail("state.redis_addr is required for the redis backend")
		}
	case BackendMemory:
	default:
		fail("state.backend %q is not one of file, sqlite, redis, memory", c.State.Backend)
	}

	switch c.Completion.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		fail("completion.provider %q is not one of openai, gemini", c.Completion.Provider)
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		fail("completion.temperature %v is outside [0, 2]", c.Completion.Temperature)
	}
	if c.Completion.MaxTokens <= 0 {
		fail("completion.max_tokens must be positive")
	}
	if c.Completion.TimeoutSeconds <= 0 {
		fail("completion.timeout_seconds must be positive")
	}
	return errors.Join(errs...)
}
