package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-declare/internal/hydrate"
	"github.com/goliatone/go-declare/layering"
	"github.com/goliatone/go-declare/request"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DECLARE_"

// Layer names reported by Provenance.
const (
	LayerOverrides = "flags"
	LayerEnv       = "env"
	LayerFile      = "file"
	LayerDefaults  = "defaults"
)

// fileLayer is one partially set source. Nil means "not set here".
type fileLayer struct {
	SystemCore *string         `yaml:"system_core" env:"SYSTEM_CORE" json:"system_core,omitempty"`
	State      stateLayer      `yaml:"state" envPrefix:"STATE_" json:"state"`
	Log        logLayer        `yaml:"log" envPrefix:"LOG_" json:"log"`
	Completion completionLayer `yaml:"completion" envPrefix:"COMPLETION_" json:"completion"`
}

type stateLayer struct {
	Backend   *string `yaml:"backend" env:"BACKEND" json:"backend,omitempty"`
	Dir       *string `yaml:"dir" env:"DIR" json:"dir,omitempty"`
	DSN       *string `yaml:"dsn" env:"DSN" json:"dsn,omitempty"`
	RedisAddr *string `yaml:"redis_addr" env:"REDIS_ADDR" json:"redis_addr,omitempty"`
}

type logLayer struct {
	Dir   *string `yaml:"dir" env:"DIR" json:"dir,omitempty"`
	Mode  *string `yaml:"mode" env:"MODE" json:"mode,omitempty"`
	Level *string `yaml:"level" env:"LEVEL" json:"level,omitempty"`
}

type completionLayer struct {
	Provider       *string  `yaml:"provider" env:"PROVIDER" json:"provider,omitempty"`
	Model          *string  `yaml:"model" env:"MODEL" json:"model,omitempty"`
	APIKey         *string  `yaml:"api_key" env:"API_KEY" json:"api_key,omitempty"`
	BaseURL        *string  `yaml:"base_url" env:"BASE_URL" json:"base_url,omitempty"`
	Temperature    *float64 `yaml:"temperature" env:"TEMPERATURE" json:"temperature,omitempty"`
	MaxTokens      *int64   `yaml:"max_tokens" env:"MAX_TOKENS" json:"max_tokens,omitempty"`
	TimeoutSeconds *int     `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS" json:"timeout_seconds,omitempty"`
}

func ptr[T any](v T) *T { return &v }

func defaults() fileLayer {
	return fileLayer{
		SystemCore: ptr(request.DefaultSystemCore),
		State: stateLayer{
			Backend: ptr(BackendFile),
			Dir:     ptr(".declare/state"),
		},
		Log: logLayer{
			Dir:   ptr(".declare/logs"),
			Mode:  ptr("development"),
			Level: ptr("info"),
		},
		Completion: completionLayer{
			Provider:       ptr(ProviderOpenAI),
			Temperature:    ptr(0.0),
			MaxTokens:      ptr(int64(1300)),
			TimeoutSeconds: ptr(120),
		},
	}
}

// Overrides carries command line flags. Empty strings are unset.
type Overrides struct {
	StateBackend string
	StateDir     string
	LogDir       string
	Provider     string
	Model        string
}

func (o Overrides) layer() fileLayer {
	set := func(v string) *string {
		if v == "" {
			return nil
		}
		return &v
	}
	return fileLayer{
		State:      stateLayer{Backend: set(o.StateBackend), Dir: set(o.StateDir)},
		Log:        logLayer{Dir: set(o.LogDir)},
		Completion: completionLayer{Provider: set(o.Provider), Model: set(o.Model)},
	}
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// Path is a YAML file. Empty skips the file layer; a missing file is an
	// error only when Required is set.
	Path     string
	Required bool
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
	Overrides   Overrides
}

// Result is a loaded configuration and where each setting came from.
type Result struct {
	Config     Config
	Provenance layering.Provenance
}

// Load merges flags, environment, file and defaults, strongest first,
// then validates the result.
func Load(opts LoadOptions) (Result, error) {
	environment := opts.Environment
	if environment == nil {
		environment = env.ToMap(os.Environ())
	}

	file, err := readFile(opts.Path, opts.Required)
	if err != nil {
		return Result{}, err
	}
	var fromEnv fileLayer
	if err := env.ParseWithOptions(&fromEnv, env.Options{Prefix: EnvPrefix, Environment: environment}); err != nil {
		return Result{}, fmt.Errorf("config: parse env: %w", err)
	}

	merged, provenance := layering.Merge(
		layering.Layer[fileLayer]{Name: LayerOverrides, Value: opts.Overrides.layer()},
		layering.Layer[fileLayer]{Name: LayerEnv, Value: fromEnv},
		layering.Layer[fileLayer]{Name: LayerFile, Value: file},
		layering.Layer[fileLayer]{Name: LayerDefaults, Value: defaults()},
	)

	cfg, err := hydrate.Into[Config]("config", merged, hydrate.Strict())
	if err != nil {
		return Result{}, err
	}
	applyProviderKey(&cfg, provenance, environment)

	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	return Result{Config: cfg, Provenance: provenance}, nil
}

// applyProviderKey falls back to the provider's conventional variable when
// no api key was configured.
func applyProviderKey(cfg *Config, provenance layering.Provenance, environment map[string]string) {
	if cfg.Completion.APIKey != "" {
		return
	}
	name := "OPENAI_API_KEY"
	if cfg.Completion.Provider == ProviderGemini {
		name = "GEMINI_API_KEY"
	}
	if key := environment[name]; key != "" {
		cfg.Completion.APIKey = key
		provenance["completion.api_key"] = LayerEnv + ":" + name
	}
}

func readFile(path string, required bool) (fileLayer, error) {
	var layer fileLayer
	if path == "" {
		return layer, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return layer, nil
		}
		return layer, fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&layer); err != nil && !errors.Is(err, io.EOF) {
		return layer, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return layer, nil
}
