package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	declare "github.com/goliatone/go-declare"
	"github.com/goliatone/go-declare/completion"
	"github.com/goliatone/go-declare/internal/config"
	"github.com/goliatone/go-declare/pkg/state"
)

func newCompletionService(ctx context.Context, cfg config.CompletionConfig) (completion.Service, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return completion.NewGemini(ctx, completion.GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case config.ProviderOpenAI:
		return completion.NewOpenAI(completion.OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// openStateStore returns the configured backend and a function releasing it.
func openStateStore(cfg config.StateConfig) (state.Store[declare.ContextState], func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.BackendFile:
		return state.NewFileStore[declare.ContextState](cfg.Dir), noop, nil
	case config.BackendSQLite:
		store, err := state.OpenSQLite[declare.ContextState](cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return state.NewRedisStore[declare.ContextState](client, state.DefaultRedisPrefix), client.Close, nil
	case config.BackendMemory:
		return state.NewMemoryStore[declare.ContextState](), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}
