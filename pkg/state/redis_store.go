package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces snapshot keys.
const DefaultRedisPrefix = "declare:state:"

// RedisStore keeps each snapshot under one key as an envelope holding the
// payload and its Meta. ETag checks run inside WATCH/MULTI.
type RedisStore[T any] struct {
	client redis.UniversalClient
	prefix string
}

type redisEnvelope struct {
	Meta    Meta            `json:"meta"`
	Payload json.RawMessage `json:"payload"`
}

// NewRedisStore wraps client. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore[T any](client redis.UniversalClient, prefix string) *RedisStore[T] {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore[T]{client: client, prefix: prefix}
}

func (s *RedisStore[T]) key(ref Ref) (string, error) {
	id, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return s.prefix + id, nil
}

func (s *RedisStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := s.key(ref)
	if err != nil {
		return zero, Meta{}, false, err
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, Meta{}, false, nil
	}
	if err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: get %s: %w", key, err)
	}
	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: decode envelope %s: %w", key, err)
	}
	snapshot, err := decode[T](env.Payload)
	if err != nil {
		return zero, Meta{}, false, err
	}
	return snapshot, env.Meta, true, nil
}

func (s *RedisStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	key, err := s.key(ref)
	if err != nil {
		return Meta{}, err
	}
	payload, err := encode(snapshot)
	if err != nil {
		return Meta{}, err
	}
	out := meta.stamped(payload, time.Now())
	envelope, err := json.Marshal(redisEnvelope{Meta: out, Payload: payload})
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode envelope: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		if meta.ETag != "" {
			current, exists, err := currentETag(ctx, tx, key)
			if err != nil {
				return err
			}
			if err := checkETag(meta.ETag, current, exists); err != nil {
				return err
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, envelope, 0)
			return nil
		})
		return err
	}
	if err := s.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return Meta{}, fmt.Errorf("%w: %s changed during save", ErrETagMismatch, key)
		}
		if errors.Is(err, ErrETagMismatch) {
			return Meta{}, err
		}
		return Meta{}, fmt.Errorf("state: set %s: %w", key, err)
	}
	return out, nil
}

func currentETag(ctx context.Context, tx *redis.Tx, key string) (string, bool, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("state: get %s: %w", key, err)
	}
	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", false, fmt.Errorf("state: decode envelope %s: %w", key, err)
	}
	return env.Meta.ETag, true, nil
}
