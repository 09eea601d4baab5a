// Package storetest provides in-process stand-ins for the stores' external
// services.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is an in-memory redis.Cmdable implementing the string commands the
// read cache uses: GET, SET, SETNX and DEL. Expirations are ignored. Any
// other command panics.
type Redis struct {
	redis.Cmdable

	mu   sync.Mutex
	data map[string]string
}

func NewRedis() *Redis {
	return &Redis{data: make(map[string]string)}
}

// Value returns the stored value of key.
func (r *Redis) Value(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	return v, ok
}

func (r *Redis) Get(_ context.Context, key string) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (r *Redis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	s, err := toString(value)
	if err != nil {
		return redis.NewStatusResult("", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = s
	return redis.NewStatusResult("OK", nil)
}

func (r *Redis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	s, err := toString(value)
	if err != nil {
		return redis.NewBoolResult(false, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	r.data[key] = s
	return redis.NewBoolResult(true, nil)
}

func (r *Redis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := r.data[k]; ok {
			delete(r.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func toString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("storetest: unsupported value type %T", value)
	}
}
