// Package cache connects to Redis and provides JSON cache-aside helpers.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"circle/internal/observability"

	"github.com/redis/go-redis/v9"
)

// pingTimeout bounds the connectivity check in Connect.
const pingTimeout = 5 * time.Second

// Connect parses addr (host:port or a redis:// URL), opens a client and
// pings it. On any error no client is returned.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := parseAddr(addr)
	if err != nil {
		return nil, err
	}

	rdb := NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

func parseAddr(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis address is empty")
	}
	if !strings.Contains(addr, "://") {
		return &redis.Options{Addr: addr}, nil
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return opts, nil
}

// NewClient opens a client whose failed commands are counted per command name.
func NewClient(opts *redis.Options) *redis.Client {
	rdb := redis.NewClient(opts)
	rdb.AddHook(errorCounter{})
	return rdb
}

// errorCounter feeds observability.RedisErrorRate. redis.Nil is a miss, not
// an error.
type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countFailure(cmd.Name(), err)
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		for _, cmd := range cmds {
			countFailure(cmd.Name(), cmd.Err())
		}
		return err
	}
}

func countFailure(op string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrorRate.WithLabelValues(op).Inc()
	}
}
