// Package redisstore wraps the Redis operations used by the point index.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/quadkey-index/internal/core/observability"
)

// maxWatchRetries bounds optimistic retries when a watched key changes under a
// transaction.
const maxWatchRetries = 64

// neverExpires scores members without a deadline. It is exactly representable
// as a float64 and far beyond any unix millisecond timestamp.
const neverExpires = float64(1 << 53)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		if n > 0 {
			o.PoolSize = n
		}
	}
}

func WithMinIdleConns(n int) Option {
	return func(o *redis.Options) {
		if n >= 0 {
			o.MinIdleConns = n
		}
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) {
		if d > 0 {
			o.DialTimeout = d
		}
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) {
		if d > 0 {
			o.ReadTimeout = d
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) {
		if d > 0 {
			o.WriteTimeout = d
		}
	}
}

type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     64,
		MinIdleConns: 4,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)
	c := &Client{rdb: rdb}
	if err := c.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return c, nil
}

// Ping backs the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	observability.ObserveCacheOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Get reports found=false for a missing key rather than an error.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	v, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCacheOp("get", nil, time.Since(start).Seconds())
		return nil, false, nil
	}
	observability.ObserveCacheOp("get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %q: %w", key, err)
	}
	return v, true, nil
}

// Live trims members whose deadline is at or before now from every sorted set
// and returns the union of what remains, in no particular order. Missing keys
// count as empty sets.
func (c *Client) Live(ctx context.Context, now time.Time, keys ...string) ([]string, error) {
	start := time.Now()
	if len(keys) == 0 {
		observability.ObserveCacheOp("live", nil, time.Since(start).Seconds())
		return nil, nil
	}

	cutoff := strconv.FormatInt(now.UnixMilli(), 10)
	ranges := make([]*redis.StringSliceCmd, len(keys))
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			p.ZRemRangeByScore(ctx, k, "-inf", cutoff)
			ranges[i] = p.ZRange(ctx, k, 0, -1)
		}
		return nil
	})
	observability.ObserveCacheOp("live", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis live members of %d keys: %w", len(keys), err)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, r := range ranges {
		for _, m := range r.Val() {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}

// Placement is where Move puts a member.
type Placement struct {
	Member string
	// Set is the sorted set the member joins, scored by ExpireAt.
	Set string
	// LocKey records the member's current location as Loc.
	LocKey string
	Loc    []byte
	// TTL applies to LocKey; zero keeps it forever.
	TTL time.Duration
	// ExpireAt is the member's deadline inside Set; zero means never.
	ExpireAt time.Time
}

// Move places a member into pl.Set and records its location. The previous set is
// found by passing the stored location to setFor; the read and the write run under
// WATCH on pl.LocKey so concurrent moves of one member leave it in exactly one set.
func (c *Client) Move(ctx context.Context, pl Placement, setFor func(loc []byte) string) error {
	score := neverExpires
	if !pl.ExpireAt.IsZero() {
		score = float64(pl.ExpireAt.UnixMilli())
	}

	err := c.watch(ctx, "move", pl.LocKey, func(tx *redis.Tx) error {
		from, err := c.storedSet(ctx, tx, pl.LocKey, setFor)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if from != "" && from != pl.Set {
				p.ZRem(ctx, from, pl.Member)
			}
			p.ZAdd(ctx, pl.Set, redis.Z{Score: score, Member: pl.Member})
			p.Set(ctx, pl.LocKey, pl.Loc, pl.TTL)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("redis move %q: %w", pl.Member, err)
	}
	return nil
}

// Evict removes a member from the set its stored location points at and deletes
// the location. It reports found=false when locKey does not exist.
func (c *Client) Evict(ctx context.Context, member, locKey string, setFor func(loc []byte) string) (bool, error) {
	var found bool
	err := c.watch(ctx, "evict", locKey, func(tx *redis.Tx) error {
		from, err := c.storedSet(ctx, tx, locKey, setFor)
		if err != nil {
			return err
		}
		found = from != ""
		if !found {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.ZRem(ctx, from, member)
			p.Del(ctx, locKey)
			return nil
		})
		return err
	})
	if err != nil {
		return false, fmt.Errorf("redis evict %q: %w", member, err)
	}
	return found, nil
}

func (c *Client) storedSet(ctx context.Context, tx *redis.Tx, locKey string, setFor func(loc []byte) string) (string, error) {
	loc, err := tx.Get(ctx, locKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setFor(loc), nil
}

func (c *Client) watch(ctx context.Context, op, key string, fn func(*redis.Tx) error) error {
	start := time.Now()
	var err error
	for range maxWatchRetries {
		if err = c.rdb.Watch(ctx, fn, key); !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	observability.ObserveCacheOp(op, err, time.Since(start).Seconds())
	return err
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
