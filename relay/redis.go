// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bureau-foundation/beak/lib/clock"
)

// Redis limiter defaults.
const (
	// DefaultRedisPort is used when RedisOptions.Port is zero.
	DefaultRedisPort = 6379

	// DefaultRedisKeyPrefix namespaces every limiter key.
	DefaultRedisKeyPrefix = "beak:limiter:"

	// DefaultRedisLease is how long a running slot stays claimed
	// without renewal. Holders renew at a third of it, so only a
	// crashed relay lets a lease lapse.
	DefaultRedisLease = 30 * time.Second

	// redisPollInterval is the wait between attempts when all
	// concurrency slots are taken.
	redisPollInterval = 50 * time.Millisecond
)

// claimRunningSlot drops lapsed leases from the running set, then adds
// the caller's lease if fewer than the limit remain.
//
//	KEYS[1] running set
//	ARGV[1] now (unix ms), ARGV[2] limit, ARGV[3] lease deadline (unix ms), ARGV[4] holder
var claimRunningSlot = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if redis.call('ZCARD', KEYS[1]) < tonumber(ARGV[2]) then
	redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
	return 1
end
return 0
`)

// RedisLimiterConfig configures a [RedisLimiter].
type RedisLimiterConfig struct {
	// Key is the full Redis key prefix of this limiter. Running
	// leases are a sorted set at Key+":running" and the start slot is
	// Key+":slot".
	Key string

	MaxConcurrent     int
	RequestsPerSecond float64

	// Lease is how long a running slot survives without renewal.
	// Default: [DefaultRedisLease].
	Lease time.Duration

	// PollInterval is the retry interval while no concurrency slot is
	// free. Default: 50ms.
	PollInterval time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// RedisLimiter is a [Limiter] whose state lives in Redis, shared by
// every relay process using the same key.
//
// Each running call holds a lease: a member of the running sorted set
// scored by its deadline. The holder renews the deadline until it
// releases, and claims prune lapsed members first, so the set never
// counts more than the live holders plus those of relays that died
// within the last lease. Start spacing is a key set with NX and an
// expiry of one minimum interval. Waiting is by polling through the
// clock.
type RedisLimiter struct {
	client        redis.Cmdable
	runningKey    string
	slotKey       string
	maxConcurrent int
	minTime       time.Duration
	lease         time.Duration
	pollInterval  time.Duration
	clock         clock.Clock
	logger        *slog.Logger
}

// NewRedisLimiter creates a limiter backed by client.
func NewRedisLimiter(client redis.Cmdable, config RedisLimiterConfig) *RedisLimiter {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	if config.Lease <= 0 {
		config.Lease = DefaultRedisLease
	}
	if config.PollInterval <= 0 {
		config.PollInterval = redisPollInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	minTime := MinTime(config.RequestsPerSecond)
	// The lease is not renewed while waiting for the start slot.
	lease := config.Lease + minTime
	return &RedisLimiter{
		client:        client,
		runningKey:    config.Key + ":running",
		slotKey:       config.Key + ":slot",
		maxConcurrent: config.MaxConcurrent,
		minTime:       minTime,
		lease:         lease,
		pollInterval:  config.PollInterval,
		clock:         config.Clock,
		logger:        config.Logger,
	}
}

// Acquire implements [Limiter].
func (limiter *RedisLimiter) Acquire(ctx context.Context) (func(), error) {
	holder := uuid.NewString()
	if err := limiter.takeRunningSlot(ctx, holder); err != nil {
		return nil, err
	}
	if err := limiter.waitForStart(ctx); err != nil {
		limiter.releaseRunningSlot(holder)
		return nil, err
	}
	return limiter.hold(holder), nil
}

// takeRunningSlot claims a lease for holder, backing off and retrying
// while every slot is taken.
func (limiter *RedisLimiter) takeRunningSlot(ctx context.Context, holder string) error {
	for {
		now := limiter.clock.Now()
		claimed, err := claimRunningSlot.Run(ctx, limiter.client, []string{limiter.runningKey},
			now.UnixMilli(),
			limiter.maxConcurrent,
			now.Add(limiter.lease).UnixMilli(),
			holder,
		).Int()
		if err != nil {
			return fmt.Errorf("relay: claiming %s: %w", limiter.runningKey, err)
		}
		if claimed == 1 {
			return nil
		}
		if err := limiter.sleep(ctx, limiter.pollInterval); err != nil {
			return err
		}
	}
}

// waitForStart claims the start slot, waiting out the remaining
// spacing of the previous start while another holder has it.
func (limiter *RedisLimiter) waitForStart(ctx context.Context) error {
	if limiter.minTime <= 0 {
		return nil
	}
	for {
		claimed, err := limiter.client.SetNX(ctx, limiter.slotKey, 1, limiter.minTime).Result()
		if err != nil {
			return fmt.Errorf("relay: claiming %s: %w", limiter.slotKey, err)
		}
		if claimed {
			return nil
		}

		remaining, err := limiter.client.PTTL(ctx, limiter.slotKey).Result()
		if err != nil {
			return fmt.Errorf("relay: reading %s expiry: %w", limiter.slotKey, err)
		}
		if remaining <= 0 {
			// Expired between the two commands, or has no expiry.
			remaining = limiter.pollInterval
		}
		if err := limiter.sleep(ctx, remaining); err != nil {
			return err
		}
	}
}

// hold renews holder's lease every third of the lease until the
// returned release runs. The first renewal timer is armed before hold
// returns.
func (limiter *RedisLimiter) hold(holder string) func() {
	interval := limiter.lease / 3
	timer := limiter.clock.NewTimer(interval)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
			}
			limiter.renewLease(holder)
			timer = limiter.clock.NewTimer(interval)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			limiter.releaseRunningSlot(holder)
		})
	}
}

func (limiter *RedisLimiter) renewLease(holder string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	deadline := limiter.clock.Now().Add(limiter.lease).UnixMilli()
	changed, err := limiter.client.ZAddArgs(ctx, limiter.runningKey, redis.ZAddArgs{
		XX:      true,
		Ch:      true,
		Members: []redis.Z{{Score: float64(deadline), Member: holder}},
	}).Result()
	switch {
	case err != nil:
		limiter.logger.Warn("renewing limiter lease failed",
			"key", limiter.runningKey,
			"error", err,
		)
	case changed == 0:
		limiter.logger.Warn("limiter lease lapsed before renewal",
			"key", limiter.runningKey,
		)
	}
}

func (limiter *RedisLimiter) releaseRunningSlot(holder string) {
	// The caller's context may already be canceled; releasing must
	// still reach Redis.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := limiter.client.ZRem(ctx, limiter.runningKey, holder).Err(); err != nil {
		limiter.logger.Warn("releasing limiter slot failed",
			"key", limiter.runningKey,
			"error", err,
		)
	}
}

func (limiter *RedisLimiter) sleep(ctx context.Context, d time.Duration) error {
	timer := limiter.clock.NewTimer(d)
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
}

// RedisGroup is a [LimiterGroup] whose limiters live in Redis. Keys
// are stored as fingerprints.
type RedisGroup struct {
	client redis.Cmdable
	config RedisLimiterConfig
}

// NewRedisGroup creates a group. config.Key is the prefix under which
// the per-key limiters are created.
func NewRedisGroup(client redis.Cmdable, config RedisLimiterConfig) *RedisGroup {
	return &RedisGroup{client: client, config: config}
}

// Key implements [LimiterGroup].
func (group *RedisGroup) Key(key string) Limiter {
	config := group.config
	config.Key = group.config.Key + ":" + Fingerprint(key)
	return NewRedisLimiter(group.client, config)
}
