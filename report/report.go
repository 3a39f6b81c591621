// Package report publishes pool statistics on an interval.
package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrek82/jpool/logger"
	"github.com/shrek82/jpool/pool"
)

// Reporter publishes one stats snapshot.
type Reporter interface {
	Report(ctx context.Context, s pool.Stats) error
}

// Source is anything with pool stats, usually a *pool.Pool.
type Source interface {
	Stats() pool.Stats
}

// Run reports src's stats every interval until ctx is done, then reports
// once more so the last snapshot reflects the final state. Report errors
// are logged and do not stop the loop.
func Run(ctx context.Context, src Source, r Reporter, every time.Duration, l logger.Logger) {
	if l == nil {
		l = logger.Discard()
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := r.Report(final, src.Stats()); err != nil {
				l.Warn("final stats report failed: %v", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := r.Report(ctx, src.Stats()); err != nil && !errors.Is(err, context.Canceled) {
				l.Warn("stats report failed: %v", err)
			}
		}
	}
}

// Fields flattens s into string values keyed by snake_case names.
func Fields(s pool.Stats) map[string]string {
	return map[string]string{
		"max_size":            strconv.FormatUint(uint64(s.MaxSize), 10),
		"init_size":           strconv.FormatUint(uint64(s.InitSize), 10),
		"live":                strconv.FormatUint(uint64(s.Live), 10),
		"idle":                strconv.FormatUint(uint64(s.Idle), 10),
		"in_use":              strconv.FormatUint(uint64(s.InUse), 10),
		"waiters":             strconv.Itoa(s.Waiters),
		"acquire_count":       strconv.FormatUint(s.AcquireCount, 10),
		"acquire_success":     strconv.FormatUint(s.AcquireSuccess, 10),
		"acquire_timeouts":    strconv.FormatUint(s.AcquireTimeouts, 10),
		"acquire_unavailable": strconv.FormatUint(s.AcquireUnavailable, 10),
		"acquire_canceled":    strconv.FormatUint(s.AcquireCanceled, 10),
		"release_count":       strconv.FormatUint(s.ReleaseCount, 10),
		"created":             strconv.FormatUint(s.Created, 10),
		"dial_failures":       strconv.FormatUint(s.DialFailures, 10),
		"evicted":             strconv.FormatUint(s.Evicted, 10),
		"discarded":           strconv.FormatUint(s.Discarded, 10),
		"wait_ms":             strconv.FormatInt(s.WaitDuration.Milliseconds(), 10),
	}
}

// LogReporter writes stats to a logger at info level.
type LogReporter struct {
	Log logger.Logger
}

func (r LogReporter) Report(_ context.Context, s pool.Stats) error {
	fields := make(map[string]any, 17)
	for k, v := range Fields(s) {
		fields[k] = v
	}
	r.Log.WithFields(fields).Info("pool stats")
	return nil
}

// hashWriter is the part of a redis client RedisReporter uses.
type hashWriter interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisReporter stores the latest snapshot as a Redis hash. With a positive
// TTL the hash expires when the reporting process stops refreshing it.
type RedisReporter struct {
	client hashWriter
	key    string
	ttl    time.Duration
}

// NewRedisReporter reports into the hash at key on client. c may be a
// *redis.Client, *redis.ClusterClient or anything else with HSet and Expire.
func NewRedisReporter(c hashWriter, key string, ttl time.Duration) *RedisReporter {
	return &RedisReporter{client: c, key: key, ttl: ttl}
}

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("report: redis %s: %w", addr, err)
	}
	return c, nil
}

func (r *RedisReporter) Report(ctx context.Context, s pool.Stats) error {
	fields := Fields(s)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	values := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	if err := r.client.HSet(ctx, r.key, values...).Err(); err != nil {
		return fmt.Errorf("report: hset %s: %w", r.key, err)
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, r.key, r.ttl).Err(); err != nil {
			return fmt.Errorf("report: expire %s: %w", r.key, err)
		}
	}
	return nil
}
