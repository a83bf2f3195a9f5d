package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"kthgpt/internal/config"
)

const claimWait = time.Second

// redisClient is the subset of *goredis.Client the queue uses.
type redisClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *goredis.StringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *goredis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *goredis.StringSliceCmd
	HSet(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	HSetNX(ctx context.Context, key, field string, value interface{}) *goredis.BoolCmd
	HGet(ctx context.Context, key, field string) *goredis.StringCmd
	HDel(ctx context.Context, key string, fields ...string) *goredis.IntCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

type redisEnvelope struct {
	ID string `json:"id"`
	Descriptor
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Reason     string    `json:"reason,omitempty"`
}

// RedisQueue is a list-backed queue. Jobs wait on <queue>, move atomically to
// <queue>:processing when claimed, and are removed from there on completion.
// Heartbeats live in the <queue>:heartbeats hash; failed jobs are appended to
// <queue>:failed.
type RedisQueue struct {
	client     redisClient
	queue      string
	processing string
	heartbeats string
	failed     string
	now        func() time.Time
}

// NewRedisQueue connects to the configured Redis server.
func NewRedisQueue(ctx context.Context, cfg config.Dispatch) (*RedisQueue, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisQueue(client, cfg.RedisQueue), nil
}

func newRedisQueue(client redisClient, queue string) *RedisQueue {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		queue = "kthgpt:jobs"
	}
	return &RedisQueue{
		client:     client,
		queue:      queue,
		processing: queue + ":processing",
		heartbeats: queue + ":heartbeats",
		failed:     queue + ":failed",
		now:        time.Now,
	}
}

// Enqueue pushes a new job onto the wait list.
func (q *RedisQueue) Enqueue(ctx context.Context, desc Descriptor) error {
	if err := validate(desc); err != nil {
		return err
	}
	raw, err := json.Marshal(redisEnvelope{
		ID:         uuid.NewString(),
		Descriptor: desc,
		EnqueuedAt: q.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.queue, string(raw)).Err(); err != nil {
		return fmt.Errorf("redis enqueue %s: %w", desc.Kind, err)
	}
	return nil
}

// Claim moves the oldest waiting job onto the processing list, blocking for
// up to a second.
func (q *RedisQueue) Claim(ctx context.Context) (*Delivery, error) {
	raw, err := q.client.BLMove(ctx, q.queue, q.processing, "RIGHT", "LEFT", claimWait).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis claim: %w", err)
	}
	var env redisEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Drop undecodable payloads so they cannot wedge the queue.
		_ = q.client.LRem(ctx, q.processing, 1, raw).Err()
		return nil, fmt.Errorf("redis claim: decode job: %w", err)
	}
	if err := q.client.HSet(ctx, q.heartbeats, env.ID, q.stamp()).Err(); err != nil {
		return nil, fmt.Errorf("redis claim heartbeat: %w", err)
	}
	return &Delivery{
		ID:         env.ID,
		Attempts:   env.Attempts + 1,
		Descriptor: env.Descriptor,
		raw:        raw,
	}, nil
}

// Complete removes the job from the processing list.
func (q *RedisQueue) Complete(ctx context.Context, d *Delivery) error {
	if d == nil {
		return errors.New("delivery is required")
	}
	removed, err := q.client.LRem(ctx, q.processing, 1, d.raw).Result()
	if err != nil {
		return fmt.Errorf("redis complete: %w", err)
	}
	_ = q.client.HDel(ctx, q.heartbeats, d.ID).Err()
	if removed == 0 {
		return fmt.Errorf("redis complete: job %s no longer claimed", d.ID)
	}
	return nil
}

// Fail removes the job from processing and records it on the failed list.
func (q *RedisQueue) Fail(ctx context.Context, d *Delivery, reason string) error {
	if d == nil {
		return errors.New("delivery is required")
	}
	if err := q.Complete(ctx, d); err != nil {
		return err
	}
	raw, err := json.Marshal(redisEnvelope{
		ID:         d.ID,
		Descriptor: d.Descriptor,
		Attempts:   d.Attempts,
		EnqueuedAt: q.now().UTC(),
		Reason:     reason,
	})
	if err != nil {
		return fmt.Errorf("encode failed job: %w", err)
	}
	if err := q.client.LPush(ctx, q.failed, string(raw)).Err(); err != nil {
		return fmt.Errorf("redis record failure: %w", err)
	}
	return nil
}

// Touch refreshes the job's heartbeat.
func (q *RedisQueue) Touch(ctx context.Context, d *Delivery) error {
	if d == nil {
		return errors.New("delivery is required")
	}
	if err := q.client.HSet(ctx, q.heartbeats, d.ID, q.stamp()).Err(); err != nil {
		return fmt.Errorf("redis touch: %w", err)
	}
	return nil
}

// RequeueStale moves processing jobs with an expired heartbeat back to the
// front of the wait list. A job without a heartbeat may be between BLMOVE and
// the heartbeat write in Claim, so it is stamped now and only requeued once
// that stamp expires.
func (q *RedisQueue) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	entries, err := q.client.LRange(ctx, q.processing, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list processing: %w", err)
	}
	var requeued int64
	for _, raw := range entries {
		var env redisEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			continue
		}
		stamp, err := q.client.HGet(ctx, q.heartbeats, env.ID).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return requeued, fmt.Errorf("redis heartbeat %s: %w", env.ID, err)
		}
		if errors.Is(err, goredis.Nil) {
			if err := q.client.HSetNX(ctx, q.heartbeats, env.ID, q.stamp()).Err(); err != nil {
				return requeued, fmt.Errorf("redis heartbeat %s: %w", env.ID, err)
			}
			continue
		}
		if unix, parseErr := strconv.ParseInt(stamp, 10, 64); parseErr == nil && !time.UnixMilli(unix).Before(cutoff) {
			continue
		}
		removed, err := q.client.LRem(ctx, q.processing, 1, raw).Result()
		if err != nil {
			return requeued, fmt.Errorf("redis requeue %s: %w", env.ID, err)
		}
		if removed == 0 {
			continue
		}
		env.Attempts++
		next, err := json.Marshal(env)
		if err != nil {
			return requeued, fmt.Errorf("encode requeued job: %w", err)
		}
		if err := q.client.RPush(ctx, q.queue, string(next)).Err(); err != nil {
			return requeued, fmt.Errorf("redis requeue %s: %w", env.ID, err)
		}
		_ = q.client.HDel(ctx, q.heartbeats, env.ID).Err()
		requeued++
	}
	return requeued, nil
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}

func (q *RedisQueue) stamp() string {
	return strconv.FormatInt(q.now().UnixMilli(), 10)
}
