// Package cache deduplicates expensive generated outputs by content
// fingerprint within a scope, such as answers to repeated questions about one
// lecture.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"kthgpt/internal/store"
)

// Repository is the persistence the cache needs. *store.Store implements it.
type Repository interface {
	LatestAnsweredQuery(ctx context.Context, lectureID int64, fingerprint string) (*store.Query, error)
	CreateQuery(ctx context.Context, lectureID int64, text, fingerprint string) (*store.Query, error)
	SetQueryResponse(ctx context.Context, id int64, response string) error
}

// BuildFunc produces the output for a fresh entry. The entry row already
// exists so its id can serve as a correlation id.
type BuildFunc func(ctx context.Context, entry *store.Query) (string, error)

// Result describes a resolved lookup.
type Result struct {
	Output string
	Cached bool
	Entry  *store.Query
}

// Cache resolves inputs against stored entries.
type Cache struct {
	repo   Repository
	flight singleflight.Group
}

// New constructs a Cache over repo.
func New(repo Repository) *Cache {
	return &Cache{repo: repo}
}

// Fingerprint is the hex SHA-256 of text with surrounding whitespace trimmed.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Resolve returns the latest stored output for input within scope, or builds
// and stores a new one on a miss or when forceRefresh is set. Concurrent
// non-forced misses for the same key in this process share one build; callers
// that joined another build see Cached set. The shared build runs under the
// first caller's context, so a joiner whose leader was cancelled retries once
// under its own. A failed build leaves its entry unanswered and is returned
// unchanged.
func (c *Cache) Resolve(ctx context.Context, scope int64, input string, forceRefresh bool, build BuildFunc) (Result, error) {
	if build == nil {
		return Result{}, errors.New("cache resolve: build function is required")
	}
	fingerprint := Fingerprint(input)

	if !forceRefresh {
		hit, err := c.lookup(ctx, scope, fingerprint)
		if err != nil || hit != nil {
			return derefResult(hit), err
		}
	}

	if forceRefresh {
		return c.fill(ctx, scope, input, fingerprint, build)
	}

	key := strconv.FormatInt(scope, 10) + ":" + fingerprint
	result, joined, err := c.shared(ctx, key, scope, input, fingerprint, build)
	if joined && isCancellation(err) && ctx.Err() == nil {
		result, _, err = c.shared(ctx, key, scope, input, fingerprint, build)
	}
	return result, err
}

// shared runs the lookup-then-fill under the key's flight and reports whether
// this caller joined a build started by another.
func (c *Cache) shared(ctx context.Context, key string, scope int64, input, fingerprint string, build BuildFunc) (Result, bool, error) {
	executed := false
	value, err, _ := c.flight.Do(key, func() (any, error) {
		executed = true
		// A build that finished between our lookup and acquiring the flight
		// already stored its answer.
		hit, err := c.lookup(ctx, scope, fingerprint)
		if err != nil {
			return Result{}, err
		}
		if hit != nil {
			return *hit, nil
		}
		return c.fill(ctx, scope, input, fingerprint, build)
	})
	if err != nil {
		return Result{}, !executed, err
	}
	result := value.(Result)
	if !executed {
		result.Cached = true
	}
	return result, !executed, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Cache) lookup(ctx context.Context, scope int64, fingerprint string) (*Result, error) {
	entry, err := c.repo.LatestAnsweredQuery(ctx, scope, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry == nil || entry.Response == nil {
		return nil, nil
	}
	return &Result{Output: *entry.Response, Cached: true, Entry: entry}, nil
}

func (c *Cache) fill(ctx context.Context, scope int64, input, fingerprint string, build BuildFunc) (Result, error) {
	entry, err := c.repo.CreateQuery(ctx, scope, input, fingerprint)
	if err != nil {
		return Result{}, fmt.Errorf("cache create entry: %w", err)
	}
	output, err := build(ctx, entry)
	if err != nil {
		return Result{}, err
	}
	if err := c.repo.SetQueryResponse(ctx, entry.ID, output); err != nil {
		return Result{}, fmt.Errorf("cache store response: %w", err)
	}
	answered := *entry
	answered.Response = &output
	return Result{Output: output, Cached: false, Entry: &answered}, nil
}

func derefResult(r *Result) Result {
	if r == nil {
		return Result{}
	}
	return *r
}
