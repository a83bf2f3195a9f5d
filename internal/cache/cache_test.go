package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kthgpt/internal/cache"
	"kthgpt/internal/store"
	"kthgpt/internal/testsupport"
)

func TestFingerprintTrimsWhitespace(t *testing.T) {
	assert.Equal(t, cache.Fingerprint("what is a vector?"), cache.Fingerprint("  what is a vector?\n"))
	assert.NotEqual(t, cache.Fingerprint("what is a vector?"), cache.Fingerprint("what is a matrix?"))
	// sha256 of the empty string
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", cache.Fingerprint("   "))
	assert.Len(t, cache.Fingerprint("x"), 64)
}

func newCache(t *testing.T) (*cache.Cache, *store.Store, *store.Lecture) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	lecture := testsupport.NewLecture(t, st, "0_cache", "en")
	return cache.New(st), st, lecture
}

func TestResolveMissThenHit(t *testing.T) {
	c, st, lecture := newCache(t)
	ctx := context.Background()

	var calls int
	build := func(ctx context.Context, entry *store.Query) (string, error) {
		calls++
		assert.Nil(t, entry.Response, "entry must be unanswered during build")
		return "answer", nil
	}

	first, err := c.Resolve(ctx, lecture.ID, "What is a vector?", false, build)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "answer", first.Output)

	second, err := c.Resolve(ctx, lecture.ID, "  What is a vector?  ", false, build)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "answer", second.Output)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.Equal(t, 1, calls)

	history, err := st.ListQueries(ctx, lecture.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestResolveScopesAreIndependent(t *testing.T) {
	c, st, lecture := newCache(t)
	other := testsupport.NewLecture(t, st, "0_other", "en")
	ctx := context.Background()

	build := func(answer string) cache.BuildFunc {
		return func(context.Context, *store.Query) (string, error) { return answer, nil }
	}
	_, err := c.Resolve(ctx, lecture.ID, "q", false, build("one"))
	require.NoError(t, err)
	res, err := c.Resolve(ctx, other.ID, "q", false, build("two"))
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "two", res.Output)
}

func TestResolveForceRefreshCreatesNewEntry(t *testing.T) {
	c, st, lecture := newCache(t)
	ctx := context.Background()

	answers := []string{"old", "new"}
	var i int
	build := func(context.Context, *store.Query) (string, error) {
		out := answers[i]
		i++
		return out, nil
	}

	first, err := c.Resolve(ctx, lecture.ID, "q", false, build)
	require.NoError(t, err)
	refreshed, err := c.Resolve(ctx, lecture.ID, "q", true, build)
	require.NoError(t, err)
	assert.False(t, refreshed.Cached)
	assert.Equal(t, "new", refreshed.Output)
	assert.NotEqual(t, first.Entry.ID, refreshed.Entry.ID)

	// Later lookups see the newest answer.
	hit, err := c.Resolve(ctx, lecture.ID, "q", false, build)
	require.NoError(t, err)
	assert.True(t, hit.Cached)
	assert.Equal(t, "new", hit.Output)

	history, err := st.ListQueries(ctx, lecture.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestResolveBuildFailureLeavesEntryUnanswered(t *testing.T) {
	c, st, lecture := newCache(t)
	ctx := context.Background()
	boom := errors.New("backend down")

	_, err := c.Resolve(ctx, lecture.ID, "q", false, func(context.Context, *store.Query) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	history, err := st.ListQueries(ctx, lecture.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Answered())

	// The failed attempt is not a hit; the next call builds again.
	res, err := c.Resolve(ctx, lecture.ID, "q", false, func(context.Context, *store.Query) (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "recovered", res.Output)
}

func TestResolveRequiresBuild(t *testing.T) {
	c, _, lecture := newCache(t)
	_, err := c.Resolve(context.Background(), lecture.ID, "q", false, nil)
	assert.Error(t, err)
}

func TestResolveCollapsesConcurrentMisses(t *testing.T) {
	c, _, lecture := newCache(t)
	ctx := context.Background()

	var builds atomic.Int32
	release := make(chan struct{})
	build := func(context.Context, *store.Query) (string, error) {
		builds.Add(1)
		<-release
		return "shared", nil
	}

	const callers = 6
	results := make([]cache.Result, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Resolve(ctx, lecture.ID, "same question", false, build)
		}(i)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	fresh := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i].Output)
		if !results[i].Cached {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh, "only the caller that built should see Cached=false")
}

func TestResolveJoinerRetriesAfterLeaderCancellation(t *testing.T) {
	c, _, lecture := newCache(t)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	started := make(chan struct{})
	var builds atomic.Int32
	build := func(ctx context.Context, _ *store.Query) (string, error) {
		if builds.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "rebuilt", nil
	}

	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Resolve(leaderCtx, lecture.ID, "what is entropy?", false, build)
		leaderErr <- err
	}()
	<-started

	joined := make(chan struct{})
	var result cache.Result
	var joinErr error
	go func() {
		defer close(joined)
		result, joinErr = c.Resolve(context.Background(), lecture.ID, "what is entropy?", false, build)
	}()
	// Give the joiner time to attach to the in-flight build before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancelLeader()

	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	<-joined
	require.NoError(t, joinErr)
	assert.Equal(t, "rebuilt", result.Output)
	assert.Equal(t, int32(2), builds.Load())
}
