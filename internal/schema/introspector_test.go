package schema

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSource counts every call so tests can assert cache behaviour
type mockSource struct {
	ColumnsFunc func(ctx context.Context, table string) ([]string, error)
	TablesFunc  func(ctx context.Context) ([]string, error)

	columnCalls atomic.Int32
	tableCalls  atomic.Int32
}

func (m *mockSource) Columns(ctx context.Context, table string) ([]string, error) {
	m.columnCalls.Add(1)
	return m.ColumnsFunc(ctx, table)
}

func (m *mockSource) Tables(ctx context.Context) ([]string, error) {
	m.tableCalls.Add(1)
	return m.TablesFunc(ctx)
}

// mutableFingerprint lets a test simulate a migration landing
type mutableFingerprint struct {
	mu    sync.Mutex
	value string
	err   error
}

func (f *mutableFingerprint) Fingerprint() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

func (f *mutableFingerprint) set(v string) {
	f.mu.Lock()
	f.value = v
	f.mu.Unlock()
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]string, bool, error) {
	return nil, false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, []string) error {
	return errors.New("cache down")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIntrospector(t *testing.T, src Source, fp Fingerprinter) *Introspector {
	t.Helper()
	cache, err := NewMemoryCache(64)
	require.NoError(t, err)
	return NewIntrospector(src, cache, fp, discardLogger())
}

func usersSource(columns ...string) *mockSource {
	return &mockSource{
		ColumnsFunc: func(ctx context.Context, table string) ([]string, error) {
			if table == "users" {
				return columns, nil
			}
			return []string{}, nil
		},
		TablesFunc: func(ctx context.Context) ([]string, error) {
			return []string{"user_profiles", "users"}, nil
		},
	}
}

func TestIntrospector_ColumnExists_CachedWithinFingerprint(t *testing.T) {
	ctx := context.Background()
	src := usersSource("id", "email", "username")
	in := newTestIntrospector(t, src, StaticFingerprint("v1"))

	for i := 0; i < 3; i++ {
		ok, err := in.ColumnExists(ctx, "users", "email")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = in.ColumnExists(ctx, "users", "nickname")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	assert.Equal(t, int32(1), src.columnCalls.Load())
}

func TestIntrospector_FingerprintChangeInvalidates(t *testing.T) {
	ctx := context.Background()
	fp := &mutableFingerprint{value: "v1"}
	columns := []string{"id", "email"}
	src := &mockSource{
		ColumnsFunc: func(ctx context.Context, table string) ([]string, error) {
			return columns, nil
		},
	}
	in := newTestIntrospector(t, src, fp)

	ok, err := in.ColumnExists(ctx, "users", "nickname")
	require.NoError(t, err)
	assert.False(t, ok)

	columns = []string{"id", "email", "nickname"}

	// Same fingerprint still answers from the cache
	ok, err = in.ColumnExists(ctx, "users", "nickname")
	require.NoError(t, err)
	assert.False(t, ok)

	fp.set("v2")

	ok, err = in.ColumnExists(ctx, "users", "nickname")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), src.columnCalls.Load())
}

func TestIntrospector_TablesAndTableExists(t *testing.T) {
	ctx := context.Background()
	src := usersSource("id")
	in := newTestIntrospector(t, src, StaticFingerprint("v1"))

	tables, err := in.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_profiles", "users"}, tables)

	ok, err := in.TableExists(ctx, "user_profiles")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = in.TableExists(ctx, "user_profile")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int32(1), src.tableCalls.Load())
}

func TestIntrospector_ColumnsExcept(t *testing.T) {
	src := usersSource("id", "email", "password", "username", "remember_token")
	in := newTestIntrospector(t, src, StaticFingerprint("v1"))

	cols, err := in.ColumnsExcept(context.Background(), "users", "password", "remember_token")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email", "username"}, cols)

	// The cached slice is untouched
	all, err := in.Columns(context.Background(), "users")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestIntrospector_ErrorsPropagate(t *testing.T) {
	ctx := context.Background()

	t.Run("source error", func(t *testing.T) {
		src := &mockSource{
			ColumnsFunc: func(ctx context.Context, table string) ([]string, error) {
				return nil, errors.New("connection refused")
			},
		}
		in := newTestIntrospector(t, src, StaticFingerprint("v1"))

		ok, err := in.ColumnExists(ctx, "users", "id")
		require.Error(t, err)
		assert.False(t, ok)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("errors are not cached", func(t *testing.T) {
		fail := true
		src := &mockSource{
			ColumnsFunc: func(ctx context.Context, table string) ([]string, error) {
				if fail {
					return nil, errors.New("timeout")
				}
				return []string{"id"}, nil
			},
		}
		in := newTestIntrospector(t, src, StaticFingerprint("v1"))

		_, err := in.Columns(ctx, "users")
		require.Error(t, err)

		fail = false
		cols, err := in.Columns(ctx, "users")
		require.NoError(t, err)
		assert.Equal(t, []string{"id"}, cols)
	})

	t.Run("fingerprint error", func(t *testing.T) {
		src := usersSource("id")
		in := newTestIntrospector(t, src, &mutableFingerprint{err: errors.New("no such directory")})

		_, err := in.TableExists(ctx, "users")
		require.Error(t, err)
		assert.Equal(t, int32(0), src.tableCalls.Load())
	})

	t.Run("cache error", func(t *testing.T) {
		src := usersSource("id")
		in := NewIntrospector(src, failingCache{}, StaticFingerprint("v1"), discardLogger())

		_, err := in.Columns(ctx, "users")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache down")
	})
}

func TestIntrospector_ConcurrentMissesCoalesce(t *testing.T) {
	release := make(chan struct{})
	src := &mockSource{
		ColumnsFunc: func(ctx context.Context, table string) ([]string, error) {
			<-release
			return []string{"id", "email"}, nil
		},
	}
	in := newTestIntrospector(t, src, StaticFingerprint("v1"))

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := in.ColumnExists(context.Background(), "users", "email")
			results <- err == nil && ok
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for ok := range results {
		assert.True(t, ok)
	}
	assert.Equal(t, int32(1), src.columnCalls.Load())
}

func TestIntrospector_CancelledCallerDoesNotFailOthers(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	src := &mockSource{
		ColumnsFunc: func(ctx context.Context, table string) ([]string, error) {
			close(entered)
			select {
			case <-release:
				return []string{"id", "email"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	in := newTestIntrospector(t, src, StaticFingerprint("v1"))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := in.Columns(firstCtx, "users")
		firstErr <- err
	}()
	<-entered

	type result struct {
		ok  bool
		err error
	}
	second := make(chan result, 1)
	go func() {
		ok, err := in.ColumnExists(context.Background(), "users", "email")
		second <- result{ok, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.True(t, res.ok)
	assert.Equal(t, int32(1), src.columnCalls.Load())

	// the fill landed in the cache for later callers too
	cols, err := in.Columns(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, cols)
	assert.Equal(t, int32(1), src.columnCalls.Load())
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "schema:123:users:columns", columnsKey("123", "users"))
	assert.Equal(t, "schema:123:all-tables", tablesKey("123"))
}
