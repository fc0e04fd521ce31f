package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-list-worker/internal/models"
)

// exerciseRepository runs the store contract against any adapter.
func exerciseRepository(t *testing.T, repo SubscriberRepository) {
	t.Helper()
	ctx := context.Background()

	empty, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	a, err := repo.Create(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", a.Email)
	assert.False(t, a.CreatedAt.IsZero())

	b, err := repo.Create(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID)

	_, err = repo.Create(ctx, "a@x.com")
	assert.ErrorIs(t, err, models.ErrAlreadySubscribed)

	subscribers, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, subscribers, 2)
	assert.Equal(t, "b@x.com", subscribers[0].Email)
	assert.Equal(t, "a@x.com", subscribers[1].Email)
	assert.Equal(t, a.ID, subscribers[1].ID)
}

func TestInMemorySubscriberRepository(t *testing.T) {
	exerciseRepository(t, NewInMemorySubscriberRepository())
}

func TestInMemoryOrdersByCreatedAtThenID(t *testing.T) {
	repo := NewInMemorySubscriberRepository()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		_, err := repo.Create(context.Background(), email)
		require.NoError(t, err)
	}

	subscribers, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subscribers, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{subscribers[0].ID, subscribers[1].ID, subscribers[2].ID})
}

func TestInMemoryConcurrentDuplicates(t *testing.T) {
	repo := NewInMemorySubscriberRepository()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Create(context.Background(), "race@x.com"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	subscribers, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, subscribers, 1)
}

func TestSQLiteSubscriberRepository(t *testing.T) {
	repo, err := NewSQLiteSubscriberRepository(context.Background(), ":memory:")
	require.NoError(t, err)
	defer repo.Close()

	exerciseRepository(t, repo)
}

func TestSQLiteReopenKeepsRows(t *testing.T) {
	path := fmt.Sprintf("%s/subscribers.db", t.TempDir())
	ctx := context.Background()

	repo, err := NewSQLiteSubscriberRepository(ctx, path)
	require.NoError(t, err)
	_, err = repo.Create(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteSubscriberRepository(ctx, path)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.Create(ctx, "a@x.com")
	assert.ErrorIs(t, err, models.ErrAlreadySubscribed)

	subscribers, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, subscribers, 1)
	assert.Equal(t, "a@x.com", subscribers[0].Email)
}

func TestSQLiteDSN(t *testing.T) {
	cases := map[string]string{
		":memory:":                   ":memory:?_busy_timeout=5000",
		"/var/lib/subs.db":           "/var/lib/subs.db?_busy_timeout=5000",
		"file:subs.db?mode=rwc":      "file:subs.db?mode=rwc&_busy_timeout=5000",
		"file::memory:?cache=shared": "file::memory:?cache=shared&_busy_timeout=5000",
	}
	for path, want := range cases {
		assert.Equal(t, want, sqliteDSN(path), path)
	}
}

func TestSQLitePathWithQuery(t *testing.T) {
	path := fmt.Sprintf("file:%s/subscribers.db?mode=rwc", t.TempDir())
	ctx := context.Background()

	repo, err := NewSQLiteSubscriberRepository(ctx, path)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.Create(ctx, "a@x.com")
	require.NoError(t, err)
	_, err = repo.Create(ctx, "a@x.com")
	assert.ErrorIs(t, err, models.ErrAlreadySubscribed)
}

func TestSQLiteTimeScan(t *testing.T) {
	var ts sqliteTime

	require.NoError(t, ts.Scan("2025-01-02 03:04:05.678"))
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 678000000, time.UTC), ts.Time)

	require.NoError(t, ts.Scan([]byte("2025-01-02 03:04:05")))
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), ts.Time)

	assert.Error(t, ts.Scan("yesterday"))
	assert.Error(t, ts.Scan(42))
}
