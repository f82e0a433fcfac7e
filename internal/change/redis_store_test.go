package change_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gigharvest/internal/change"
	"github.com/jonesrussell/gigharvest/internal/domain"
)

func newRedisStore(t *testing.T) *change.RedisSnapshotStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return change.NewRedisSnapshotStore(client)
}

func TestRedisStoreMissingSnapshotIsEmpty(t *testing.T) {
	store := newRedisStore(t)

	gigs, err := store.Read(context.Background(), "never-ran")
	require.NoError(t, err)
	assert.Empty(t, gigs)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	g := domain.Gig{
		Source:    "massey-hall",
		Title:     "The Cure",
		StartTime: time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC),
		Venue:     domain.Venue{Name: "Massey Hall"},
	}
	g.Fingerprint()

	require.NoError(t, store.Write(ctx, "massey-hall", []domain.Gig{g}))

	got, err := store.Read(ctx, "massey-hall")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, g.ID, got[0].ID)
	assert.Equal(t, g.ContentHash, got[0].ContentHash)
	assert.True(t, g.StartTime.Equal(got[0].StartTime))
}

func TestRedisStoreWriteReplaces(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	a := domain.Gig{Source: "s", Title: "A", Venue: domain.Venue{Name: "V"}}
	a.Fingerprint()
	b := domain.Gig{Source: "s", Title: "B", Venue: domain.Venue{Name: "V"}}
	b.Fingerprint()

	require.NoError(t, store.Write(ctx, "s", []domain.Gig{a, b}))
	require.NoError(t, store.Write(ctx, "s", []domain.Gig{b}))

	got, err := store.Read(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].Title)
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	store := change.NewMemorySnapshotStore()
	ctx := context.Background()

	g := domain.Gig{Source: "s", Title: "A", Venue: domain.Venue{Name: "V"}}
	g.Fingerprint()
	written := []domain.Gig{g}
	require.NoError(t, store.Write(ctx, "s", written))

	// Mutating the caller's slice must not leak into the store.
	written[0].Title = "mutated"

	got, err := store.Read(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Title)
}
