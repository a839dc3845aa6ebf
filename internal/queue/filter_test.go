package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFilter(t *testing.T, clk *fakeClock, opts ...Option) *FilterQueue {
	t.Helper()
	s := openStore(t, t.TempDir(), KindFilter, "f")
	f, err := OpenFilter(context.Background(), "f", s, append([]Option{WithClock(clk.Now)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func lengths(t *testing.T, f *FilterQueue) (active, deleted, all int) {
	t.Helper()
	ctx := context.Background()
	a, err := f.ActiveItems(ctx, nil)
	require.NoError(t, err)
	d, err := f.DeletedItems(ctx, nil)
	require.NoError(t, err)
	x, err := f.AllItems(ctx, nil)
	require.NoError(t, err)
	return len(a), len(d), len(x)
}

func TestFilterSkipsTombstonedItems(t *testing.T) {
	ctx := context.Background()
	f := newFilter(t, newClock())
	for _, v := range []string{"One", "Two", "Skipped", "Three"} {
		_, err := f.Enqueue(ctx, v)
		require.NoError(t, err)
	}

	active, err := f.ActiveItems(ctx, nil)
	require.NoError(t, err)
	require.Len(t, active, 4)
	require.NoError(t, f.Delete(ctx, active[2]))

	a, d, _ := lengths(t, f)
	assert.Equal(t, 3, a)
	assert.Equal(t, 1, d)

	for _, want := range []string{"One", "Two", "Three"} {
		it, ok, err := f.Dequeue(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		got, err := As[string](f, it)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, ok, err := f.Dequeue(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// removing dequeues tombstone rather than delete
	a, d, all := lengths(t, f)
	assert.Equal(t, 0, a)
	assert.Equal(t, 4, d)
	assert.Equal(t, 4, all)
}

func TestFilterPartitionInvariant(t *testing.T) {
	ctx := context.Background()
	f := newFilter(t, newClock())
	var items []*Item
	for i := 0; i < 10; i++ {
		it, err := f.Enqueue(ctx, i)
		require.NoError(t, err)
		items = append(items, it)

		if i%3 == 0 {
			require.NoError(t, f.Delete(ctx, items[i/2]))
		}
		a, d, all := lengths(t, f)
		assert.Equal(t, all, a+d, "after step %d", i)
	}

	n, err := f.PurgeDeletedItems(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)

	deleted, err := f.DeletedItems(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	active, err := f.ActiveItems(ctx, nil)
	require.NoError(t, err)
	all, err := f.AllItems(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, ids(active), ids(all))
	assert.Len(t, all, 10-n)
}

func TestFilterHardDeleteBypass(t *testing.T) {
	ctx := context.Background()
	f := newFilter(t, newClock())
	it, err := f.Enqueue(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, f.Delete(ctx, it))
	require.NotNil(t, it.DeletedAt)
	require.NoError(t, f.Delete(ctx, it, WithRemoveFromStore(true)))
	require.NoError(t, f.Delete(ctx, it, WithRemoveFromStore(true)))

	a, d, all := lengths(t, f)
	assert.Zero(t, a)
	assert.Zero(t, d)
	assert.Zero(t, all)

	// soft delete of a purged row is also a no-op
	assert.NoError(t, f.Delete(ctx, it))
}

func TestFilterTombstoneKeepsFirstTime(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	f := newFilter(t, clk)
	it, err := f.Enqueue(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, f.Delete(ctx, it))
	first := *it.DeletedAt
	clk.Advance(time.Hour)
	require.NoError(t, f.Delete(ctx, it))
	assert.Equal(t, first, *it.DeletedAt)
}

func TestFilterSinceFilter(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	f := newFilter(t, clk)
	old, err := f.Enqueue(ctx, "old")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	cut := clk.Now()
	recent, err := f.Enqueue(ctx, "recent")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	require.NoError(t, f.Delete(ctx, old))

	active, err := f.ActiveItems(ctx, &cut)
	require.NoError(t, err)
	assert.Equal(t, []uint64{recent.ID}, ids(active))

	deleted, err := f.DeletedItems(ctx, &cut)
	require.NoError(t, err)
	assert.Empty(t, deleted, "since filters on creation time, not deletion time")

	all, err := f.AllItems(ctx, &cut)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFilterKeepDequeueDoesNotTombstone(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	f := newFilter(t, clk)
	_, err := f.Enqueue(ctx, "x")
	require.NoError(t, err)

	_, ok, err := f.Dequeue(ctx, WithRemove(false), WithInvisibleTimeout(time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	a, d, _ := lengths(t, f)
	assert.Equal(t, 1, a)
	assert.Zero(t, d)

	clk.Advance(time.Second)
	_, ok, err = f.Peek(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFilterItemsDoNotMatchBaseQueue(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	f := newFilter(t, clk)
	it, err := f.Enqueue(ctx, "x")
	require.NoError(t, err)

	s := openStore(t, t.TempDir(), KindQueue, "f")
	q, err := Open(ctx, "f", s, WithClock(clk.Now))
	require.NoError(t, err)
	defer q.Close()
	assert.ErrorIs(t, q.Delete(ctx, it), ErrQueueMismatch)
}

func TestFilterStatsAndObserver(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	f := newFilter(t, newClock(), WithObserver(obs))
	for i := 0; i < 3; i++ {
		_, err := f.Enqueue(ctx, i)
		require.NoError(t, err)
	}
	_, _, err := f.Dequeue(ctx)
	require.NoError(t, err)

	s, err := f.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, Visible: 2, Deleted: 1}, s)

	n, err := f.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.PurgeDeletedItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.ops[OpPurge])
}

func TestFilterClosed(t *testing.T) {
	ctx := context.Background()
	f := newFilter(t, newClock())
	require.NoError(t, f.Close())
	_, err := f.AllItems(ctx, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.PurgeDeletedItems(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func ids(items []*Item) []uint64 {
	out := make([]uint64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
