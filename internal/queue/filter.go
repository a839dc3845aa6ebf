package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rzbill/pqueue/internal/table"
)

// FilterQueue is a Queue whose rows can be tombstoned. Tombstoned items are
// never delivered but stay listable until PurgeDeletedItems removes them.
// A removing Dequeue tombstones the item rather than deleting the row.
type FilterQueue struct {
	*Queue
}

// OpenFilter binds a filter queue named name to store.
func OpenFilter(ctx context.Context, name string, store table.Store, opts ...Option) (*FilterQueue, error) {
	q, err := open(ctx, KindFilter, name, store, opts...)
	if err != nil {
		return nil, err
	}
	q.selector = table.ActiveRows
	q.removeNext = q.tombstone
	return &FilterQueue{Queue: q}, nil
}

func (q *Queue) tombstone(ctx context.Context, r *table.Record, now time.Time) error {
	if r.DeletedAt != nil {
		return nil
	}
	r.DeletedAt = &now
	if err := q.store.Update(ctx, *r); err != nil {
		r.DeletedAt = nil
		return storageErr("update", err)
	}
	return nil
}

// Delete tombstones item. WithRemoveFromStore(true) deletes the row like
// Queue.Delete. Tombstoning an item that is no longer stored is a no-op and
// an existing tombstone keeps its original time.
func (f *FilterQueue) Delete(ctx context.Context, item *Item, opts ...DeleteOption) error {
	var o deleteOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.removeFromStore {
		return f.Queue.Delete(ctx, item)
	}
	if err := f.checkOwner(item); err != nil {
		return err
	}
	if err := f.lock(); err != nil {
		return err
	}
	defer f.mu.Unlock()

	r, err := f.store.Get(ctx, item.ID)
	if errors.Is(err, table.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storageErr("get", err)
	}
	if err := f.tombstone(ctx, &r, f.now()); err != nil {
		return err
	}
	item.DeletedAt = r.DeletedAt
	f.observe(OpSoftDelete, 1)
	return nil
}

func (f *FilterQueue) list(ctx context.Context, t table.Tombstones, since *time.Time) ([]*Item, error) {
	if err := f.lock(); err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	rs, err := f.store.Scan(ctx, table.Filter{Tombstones: t, Since: since})
	if err != nil {
		return nil, storageErr("scan", err)
	}
	return itemsFromRecords(rs, f.owner), nil
}

// ActiveItems lists items that are not tombstoned, oldest first. A non-nil
// since keeps items created at or after it.
func (f *FilterQueue) ActiveItems(ctx context.Context, since *time.Time) ([]*Item, error) {
	return f.list(ctx, table.ActiveRows, since)
}

// DeletedItems lists tombstoned items, oldest first.
func (f *FilterQueue) DeletedItems(ctx context.Context, since *time.Time) ([]*Item, error) {
	return f.list(ctx, table.DeletedRows, since)
}

// AllItems lists every stored item, oldest first.
func (f *FilterQueue) AllItems(ctx context.Context, since *time.Time) ([]*Item, error) {
	return f.list(ctx, table.AnyRows, since)
}

// PurgeDeletedItems removes every row tombstoned at the time of the call and
// returns how many were removed.
func (f *FilterQueue) PurgeDeletedItems(ctx context.Context) (int, error) {
	if err := f.lock(); err != nil {
		return 0, err
	}
	defer f.mu.Unlock()

	n, err := f.store.DeleteWhere(ctx, table.Filter{Tombstones: table.DeletedRows})
	if err != nil {
		return n, storageErr("purge", err)
	}
	f.observe(OpPurge, n)
	return n, nil
}
