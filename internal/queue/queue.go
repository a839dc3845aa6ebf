package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/pqueue/internal/codec"
	"github.com/rzbill/pqueue/internal/table"
	"github.com/rzbill/pqueue/pkg/log"
)

// Queue is one named visibility-timeout queue bound to one table store.
// All store access is serialized by the queue's mutex, so Dequeue's
// select-then-mutate step is atomic within the process.
type Queue struct {
	owner    owner
	instance string
	store    table.Store
	codec    codec.Codec
	now      func() time.Time
	logger   log.Logger
	obs      Observer
	timeout  time.Duration
	release  func() func()

	// selector restricts which rows Dequeue and Peek may pick.
	selector table.Tombstones
	// removeNext is applied to the row a removing Dequeue picked.
	removeNext func(ctx context.Context, r *table.Record, now time.Time) error

	mu     sync.Mutex
	closed bool
}

// Open binds a queue named name to store. The queue owns store from here
// on and closes it in Close.
func Open(ctx context.Context, name string, store table.Store, opts ...Option) (*Queue, error) {
	return open(ctx, KindQueue, name, store, opts...)
}

func open(_ context.Context, kind, name string, store table.Store, opts ...Option) (*Queue, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if store == nil {
		return nil, errors.New("queue: nil store")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNopLogger()
	}
	q := &Queue{
		owner:    owner{kind: kind, queue: name},
		instance: uuid.NewString(),
		store:    store,
		codec:    o.codec,
		now:      o.now,
		obs:      o.obs,
		timeout:  o.timeout,
		release:  o.release,
		selector: table.AnyRows,
	}
	q.logger = o.logger.WithComponent(kind).With(log.Queue(name), log.Str("instance", q.instance))
	q.removeNext = q.hardDelete
	q.logger.Debug("queue opened", log.Str("codec", q.codec.Name()))
	return q, nil
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.owner.queue }

// Kind returns KindQueue or KindFilter.
func (q *Queue) Kind() string { return q.owner.kind }

func (q *Queue) observe(op string, n int) {
	if q.obs != nil && n > 0 {
		q.obs.ObserveOp(q.owner.kind, q.owner.queue, op, n)
	}
}

func (q *Queue) lock() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	return nil
}

func (q *Queue) checkOwner(item *Item) error {
	if item == nil || item.owner != q.owner {
		return ErrQueueMismatch
	}
	return nil
}

// Enqueue encodes v and stores it as a new, immediately visible item.
func (q *Queue) Enqueue(ctx context.Context, v any) (*Item, error) {
	payload, err := q.codec.Marshal(v)
	if err != nil {
		return nil, encodingErr(err)
	}
	if err := q.lock(); err != nil {
		return nil, err
	}
	defer q.mu.Unlock()

	now := q.now()
	r := table.Record{Payload: payload, InvisibleUntil: now, CreatedAt: now}
	if err := q.store.Insert(ctx, &r); err != nil {
		return nil, storageErr("insert", err)
	}
	q.observe(OpEnqueue, 1)
	return itemFromRecord(r, q.owner), nil
}

// next returns the smallest-id row eligible at now. Callers hold q.mu.
func (q *Queue) next(ctx context.Context, now time.Time) (table.Record, bool, error) {
	rs, err := q.store.Scan(ctx, table.Filter{VisibleAt: now, Tombstones: q.selector, Limit: 1})
	if err != nil {
		return table.Record{}, false, storageErr("scan", err)
	}
	if len(rs) == 0 {
		return table.Record{}, false, nil
	}
	return rs[0], true, nil
}

// Dequeue picks the oldest visible item. By default the item is removed;
// WithRemove(false) hides it until now plus the invisible timeout instead.
// An empty queue yields (nil, false, nil).
func (q *Queue) Dequeue(ctx context.Context, opts ...DequeueOption) (*Item, bool, error) {
	o := dequeueOptions{remove: true, timeout: q.timeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout < 0 {
		o.timeout = 0
	}
	if err := q.lock(); err != nil {
		return nil, false, err
	}
	defer q.mu.Unlock()

	now := q.now()
	r, ok, err := q.next(ctx, now)
	if err != nil || !ok {
		return nil, false, err
	}
	if o.remove {
		if err := q.removeNext(ctx, &r, now); err != nil {
			return nil, false, err
		}
	} else {
		r.InvisibleUntil = now.Add(o.timeout)
		if err := q.store.Update(ctx, r); err != nil {
			return nil, false, storageErr("update", err)
		}
	}
	q.observe(OpDequeue, 1)
	return itemFromRecord(r, q.owner), true, nil
}

func (q *Queue) hardDelete(ctx context.Context, r *table.Record, _ time.Time) error {
	return storageErr("delete", q.store.Delete(ctx, r.ID))
}

// Peek returns the item Dequeue would pick without changing it.
func (q *Queue) Peek(ctx context.Context) (*Item, bool, error) {
	if err := q.lock(); err != nil {
		return nil, false, err
	}
	defer q.mu.Unlock()

	r, ok, err := q.next(ctx, q.now())
	if err != nil || !ok {
		return nil, false, err
	}
	return itemFromRecord(r, q.owner), true, nil
}

// Invalidate hides item until now plus timeout; a timeout <= 0 means the
// queue's default invisible timeout. A deadline already further out is
// kept. Invalidating an item that is no longer stored is a no-op.
func (q *Queue) Invalidate(ctx context.Context, item *Item, timeout time.Duration) error {
	if err := q.checkOwner(item); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = q.timeout
	}
	if err := q.lock(); err != nil {
		return err
	}
	defer q.mu.Unlock()

	r, err := q.store.Get(ctx, item.ID)
	if errors.Is(err, table.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storageErr("get", err)
	}
	if until := q.now().Add(timeout); until.After(r.InvisibleUntil) {
		r.InvisibleUntil = until
		if err := q.store.Update(ctx, r); err != nil {
			return storageErr("update", err)
		}
	}
	item.InvisibleUntil = r.InvisibleUntil
	q.observe(OpInvalidate, 1)
	return nil
}

// Delete permanently removes item regardless of its visibility. Deleting an
// item that is already gone is a no-op.
func (q *Queue) Delete(ctx context.Context, item *Item) error {
	if err := q.checkOwner(item); err != nil {
		return err
	}
	if err := q.lock(); err != nil {
		return err
	}
	defer q.mu.Unlock()

	if err := q.store.Delete(ctx, item.ID); err != nil {
		return storageErr("delete", err)
	}
	q.observe(OpDelete, 1)
	return nil
}

// Find returns the stored item with id, whatever its state.
func (q *Queue) Find(ctx context.Context, id uint64) (*Item, bool, error) {
	if err := q.lock(); err != nil {
		return nil, false, err
	}
	defer q.mu.Unlock()

	r, err := q.store.Get(ctx, id)
	if errors.Is(err, table.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("get", err)
	}
	return itemFromRecord(r, q.owner), true, nil
}

// Len returns the number of items Dequeue could eventually deliver,
// visible or not.
func (q *Queue) Len(ctx context.Context) (int, error) {
	if err := q.lock(); err != nil {
		return 0, err
	}
	defer q.mu.Unlock()

	n, err := q.store.Count(ctx, table.Filter{Tombstones: q.selector})
	return n, storageErr("count", err)
}

// Stats is a point-in-time breakdown of a queue's rows.
type Stats struct {
	Total     int
	Visible   int
	Invisible int
	Deleted   int
}

// Stats counts rows by state.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	if err := q.lock(); err != nil {
		return Stats{}, err
	}
	defer q.mu.Unlock()

	var s Stats
	var err error
	if s.Total, err = q.store.Count(ctx, table.Filter{}); err != nil {
		return Stats{}, storageErr("count", err)
	}
	if s.Visible, err = q.store.Count(ctx, table.Filter{VisibleAt: q.now(), Tombstones: q.selector}); err != nil {
		return Stats{}, storageErr("count", err)
	}
	if s.Deleted, err = q.store.Count(ctx, table.Filter{Tombstones: table.DeletedRows}); err != nil {
		return Stats{}, storageErr("count", err)
	}
	s.Invisible = s.Total - s.Deleted - s.Visible
	return s, nil
}

// Decode unmarshals item's payload into v with the queue's codec.
func (q *Queue) Decode(item *Item, v any) error {
	if item == nil {
		return ErrQueueMismatch
	}
	if err := q.codec.Unmarshal(item.Payload, v); err != nil {
		return encodingErr(err)
	}
	return nil
}

// Decoder is implemented by Queue and FilterQueue.
type Decoder interface {
	Decode(item *Item, v any) error
}

// As decodes item into a fresh T.
func As[T any](d Decoder, item *Item) (T, error) {
	var v T
	err := d.Decode(item, &v)
	return v, err
}

// Close closes the store and runs the release callback around it. It is
// safe to call more than once; only the first call has an effect.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	var done func()
	if q.release != nil {
		done = q.release()
		q.release = nil
	}
	q.closed = true
	err := q.store.Close()
	q.mu.Unlock()

	if done != nil {
		done()
	}
	if err != nil {
		q.logger.Warn("queue close failed", log.Err(err))
		return storageErr("close", err)
	}
	q.logger.Debug("queue closed")
	return nil
}
