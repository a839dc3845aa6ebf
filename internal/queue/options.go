package queue

import (
	"time"

	"github.com/rzbill/pqueue/internal/codec"
	"github.com/rzbill/pqueue/pkg/log"
)

// DefaultInvisibleTimeout is the window applied by Dequeue(WithRemove(false))
// when no WithInvisibleTimeout is given, and by Invalidate for a
// non-positive timeout.
const DefaultInvisibleTimeout = 30 * time.Second

// Observer receives one call per successful mutating operation. The metrics
// collector implements it.
type Observer interface {
	ObserveOp(kind, queue, op string, n int)
}

// Operation names passed to Observer.
const (
	OpEnqueue    = "enqueue"
	OpDequeue    = "dequeue"
	OpInvalidate = "invalidate"
	OpDelete     = "delete"
	OpSoftDelete = "soft_delete"
	OpPurge      = "purge"
)

type options struct {
	codec   codec.Codec
	now     func() time.Time
	logger  log.Logger
	obs     Observer
	timeout time.Duration
	release func() func()
}

func defaultOptions() options {
	return options{
		codec:   codec.Gob{},
		now:     time.Now,
		timeout: DefaultInvisibleTimeout,
	}
}

// Option configures a queue at open time.
type Option func(*options)

// WithCodec sets the payload codec. The default is gob.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithClock replaces time.Now for visibility decisions and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the parent logger; the queue adds its component and name.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver reports each successful operation to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.obs = obs }
}

// WithDefaultInvisibleTimeout changes the window used when a call does not
// pass one.
func WithDefaultInvisibleTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRelease registers a callback run once when Close starts, before the
// store is closed. The func it returns, if any, runs after the store is
// closed. Registries use the pair to hide the name while disposal is in
// flight and to drop it afterwards.
func WithRelease(fn func() (done func())) Option {
	return func(o *options) { o.release = fn }
}

type dequeueOptions struct {
	remove  bool
	timeout time.Duration
}

// DequeueOption configures a single Dequeue call.
type DequeueOption func(*dequeueOptions)

// WithRemove controls whether Dequeue removes the item (default) or only
// hides it for the invisible timeout.
func WithRemove(remove bool) DequeueOption {
	return func(o *dequeueOptions) { o.remove = remove }
}

// WithInvisibleTimeout sets the window applied when the item is kept.
func WithInvisibleTimeout(d time.Duration) DequeueOption {
	return func(o *dequeueOptions) { o.timeout = d }
}

type deleteOptions struct {
	removeFromStore bool
}

// DeleteOption configures FilterQueue.Delete.
type DeleteOption func(*deleteOptions)

// WithRemoveFromStore makes a filter queue delete the row instead of
// tombstoning it.
func WithRemoveFromStore(remove bool) DeleteOption {
	return func(o *deleteOptions) { o.removeFromStore = remove }
}
