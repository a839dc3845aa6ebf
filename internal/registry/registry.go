package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/rzbill/pqueue/internal/queue"
	"github.com/rzbill/pqueue/pkg/log"
)

// DefaultName is used by Default and CreateNewDefault unless overridden.
const DefaultName = "default"

// DefaultNamePattern accepts names that are safe as a single path element.
var DefaultNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]{0,127}$`)

// Handle is what a registry keeps per name.
type Handle interface {
	Name() string
	Close() error
}

// Release is handed to a Factory. The engine calls it once when disposal
// starts and calls the returned done func once its storage is closed. In
// between, the name is hidden from Get and Names, and Create for it waits.
type Release func() (done func())

// Factory builds the engine for name. When reset is true the factory must
// wipe existing storage first.
type Factory[Q Handle] func(ctx context.Context, name string, reset bool, release Release) (Q, error)

type entry[Q Handle] struct {
	q     Q
	err   error
	ready chan struct{}
	// closing is set under the registry mutex when disposal starts and
	// closed once the engine's storage is released.
	closing chan struct{}
}

// Registry maps names to live engines, one per name. Its mutex only guards
// the map; engines are built and closed outside of it. A pending entry makes
// concurrent callers for the same name wait for the single construction.
type Registry[Q Handle] struct {
	factory     Factory[Q]
	defaultName string
	pattern     *regexp.Regexp
	logger      log.Logger

	mu      sync.Mutex
	entries map[string]*entry[Q]
}

// Option configures a Registry.
type Option func(*settings)

type settings struct {
	defaultName string
	pattern     *regexp.Regexp
	logger      log.Logger
}

// WithDefaultName sets the name used by Default and CreateNewDefault.
func WithDefaultName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.defaultName = name
		}
	}
}

// WithNamePattern replaces DefaultNamePattern.
func WithNamePattern(re *regexp.Regexp) Option {
	return func(s *settings) {
		if re != nil {
			s.pattern = re
		}
	}
}

// WithLogger sets the parent logger.
func WithLogger(l log.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// New returns an empty registry backed by factory.
func New[Q Handle](factory Factory[Q], opts ...Option) *Registry[Q] {
	s := settings{defaultName: DefaultName, pattern: DefaultNamePattern}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = log.NewNopLogger()
	}
	return &Registry[Q]{
		factory:     factory,
		defaultName: s.defaultName,
		pattern:     s.pattern,
		logger:      s.logger.WithComponent("registry"),
		entries:     make(map[string]*entry[Q]),
	}
}

// DefaultName returns the name used by Default.
func (r *Registry[Q]) DefaultName() string { return r.defaultName }

// Create returns the live engine for name, building it on first use.
func (r *Registry[Q]) Create(ctx context.Context, name string) (Q, error) {
	return r.create(ctx, name, false, false)
}

// CreateNew builds a new engine for name and fails with
// queue.ErrAlreadyExists if one is already registered.
func (r *Registry[Q]) CreateNew(ctx context.Context, name string) (Q, error) {
	return r.create(ctx, name, true, false)
}

// CreateNewReset strictly creates the engine for name after wiping its
// storage.
func (r *Registry[Q]) CreateNewReset(ctx context.Context, name string) (Q, error) {
	return r.create(ctx, name, true, true)
}

// CreateNewDefault strictly creates the default engine after wiping its
// storage.
func (r *Registry[Q]) CreateNewDefault(ctx context.Context) (Q, error) {
	return r.CreateNewReset(ctx, r.defaultName)
}

// Default returns the engine for the default name, building it on first use.
func (r *Registry[Q]) Default(ctx context.Context) (Q, error) {
	return r.create(ctx, r.defaultName, false, false)
}

func (r *Registry[Q]) validate(name string) error {
	if !r.pattern.MatchString(name) {
		return fmt.Errorf("%w: %q", queue.ErrInvalidName, name)
	}
	return nil
}

func (r *Registry[Q]) create(ctx context.Context, name string, strict, reset bool) (Q, error) {
	var zero Q
	if err := r.validate(name); err != nil {
		return zero, err
	}

	for {
		r.mu.Lock()
		e, ok := r.entries[name]
		if !ok {
			break
		}
		closing := e.closing
		r.mu.Unlock()

		if closing != nil {
			// the old engine still holds its storage
			select {
			case <-closing:
				continue
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
		if strict {
			return zero, fmt.Errorf("%w: %q", queue.ErrAlreadyExists, name)
		}
		select {
		case <-e.ready:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		return e.q, e.err
	}
	e := &entry[Q]{ready: make(chan struct{})}
	r.entries[name] = e
	r.mu.Unlock()

	q, err := r.factory(ctx, name, reset, func() func() { return r.release(name, e) })
	e.q, e.err = q, err
	if err != nil {
		r.drop(name, e)
		r.logger.Warn("queue create failed", log.Queue(name), log.Err(err))
	} else {
		r.logger.Debug("queue created", log.Queue(name), log.Bool("reset", reset))
	}
	close(e.ready)
	return q, err
}

// release marks e as closing and returns the func that drops it. A late or
// repeated release from an engine that is no longer registered is a no-op.
func (r *Registry[Q]) release(name string, e *entry[Q]) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[name]; !ok || cur != e || e.closing != nil {
		return func() {}
	}
	e.closing = make(chan struct{})
	return func() {
		r.drop(name, e)
		close(e.closing)
		r.logger.Debug("queue released", log.Queue(name))
	}
}

// drop removes name only while it still points at e.
func (r *Registry[Q]) drop(name string, e *entry[Q]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[name]; ok && cur == e {
		delete(r.entries, name)
	}
}

// Get returns the live engine for name or queue.ErrNotFound.
func (r *Registry[Q]) Get(name string) (Q, error) {
	var zero Q
	r.mu.Lock()
	e, ok := r.entries[name]
	if ok && e.closing != nil {
		ok = false
	}
	r.mu.Unlock()
	if !ok {
		return zero, fmt.Errorf("%w: %q", queue.ErrNotFound, name)
	}
	<-e.ready
	if e.err != nil {
		return zero, fmt.Errorf("%w: %q", queue.ErrNotFound, name)
	}
	return e.q, nil
}

// Names lists live engine names in sorted order.
func (r *Registry[Q]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for name, e := range r.entries {
		if e.closing != nil {
			continue
		}
		select {
		case <-e.ready:
			if e.err == nil {
				out = append(out, name)
			}
		default:
		}
	}
	sort.Strings(out)
	return out
}

// CloseAll closes every live engine, waits for disposals already in flight
// and returns the combined close errors.
func (r *Registry[Q]) CloseAll() error {
	r.mu.Lock()
	live := make([]*entry[Q], 0, len(r.entries))
	var closing []chan struct{}
	for _, e := range r.entries {
		if e.closing != nil {
			closing = append(closing, e.closing)
			continue
		}
		live = append(live, e)
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range live {
		<-e.ready
		if e.err != nil {
			continue
		}
		if err := e.q.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range closing {
		<-c
	}
	return errors.Join(errs...)
}
