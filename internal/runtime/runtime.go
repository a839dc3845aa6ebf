package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzbill/pqueue/internal/codec"
	cfgpkg "github.com/rzbill/pqueue/internal/config"
	"github.com/rzbill/pqueue/internal/metrics"
	"github.com/rzbill/pqueue/internal/queue"
	"github.com/rzbill/pqueue/internal/registry"
	pebblestore "github.com/rzbill/pqueue/internal/storage/pebble"
	"github.com/rzbill/pqueue/internal/table"
	"github.com/rzbill/pqueue/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Logger overrides the logger built from Config.Log.
	Logger log.Logger
	// Registerer receives the metrics collector. Nil skips registration.
	Registerer prometheus.Registerer
	// Clock replaces time.Now inside every queue.
	Clock func() time.Time
}

// Runtime wires storage, config, metrics and the two queue registries for a
// single process.
type Runtime struct {
	config     cfgpkg.Config
	backend    table.Backend
	codec      codec.Codec
	base       log.Logger
	logger     log.Logger
	ownsLogger bool
	metrics    *metrics.Collector
	clock      func() time.Time

	queues  *registry.Registry[*queue.Queue]
	filters *registry.Registry[*queue.FilterQueue]
}

// Open validates the configuration and returns a Runtime. Queues are opened
// lazily through Queues() and Filters().
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, owns := opts.Logger, false
	if logger == nil {
		l, err := log.ApplyConfig(cfg.Log.Logger())
		if err != nil {
			return nil, err
		}
		logger, owns = l, true
	}

	c, err := buildCodec(cfg)
	if err != nil {
		return nil, err
	}
	collector := metrics.NewCollector("pqueue")
	if opts.Registerer != nil {
		if err := opts.Registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("runtime: register metrics: %w", err)
		}
	}
	backend, err := buildBackend(cfg, collector, logger)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(cfg.QueueNameRegex)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		config:     cfg,
		backend:    backend,
		codec:      c,
		base:       logger,
		logger:     logger.WithComponent("runtime"),
		ownsLogger: owns,
		metrics:    collector,
		clock:      opts.Clock,
	}
	regOpts := []registry.Option{
		registry.WithDefaultName(cfg.DefaultQueueName),
		registry.WithNamePattern(re),
		registry.WithLogger(logger),
	}
	r.queues = registry.New(r.openQueue, regOpts...)
	r.filters = registry.New(r.openFilter, regOpts...)

	r.logger.Info("runtime opened",
		log.Str("data_dir", cfg.DataDir),
		log.Str("backend", backend.Name()),
		log.Str("codec", c.Name()),
	)
	return r, nil
}

func buildCodec(cfg cfgpkg.Config) (codec.Codec, error) {
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	algo, err := codec.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return codec.Compress(c, algo, cfg.CompressionThreshold), nil
}

func buildBackend(cfg cfgpkg.Config, m pebblestore.MetricsHook, logger log.Logger) (table.Backend, error) {
	switch cfg.Backend {
	case "sqlite":
		return &table.SQLiteBackend{BusyTimeout: cfg.SQLiteBusyTimeout.Std()}, nil
	case "pebble", "":
		mode, err := pebblestore.ParseFsyncMode(cfg.Fsync)
		if err != nil {
			return nil, err
		}
		return &table.PebbleBackend{
			Fsync:         mode,
			FsyncInterval: cfg.FsyncInterval.Std(),
			Metrics:       m,
			Logger:        logger.WithComponent("pebble"),
			ClockIDs:      cfg.ClockIDs,
		}, nil
	default:
		return nil, fmt.Errorf("runtime: unknown backend %q", cfg.Backend)
	}
}

// openStore opens the table for kind/name, wiping it first when reset is set.
func (r *Runtime) openStore(ctx context.Context, kind, name string, reset bool) (table.Store, error) {
	loc := r.backend.Location(r.config.DataDir, kind, name)
	if reset {
		if err := r.backend.Remove(loc); err != nil {
			return nil, fmt.Errorf("runtime: reset %s: %w", loc, err)
		}
		r.logger.Info("queue storage reset", log.Queue(name), log.Str("kind", kind))
	}
	return r.backend.Open(ctx, loc)
}

func (r *Runtime) queueOptions(release registry.Release) []queue.Option {
	opts := []queue.Option{
		queue.WithCodec(r.codec),
		queue.WithLogger(r.base),
		queue.WithObserver(r.metrics),
		queue.WithDefaultInvisibleTimeout(r.config.DefaultInvisibleTimeout.Std()),
		queue.WithRelease(release),
	}
	if r.clock != nil {
		opts = append(opts, queue.WithClock(r.clock))
	}
	return opts
}

func (r *Runtime) openQueue(ctx context.Context, name string, reset bool, release registry.Release) (*queue.Queue, error) {
	store, err := r.openStore(ctx, queue.KindQueue, name, reset)
	if err != nil {
		return nil, err
	}
	q, err := queue.Open(ctx, name, store, r.queueOptions(release)...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return q, nil
}

func (r *Runtime) openFilter(ctx context.Context, name string, reset bool, release registry.Release) (*queue.FilterQueue, error) {
	store, err := r.openStore(ctx, queue.KindFilter, name, reset)
	if err != nil {
		return nil, err
	}
	f, err := queue.OpenFilter(ctx, name, store, r.queueOptions(release)...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return f, nil
}

// Queues returns the registry of plain queues.
func (r *Runtime) Queues() *registry.Registry[*queue.Queue] { return r.queues }

// Filters returns the registry of filter queues.
func (r *Runtime) Filters() *registry.Registry[*queue.FilterQueue] { return r.filters }

// Metrics returns the collector shared by every queue and store.
func (r *Runtime) Metrics() *metrics.Collector { return r.metrics }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime logger.
func (r *Runtime) Logger() log.Logger { return r.logger }

// CheckHealth verifies the data directory is usable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.config.DataDir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(r.config.DataDir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// Close closes every open queue in both registries.
func (r *Runtime) Close() error {
	err := errors.Join(r.queues.CloseAll(), r.filters.CloseAll())
	r.logger.Info("runtime closed")
	if c, ok := r.base.(interface{ Close() error }); ok && r.ownsLogger {
		err = errors.Join(err, c.Close())
	}
	return err
}
