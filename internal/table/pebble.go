package table

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	pebblestore "github.com/rzbill/pqueue/internal/storage/pebble"
	"github.com/rzbill/pqueue/pkg/id"
	logpkg "github.com/rzbill/pqueue/pkg/log"
)

var (
	itemPrefix = []byte("item/")
	lastIDKey  = []byte("meta/last_id")
)

func itemKey(n uint64) []byte {
	return id.Append(append(make([]byte, 0, len(itemPrefix)+id.Size), itemPrefix...), n)
}

// PebbleBackend stores each queue in its own Pebble directory.
type PebbleBackend struct {
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Metrics       pebblestore.MetricsHook
	Logger        logpkg.Logger
	// ClockIDs derives item ids from the wall clock instead of a counter.
	ClockIDs bool
}

func (b *PebbleBackend) Name() string { return "pebble" }

func (b *PebbleBackend) Location(dataDir, kind, name string) string {
	return filepath.Join(dataDir, kind, name)
}

func (b *PebbleBackend) Open(_ context.Context, location string) (Store, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       location,
		Fsync:         b.Fsync,
		FsyncInterval: b.FsyncInterval,
		Metrics:       b.Metrics,
		Logger:        b.Logger,
	})
	if err != nil {
		return nil, err
	}
	var last uint64
	if v, err := db.Get(lastIDKey); err == nil {
		if last, err = id.Decode(v); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: last id", ErrCorrupt)
		}
	} else if !errors.Is(err, pebblestore.ErrNotFound) {
		_ = db.Close()
		return nil, err
	}
	seq := id.NewSequence(last)
	if b.ClockIDs {
		seq = id.NewClockSequence(last)
	}
	if b.Logger != nil {
		b.Logger.Debug("table opened", logpkg.Str("location", location), logpkg.Uint64("last_id", seq.Last()))
	}
	return &pebbleStore{db: db, seq: seq}, nil
}

func (b *PebbleBackend) Remove(location string) error {
	return pebblestore.Remove(location)
}

type pebbleStore struct {
	db     *pebblestore.DB
	seq    *id.Sequence
	closed bool
}

func (s *pebbleStore) Insert(ctx context.Context, r *Record) error {
	if s.closed {
		return ErrClosed
	}
	n := s.seq.Next()
	r.ID = n
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(itemKey(n), encodeRecord(r), nil); err != nil {
		s.seq.Rollback(n)
		return err
	}
	if err := b.Set(lastIDKey, id.Append(nil, n), nil); err != nil {
		s.seq.Rollback(n)
		return err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		s.seq.Rollback(n)
		return err
	}
	return nil
}

func (s *pebbleStore) Get(_ context.Context, n uint64) (Record, error) {
	if s.closed {
		return Record{}, ErrClosed
	}
	v, err := s.db.Get(itemKey(n))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(n, v)
}

func (s *pebbleStore) Update(ctx context.Context, r Record) error {
	if _, err := s.Get(ctx, r.ID); err != nil {
		return err
	}
	return s.db.Set(ctx, itemKey(r.ID), encodeRecord(&r))
}

func (s *pebbleStore) Delete(ctx context.Context, n uint64) error {
	if s.closed {
		return ErrClosed
	}
	return s.db.Delete(ctx, itemKey(n))
}

// scan decodes rows in id order and calls fn for every row matching f.
func (s *pebbleStore) scan(f Filter, fn func(key []byte, r Record) bool) error {
	if s.closed {
		return ErrClosed
	}
	return s.db.ScanPrefix(itemPrefix, func(k, v []byte) (bool, error) {
		n, err := id.Decode(k)
		if err != nil {
			return false, err
		}
		r, err := decodeRecord(n, v)
		if err != nil {
			return false, fmt.Errorf("item %d: %w", n, err)
		}
		if !f.Match(&r) {
			return true, nil
		}
		return fn(k, r), nil
	})
}

func (s *pebbleStore) Scan(_ context.Context, f Filter) ([]Record, error) {
	var out []Record
	err := s.scan(f, func(_ []byte, r Record) bool {
		out = append(out, r)
		return f.Limit <= 0 || len(out) < f.Limit
	})
	return out, err
}

func (s *pebbleStore) Count(_ context.Context, f Filter) (int, error) {
	n := 0
	err := s.scan(f, func([]byte, Record) bool {
		n++
		return true
	})
	return n, err
}

func (s *pebbleStore) DeleteWhere(ctx context.Context, f Filter) (int, error) {
	var keys [][]byte
	err := s.scan(f, func(k []byte, _ Record) bool {
		keys = append(keys, append([]byte(nil), k...))
		return true
	})
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, k := range keys {
		if err := b.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	// compaction hint after large purge
	if len(keys) >= 4096 {
		_ = s.db.CompactRange(itemPrefix, []byte("item0"))
	}
	return len(keys), nil
}

func (s *pebbleStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
