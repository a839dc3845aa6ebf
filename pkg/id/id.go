package id

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

// Size is the encoded width of an id in bytes.
const Size = 8

// ErrShortKey is returned by Decode when fewer than Size bytes are available.
var ErrShortKey = errors.New("id: short key")

// Sequence hands out strictly increasing uint64 ids. It is restored from the
// last persisted id when a store is reopened so ids are never reused.
type Sequence struct {
	mu    sync.Mutex
	last  uint64
	clock bool
}

// NewSequence returns a counter sequence starting after last.
func NewSequence(last uint64) *Sequence { return &Sequence{last: last} }

// NewClockSequence returns a sequence whose ids are derived from the wall
// clock in nanoseconds, bumped by one when the clock stalls or regresses.
func NewClockSequence(last uint64) *Sequence { return &Sequence{last: last, clock: true} }

// NowNs returns current time in nanoseconds since Unix epoch.
var NowNs = func() int64 { return time.Now().UnixNano() }

// Next returns the next id.
func (s *Sequence) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.last + 1
	if s.clock {
		if ns := NowNs(); ns > 0 && uint64(ns) > next {
			next = uint64(ns)
		}
	}
	s.last = next
	return next
}

// Last returns the most recently issued (or restored) id.
func (s *Sequence) Last() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Rollback undoes the most recent Next when the write carrying it failed.
// It is a no-op if another id has been issued since.
func (s *Sequence) Rollback(issued uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == issued && issued > 0 {
		s.last = issued - 1
	}
}

// Append writes v big-endian to dst so byte order matches numeric order.
func Append(dst []byte, v uint64) []byte {
	var b [Size]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// Decode reads the trailing Size bytes of key as an id.
func Decode(key []byte) (uint64, error) {
	if len(key) < Size {
		return 0, ErrShortKey
	}
	return binary.BigEndian.Uint64(key[len(key)-Size:]), nil
}
