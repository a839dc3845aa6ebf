package table

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
	"time"
)

// Frame: version(1) | flags(1) | invisible_until(8) | created_at(8) | deleted_at(8) | payload | crc32c

const (
	frameVersion  = 1
	frameHeader   = 1 + 1 + 8 + 8 + 8
	frameTrailer  = 4
	flagTombstone = 1 << 0
	zeroTimeNanos = math.MinInt64
)

// ErrCorrupt is returned when a stored frame fails validation.
var ErrCorrupt = errors.New("table: corrupt record")

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeRecord(r *Record) []byte {
	out := make([]byte, frameHeader, frameHeader+len(r.Payload)+frameTrailer)
	out[0] = frameVersion
	var deleted int64
	if r.DeletedAt != nil {
		out[1] |= flagTombstone
		deleted = timeToNanos(*r.DeletedAt)
	}
	binary.BigEndian.PutUint64(out[2:10], uint64(timeToNanos(r.InvisibleUntil)))
	binary.BigEndian.PutUint64(out[10:18], uint64(timeToNanos(r.CreatedAt)))
	binary.BigEndian.PutUint64(out[18:26], uint64(deleted))
	out = append(out, r.Payload...)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc32.Checksum(out, castagnoli))
	return append(out, cb[:]...)
}

func decodeRecord(id uint64, b []byte) (Record, error) {
	if len(b) < frameHeader+frameTrailer || b[0] != frameVersion {
		return Record{}, ErrCorrupt
	}
	body := b[:len(b)-frameTrailer]
	if crc32.Checksum(body, castagnoli) != binary.BigEndian.Uint32(b[len(b)-frameTrailer:]) {
		return Record{}, ErrCorrupt
	}
	r := Record{
		ID:             id,
		InvisibleUntil: nanosToTime(int64(binary.BigEndian.Uint64(body[2:10]))),
		CreatedAt:      nanosToTime(int64(binary.BigEndian.Uint64(body[10:18]))),
		Payload:        append([]byte(nil), body[frameHeader:]...),
	}
	if body[1]&flagTombstone != 0 {
		t := nanosToTime(int64(binary.BigEndian.Uint64(body[18:26])))
		r.DeletedAt = &t
	}
	return r, nil
}

func timeToNanos(t time.Time) int64 {
	if t.IsZero() {
		return zeroTimeNanos
	}
	return t.UnixNano()
}

func nanosToTime(n int64) time.Time {
	if n == zeroTimeNanos {
		return time.Time{}
	}
	return time.Unix(0, n)
}
