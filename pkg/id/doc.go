// Package id allocates queue item identifiers.
//
// Ids are uint64 values that only ever grow within one storage location. The
// counter Sequence is the default; the clock Sequence derives ids from a
// nanosecond timestamp for stores that want ids to double as creation time.
// Both encode big-endian so byte-wise key order equals numeric order.
//
// Usage
//
//	seq := id.NewSequence(lastPersisted)
//	n := seq.Next()
//	key := id.Append([]byte("item/"), n)
package id
