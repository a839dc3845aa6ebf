// Package table defines the durable record store behind a queue and its
// backends.
//
// A Store is one id-ordered collection of queue records bound to one storage
// location. Backends map a (kind, name) pair to a location, open stores, and
// remove a location's files for forced resets:
//
//   - PebbleBackend keeps one Pebble directory per queue. Records are framed
//     with a CRC32C trailer under item/{id} keys; the last issued id lives
//     under meta/last_id so ids survive restarts.
//   - SQLiteBackend keeps one SQLite file per queue in a queue_items table
//     through gorm.
//
// Predicates are expressed as a Filter (visibility cut-off, tombstone state,
// created-at lower bound, limit). Stores are not safe for concurrent use; the
// queue engine serializes access.
package table
