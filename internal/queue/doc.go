// Package queue implements durable visibility-timeout queues over a table
// store.
//
// An item is visible while its InvisibleUntil is at or before the queue
// clock. Dequeue picks the smallest-id visible item and either removes it or,
// with WithRemove(false), pushes InvisibleUntil forward so other consumers
// skip it until the window elapses. Items that become visible again keep
// their id, so they are redelivered ahead of newer ones.
//
// FilterQueue adds tombstones: deleted items stay in storage, excluded from
// delivery, until PurgeDeletedItems removes them.
//
// Queues are safe for concurrent use within one process. Opening the same
// storage location from several processes is not supported.
package queue
