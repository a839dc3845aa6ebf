// Package registry keeps one live engine per name within a process.
//
// Create is get-or-create, CreateNew is strict and fails with
// queue.ErrAlreadyExists, and CreateNewReset and CreateNewDefault
// additionally wipe the name's storage. Closing an engine hides its entry
// until the engine's storage is released and then removes it; Create for
// that name waits out the gap and then builds a fresh engine over the same
// storage.
package registry
