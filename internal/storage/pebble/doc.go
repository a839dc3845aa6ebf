// Package pebblestore provides a thin wrapper around Pebble with fsync policy,
// batches, prefix scans, and minimal metrics hooks. Each queue owns one
// database directory; Remove wipes a directory for a forced reset.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data/queue/jobs",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
//
//	_ = db.ScanPrefix([]byte("item/"), func(k, v []byte) (bool, error) { return true, nil })
package pebblestore
