// Package runtime wires configuration, storage backends, metrics and the
// queue registries into a single-process pqueue instance.
//
// Example:
//
//	cfg := config.Default()
//	cfg.DataDir = "./data"
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	q, _ := rt.Queues().Create(ctx, "orders")
//	_, _ = q.Enqueue(ctx, "hello")
package runtime
