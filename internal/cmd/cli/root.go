package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	cfgpkg "github.com/rzbill/pqueue/internal/config"
	"github.com/rzbill/pqueue/internal/queue"
	"github.com/rzbill/pqueue/internal/runtime"
	"github.com/rzbill/pqueue/pkg/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewRoot constructs the root Cobra command for pqueue.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "pqueue",
		Short: "Durable local queues with visibility timeouts",
		Long: `pqueue operates on queues stored under a local data directory.

Item lifecycle:
  Visible → [dequeue --keep] → Invisible → (timeout elapses) → Visible
  Visible → [dequeue] → removed (plain queue) or tombstoned (--filter)

Filter queues keep tombstoned items until "purge".`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (.json, .yaml)")
	pf.String("env-file", "", "Load variables from this .env file before reading PQUEUE_* env")
	pf.String("data-dir", "", "Data directory (overrides config)")
	pf.String("backend", "", "Storage backend: pebble|sqlite (overrides config)")
	pf.String("log-level", "", "Log level: debug|info|warn|error (overrides config)")
	pf.StringP("queue", "q", "", "Queue name (default from config)")
	pf.Bool("filter", false, "Operate on the filter (soft-delete) queue of that name")

	root.AddCommand(
		newEnqueueCommand(),
		newDequeueCommand(),
		newPeekCommand(),
		newInvalidateCommand(),
		newDeleteCommand(),
		newListCommand(),
		newPurgeCommand(),
		newResetCommand(),
		newStatsCommand(),
	)
	return root
}

// loadConfig layers .env, config file, PQUEUE_* env and flags, in that order.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := cfgpkg.LoadDotEnv(envFile); err != nil {
		return cfgpkg.Config{}, fmt.Errorf("env file: %w", err)
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	if err := cfgpkg.FromEnv(&cfg); err != nil {
		return cfgpkg.Config{}, err
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.Backend = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

// target is the queue a command acts on. filter is nil for plain queues.
type target struct {
	q      *queue.Queue
	filter *queue.FilterQueue
}

func (t target) requireFilter(op string) error {
	if t.filter == nil {
		return fmt.Errorf("%s requires --filter", op)
	}
	return nil
}

// withTarget opens a runtime, resolves the selected queue, runs fn and
// closes everything.
func withTarget(cmd *cobra.Command, fn func(ctx context.Context, t target) error) error {
	return withRuntime(cmd, func(ctx context.Context, rt *runtime.Runtime) error {
		name := queueName(cmd, rt)
		useFilter, _ := cmd.Flags().GetBool("filter")
		if useFilter {
			f, err := rt.Filters().Create(ctx, name)
			if err != nil {
				return err
			}
			return fn(ctx, target{q: f.Queue, filter: f})
		}
		q, err := rt.Queues().Create(ctx, name)
		if err != nil {
			return err
		}
		return fn(ctx, target{q: q})
	})
}

// queueName returns the --queue flag or the configured default name.
func queueName(cmd *cobra.Command, rt *runtime.Runtime) string {
	if name, _ := cmd.Flags().GetString("queue"); name != "" {
		return name
	}
	return rt.Config().DefaultQueueName
}

func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime.Runtime) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	if err != nil {
		return err
	}
	log.RedirectStdLog(rt.Logger())
	defer func() {
		if cerr := rt.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(cmd.Context(), rt)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// itemView renders an item with its value decoded as a string when the
// payload allows it.
func itemView(q *queue.Queue, it *queue.Item) map[string]any {
	out := map[string]any{
		"id":              it.ID,
		"invisible_until": it.InvisibleUntil.Format(time.RFC3339Nano),
		"created_at":      it.CreatedAt.Format(time.RFC3339Nano),
	}
	if v, err := queue.As[string](q, it); err == nil {
		out["value"] = v
	} else {
		out["payload_b64"] = it.Payload
	}
	if it.DeletedAt != nil {
		out["deleted_at"] = it.DeletedAt.Format(time.RFC3339Nano)
	}
	return out
}

func itemViews(q *queue.Queue, items []*queue.Item) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, itemView(q, it))
	}
	return out
}
