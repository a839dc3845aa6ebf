package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/pqueue/internal/queue"
	"github.com/rzbill/pqueue/internal/runtime"
)

// newEnqueueCommand constructs the `enqueue` subcommand.
func newEnqueueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <value>...",
		Short: "Enqueue one item per argument",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTarget(cmd, func(ctx context.Context, t target) error {
				ids := make([]uint64, 0, len(args))
				for _, v := range args {
					it, err := t.q.Enqueue(ctx, v)
					if err != nil {
						return err
					}
					ids = append(ids, it.ID)
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "OK", "ids": ids})
			})
		},
	}
}

// newDequeueCommand constructs the `dequeue` subcommand.
func newDequeueCommand() *cobra.Command {
	dequeueCmd := &cobra.Command{
		Use:   "dequeue",
		Short: "Take the oldest visible item",
		Long: `Take the oldest visible item. By default the item is removed (tombstoned
on a filter queue). With --keep it stays stored and is hidden for --timeout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keep, _ := cmd.Flags().GetBool("keep")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			return withTarget(cmd, func(ctx context.Context, t target) error {
				opts := []queue.DequeueOption{queue.WithRemove(!keep)}
				if cmd.Flags().Changed("timeout") {
					opts = append(opts, queue.WithInvisibleTimeout(timeout))
				}
				it, ok, err := t.q.Dequeue(ctx, opts...)
				if err != nil {
					return err
				}
				if !ok {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "EMPTY"})
				}
				return writeJSON(cmd.OutOrStdout(), itemView(t.q, it))
			})
		},
	}
	dequeueCmd.Flags().Bool("keep", false, "Keep the item and hide it for --timeout instead of removing it")
	dequeueCmd.Flags().Duration("timeout", queue.DefaultInvisibleTimeout, "Invisibility window used with --keep")
	return dequeueCmd
}

// newPeekCommand constructs the `peek` subcommand.
func newPeekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "peek",
		Short: "Show the item dequeue would take, without taking it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTarget(cmd, func(ctx context.Context, t target) error {
				it, ok, err := t.q.Peek(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "EMPTY"})
				}
				return writeJSON(cmd.OutOrStdout(), itemView(t.q, it))
			})
		},
	}
}

func findItem(ctx context.Context, q *queue.Queue, id uint64) (*queue.Item, error) {
	it, ok, err := q.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, queue.ErrNotFound)
	}
	return it, nil
}

// newInvalidateCommand constructs the `invalidate` subcommand.
func newInvalidateCommand() *cobra.Command {
	invalidateCmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Hide an item for a further invisibility window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetUint64("id")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			return withTarget(cmd, func(ctx context.Context, t target) error {
				it, err := findItem(ctx, t.q, id)
				if err != nil {
					return err
				}
				if err := t.q.Invalidate(ctx, it, timeout); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), itemView(t.q, it))
			})
		},
	}
	invalidateCmd.Flags().Uint64("id", 0, "Item id")
	invalidateCmd.Flags().Duration("timeout", queue.DefaultInvisibleTimeout, "Invisibility window")
	_ = invalidateCmd.MarkFlagRequired("id")
	return invalidateCmd
}

// newDeleteCommand constructs the `delete` subcommand.
func newDeleteCommand() *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an item (tombstone on filter queues unless --hard)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetUint64("id")
			hard, _ := cmd.Flags().GetBool("hard")
			return withTarget(cmd, func(ctx context.Context, t target) error {
				it, err := findItem(ctx, t.q, id)
				if err != nil {
					return err
				}
				if t.filter != nil {
					err = t.filter.Delete(ctx, it, queue.WithRemoveFromStore(hard))
				} else {
					err = t.q.Delete(ctx, it)
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "OK", "id": id})
			})
		},
	}
	deleteCmd.Flags().Uint64("id", 0, "Item id")
	deleteCmd.Flags().Bool("hard", false, "Remove the row instead of tombstoning it (filter queues)")
	_ = deleteCmd.MarkFlagRequired("id")
	return deleteCmd
}

// newListCommand constructs the `list` subcommand.
func newListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List items of a filter queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, _ := cmd.Flags().GetString("state")
			sinceRaw, _ := cmd.Flags().GetString("since")
			var since *time.Time
			if sinceRaw != "" {
				ts, err := time.Parse(time.RFC3339, sinceRaw)
				if err != nil {
					return fmt.Errorf("invalid --since: %w", err)
				}
				since = &ts
			}
			return withTarget(cmd, func(ctx context.Context, t target) error {
				if err := t.requireFilter("list"); err != nil {
					return err
				}
				var (
					items []*queue.Item
					err   error
				)
				switch state {
				case "active":
					items, err = t.filter.ActiveItems(ctx, since)
				case "deleted":
					items, err = t.filter.DeletedItems(ctx, since)
				case "all":
					items, err = t.filter.AllItems(ctx, since)
				default:
					return fmt.Errorf("invalid --state %q; use active|deleted|all", state)
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"count": len(items), "items": itemViews(t.q, items)})
			})
		},
	}
	listCmd.Flags().String("state", "active", "Items to list: active|deleted|all")
	listCmd.Flags().String("since", "", "Only items created at or after this RFC3339 time")
	return listCmd
}

// newPurgeCommand constructs the `purge` subcommand.
func newPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Permanently remove tombstoned items of a filter queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTarget(cmd, func(ctx context.Context, t target) error {
				if err := t.requireFilter("purge"); err != nil {
					return err
				}
				n, err := t.filter.PurgeDeletedItems(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "OK", "purged": n})
			})
		},
	}
}

// newResetCommand constructs the `reset` subcommand.
func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Wipe the storage of the selected queue (default queue unless -q is set)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime.Runtime) error {
				name := queueName(cmd, rt)
				useFilter, _ := cmd.Flags().GetBool("filter")
				if useFilter {
					if _, err := rt.Filters().CreateNewReset(ctx, name); err != nil {
						return err
					}
				} else if _, err := rt.Queues().CreateNewReset(ctx, name); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "OK", "queue": name, "filter": useFilter})
			})
		},
	}
}

// newStatsCommand constructs the `stats` subcommand.
func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count items by state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTarget(cmd, func(ctx context.Context, t target) error {
				s, err := t.q.Stats(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"queue":     t.q.Name(),
					"kind":      t.q.Kind(),
					"total":     s.Total,
					"visible":   s.Visible,
					"invisible": s.Invisible,
					"deleted":   s.Deleted,
				})
			})
		},
	}
}
