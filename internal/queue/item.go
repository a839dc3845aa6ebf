package queue

import (
	"time"

	"github.com/rzbill/pqueue/internal/table"
)

// Kinds of queue engines. The kind also names the storage sub-directory.
const (
	KindQueue  = "queue"
	KindFilter = "filter"
)

// Item is one message as seen by a consumer.
type Item struct {
	ID             uint64
	Payload        []byte
	InvisibleUntil time.Time
	CreatedAt      time.Time
	// DeletedAt is set once a filter queue tombstones the item.
	DeletedAt *time.Time

	owner owner
}

type owner struct {
	kind  string
	queue string
}

// Queue returns the name of the queue the item was read from.
func (it *Item) Queue() string { return it.owner.queue }

// Deleted reports whether the item is tombstoned.
func (it *Item) Deleted() bool { return it.DeletedAt != nil }

// VisibleAt reports whether the item may be delivered at now.
func (it *Item) VisibleAt(now time.Time) bool { return !it.InvisibleUntil.After(now) }

func itemFromRecord(r table.Record, o owner) *Item {
	return &Item{
		ID:             r.ID,
		Payload:        r.Payload,
		InvisibleUntil: r.InvisibleUntil,
		CreatedAt:      r.CreatedAt,
		DeletedAt:      r.DeletedAt,
		owner:          o,
	}
}

func itemsFromRecords(rs []table.Record, o owner) []*Item {
	out := make([]*Item, 0, len(rs))
	for _, r := range rs {
		out = append(out, itemFromRecord(r, o))
	}
	return out
}
