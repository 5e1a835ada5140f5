package db

import (
	"context"
	"fmt"
	"sort"

	"github.com/patrickwarner/openbidbridge/internal/models"
)

// SlotStore is the persistence the slot catalog is loaded from.
type SlotStore interface {
	LoadSlots(ctx context.Context) ([]models.Slot, error)
	UpsertSlot(ctx context.Context, s models.Slot) error
}

// DB holds the slot definitions the bridge serves, keyed by slot id.
type DB struct {
	Slots map[string]models.Slot
}

// Init seeds store with the statically configured slots and then loads the
// full active catalog. A nil store serves only the seed slots.
func Init(ctx context.Context, store SlotStore, seed []models.Slot) (*DB, error) {
	if store == nil {
		return newDB(seed)
	}
	for _, s := range seed {
		if err := store.UpsertSlot(ctx, s); err != nil {
			return nil, fmt.Errorf("seed slots: %w", err)
		}
	}
	slots, err := store.LoadSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	return newDB(slots)
}

func newDB(slots []models.Slot) (*DB, error) {
	d := &DB{Slots: make(map[string]models.Slot, len(slots))}
	for _, s := range slots {
		if s.ID == "" || s.AdUnitID == "" {
			return nil, fmt.Errorf("slot %q: id and ad unit id are required", s.ID)
		}
		if !s.Integration.Valid() {
			return nil, fmt.Errorf("slot %s: unknown integration %q", s.ID, s.Integration)
		}
		if _, dup := d.Slots[s.ID]; dup {
			return nil, fmt.Errorf("duplicate slot %s", s.ID)
		}
		d.Slots[s.ID] = s
	}
	return d, nil
}

// Slot returns the slot definition for id.
func (d *DB) Slot(id string) (models.Slot, bool) {
	s, ok := d.Slots[id]
	return s, ok
}

// SlotIDs returns all slot ids in sorted order.
func (d *DB) SlotIDs() []string {
	ids := make([]string, 0, len(d.Slots))
	for id := range d.Slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
