// Package records keeps the fragment metadata that sits alongside each indexed vector.
package records

import (
	"errors"
	"fmt"

	"github.com/hyperjump/kensaku/internal/models"
)

var (
	// ErrSlotNotFound is returned by Get for a slot that holds no record.
	ErrSlotNotFound = errors.New("slot not found")
	// ErrDuplicateSlot is returned by Put for a slot that is already occupied.
	ErrDuplicateSlot = errors.New("slot already occupied")
	// ErrSlotGap is returned by Put for a slot past the next free one.
	ErrSlotGap = errors.New("slot leaves a gap")
)

// Record is the metadata stored at a slot.
type Record struct {
	ID       string
	Fragment models.Fragment
}

// Store maps dense slots to records and IDs back to slots.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	records []Record
	byID    map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make([]Record, 0),
		byID:    make(map[string]int),
	}
}

// Put stores rec at slot. Slots must be filled in order starting at zero.
func (s *Store) Put(slot int, rec Record) error {
	switch {
	case slot < 0:
		return fmt.Errorf("%w: negative slot %d", ErrSlotGap, slot)
	case slot < len(s.records):
		return fmt.Errorf("%w: %d", ErrDuplicateSlot, slot)
	case slot > len(s.records):
		return fmt.Errorf("%w: slot %d, next free %d", ErrSlotGap, slot, len(s.records))
	}
	s.records = append(s.records, rec)
	s.byID[rec.ID] = slot
	return nil
}

// Get returns the record stored at slot.
func (s *Store) Get(slot int) (Record, error) {
	if slot < 0 || slot >= len(s.records) {
		return Record{}, fmt.Errorf("%w: %d", ErrSlotNotFound, slot)
	}
	return s.records[slot], nil
}

// ContainsID reports whether a record with id has been stored.
func (s *Store) ContainsID(id string) bool {
	_, ok := s.SlotOf(id)
	return ok
}

// SlotOf returns the slot holding id.
func (s *Store) SlotOf(id string) (int, bool) {
	slot, ok := s.byID[id]
	return slot, ok
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return len(s.records)
}
