package storage

import (
	"errors"
	"sort"
)

// Overlay buffers writes on top of a Database. Reads see buffered writes
// first. Nothing reaches the base until Commit, and Discard drops every
// buffered write, so one Overlay is one unit of work.
type Overlay struct {
	base  Database
	dirty map[string]overlayEntry
}

type overlayEntry struct {
	value   []byte
	deleted bool
}

// NewOverlay starts a unit of work over base.
func NewOverlay(base Database) *Overlay {
	return &Overlay{base: base, dirty: make(map[string]overlayEntry)}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.dirty[string(key)] = overlayEntry{value: append([]byte(nil), value...)}
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	if entry, ok := o.dirty[string(key)]; ok {
		if entry.deleted {
			return nil, ErrNotFound
		}
		return append([]byte(nil), entry.value...), nil
	}
	value, err := o.base.Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (o *Overlay) Delete(key []byte) error {
	o.dirty[string(key)] = overlayEntry{deleted: true}
	return nil
}

// Pending reports the number of buffered writes.
func (o *Overlay) Pending() int { return len(o.dirty) }

// Commit writes every buffered change to the base in one batch, in key order
// so identical units of work produce identical batches.
func (o *Overlay) Commit() error {
	if len(o.dirty) == 0 {
		return nil
	}
	keys := make([]string, 0, len(o.dirty))
	for k := range o.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := o.base.NewBatch()
	for _, k := range keys {
		entry := o.dirty[k]
		if entry.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), entry.value)
	}
	if err := batch.Write(); err != nil {
		return err
	}
	o.dirty = make(map[string]overlayEntry)
	return nil
}

// Discard drops all buffered writes.
func (o *Overlay) Discard() {
	o.dirty = make(map[string]overlayEntry)
}
