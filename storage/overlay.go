package storage

import "errors"

// Overlay buffers writes on top of a base database until Commit. Reads fall
// through to the base for keys the overlay has not touched. Discarding an
// overlay (by dropping it) leaves the base untouched, which is how ledger
// operations get all-or-nothing semantics.
type Overlay struct {
	base    Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	k := string(key)
	delete(o.deletes, k)
	o.writes[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		return nil, ErrKeyNotFound
	}
	if value, ok := o.writes[k]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Delete(key []byte) error {
	k := string(key)
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

// Close is a no-op; the base database owns the underlying resources.
func (o *Overlay) Close() error {
	return nil
}

// Commit flushes the buffered mutations to the base database. The overlay can
// be reused afterwards, starting from a clean buffer.
func (o *Overlay) Commit() error {
	for k := range o.deletes {
		if err := o.base.Delete([]byte(k)); err != nil && !errors.Is(err, ErrKeyNotFound) {
			return err
		}
	}
	for k, v := range o.writes {
		if err := o.base.Put([]byte(k), v); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
	return nil
}
