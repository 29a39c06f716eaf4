package tikv

import (
	"bytes"

	"github.com/autom8ter/provision/kv"
)

type unionStoreIterator interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next() error
	Close()
}

type tikvIterator struct {
	opts kv.IterOpts
	iter unionStoreIterator
}

// Seek advances the iterator until it reaches key. tikv iterators cannot move backwards.
func (b *tikvIterator) Seek(key []byte) {
	for b.iter.Valid() {
		cmp := bytes.Compare(b.iter.Key(), key)
		if (!b.opts.Reverse && cmp >= 0) || (b.opts.Reverse && cmp <= 0) {
			return
		}
		if err := b.iter.Next(); err != nil {
			return
		}
	}
}

func (b *tikvIterator) Close() {
	b.iter.Close()
}

func (b *tikvIterator) Valid() bool {
	if !b.iter.Valid() {
		return false
	}
	if b.opts.Prefix != nil && !bytes.HasPrefix(b.iter.Key(), b.opts.Prefix) {
		return false
	}
	if b.opts.UpperBound != nil && bytes.Compare(b.iter.Key(), b.opts.UpperBound) == 1 {
		return false
	}
	return true
}

func (b *tikvIterator) Key() []byte {
	return b.iter.Key()
}

func (b *tikvIterator) Value() ([]byte, error) {
	return b.iter.Value(), nil
}

func (b *tikvIterator) Next() error {
	return b.iter.Next()
}
