package badger

import (
	"context"
	"fmt"

	"github.com/autom8ter/provision/kv"
	"github.com/autom8ter/provision/kv/kvutil"
	"github.com/dgraph-io/badger/v3"
)

type badgerTx struct {
	txn      *badger.Txn
	readOnly bool
}

func (b *badgerTx) NewIterator(kopts kv.IterOpts) (kv.Iterator, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.PrefetchSize = 10
	opts.Prefix = kopts.Prefix
	opts.Reverse = kopts.Reverse
	iter := b.txn.NewIterator(opts)
	switch {
	case kopts.Seek != nil:
		iter.Seek(kopts.Seek)
	case kopts.Reverse && kopts.UpperBound != nil:
		iter.Seek(kopts.UpperBound)
	case kopts.Reverse && kopts.Prefix != nil:
		iter.Seek(kvutil.NextPrefix(kopts.Prefix))
	default:
		iter.Rewind()
	}
	return &badgerIterator{iter: iter, opts: kopts}, nil
}

func (b *badgerTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	i, err := b.txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	return i.ValueCopy(nil)
}

func (b *badgerTx) Set(ctx context.Context, key, value []byte) error {
	if b.readOnly {
		return fmt.Errorf("writes forbidden in read-only transaction")
	}
	return b.txn.SetEntry(badger.NewEntry(key, value))
}

func (b *badgerTx) Delete(ctx context.Context, key []byte) error {
	if b.readOnly {
		return fmt.Errorf("writes forbidden in read-only transaction")
	}
	return b.txn.Delete(key)
}

func (b *badgerTx) Rollback(ctx context.Context) {
	b.txn.Discard()
}

func (b *badgerTx) Commit(ctx context.Context) error {
	if b.readOnly {
		b.txn.Discard()
		return nil
	}
	return b.txn.Commit()
}
