package tikv

import (
	"context"
	"fmt"

	"github.com/autom8ter/provision/kv"
	"github.com/autom8ter/provision/kv/kvutil"
	tikvErr "github.com/tikv/client-go/v2/error"
	"github.com/tikv/client-go/v2/txnkv/transaction"
)

type tikvTx struct {
	txn      *transaction.KVTxn
	readOnly bool
}

func (t *tikvTx) NewIterator(kopts kv.IterOpts) (kv.Iterator, error) {
	if kopts.Reverse {
		upper := kopts.Seek
		if upper == nil {
			upper = kopts.UpperBound
		}
		if upper == nil {
			upper = kopts.Prefix
		}
		iter, err := t.txn.IterReverse(kvutil.NextPrefix(upper))
		if err != nil {
			return nil, err
		}
		return &tikvIterator{iter: iter, opts: kopts}, nil
	}
	start := kopts.Prefix
	if kopts.Seek != nil {
		start = kopts.Seek
	}
	var end []byte
	if kopts.UpperBound != nil {
		end = kvutil.NextPrefix(kopts.UpperBound)
	} else if kopts.Prefix != nil {
		end = kvutil.NextPrefix(kopts.Prefix)
	}
	iter, err := t.txn.Iter(start, end)
	if err != nil {
		return nil, err
	}
	return &tikvIterator{iter: iter, opts: kopts}, nil
}

func (t *tikvTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	val, err := t.txn.Get(ctx, key)
	if err != nil {
		if tikvErr.IsErrNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (t *tikvTx) Set(ctx context.Context, key, value []byte) error {
	if t.readOnly {
		return fmt.Errorf("writes forbidden in read-only transaction")
	}
	return t.txn.Set(key, value)
}

func (t *tikvTx) Delete(ctx context.Context, key []byte) error {
	if t.readOnly {
		return fmt.Errorf("writes forbidden in read-only transaction")
	}
	return t.txn.Delete(key)
}

func (t *tikvTx) Rollback(ctx context.Context) {
	_ = t.txn.Rollback()
}

func (t *tikvTx) Commit(ctx context.Context) error {
	if t.readOnly {
		return t.txn.Rollback()
	}
	return t.txn.Commit(ctx)
}
