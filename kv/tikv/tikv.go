package tikv

import (
	"context"

	"github.com/autom8ter/provision/errors"
	"github.com/autom8ter/provision/kv"
	"github.com/autom8ter/provision/kv/kvutil"
	"github.com/autom8ter/provision/kv/registry"
	"github.com/spf13/cast"
	"github.com/tikv/client-go/v2/txnkv"
)

func init() {
	registry.Register("tikv", func(params map[string]any) (kv.DB, error) {
		if params["pd_addr"] == nil {
			return nil, errors.New(errors.Validation, "'pd_addr' is a required parameter")
		}
		return Open(cast.ToStringSlice(params["pd_addr"])...)
	})
}

type tikvKV struct {
	db *txnkv.Client
}

// Open connects to the tikv cluster through its placement driver addresses
func Open(pdAddrs ...string) (kv.DB, error) {
	if len(pdAddrs) == 0 || pdAddrs[0] == "" {
		return nil, errors.New(errors.Validation, "empty pd address")
	}
	client, err := txnkv.NewClient(pdAddrs)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unreachable, "failed to connect to tikv")
	}
	return &tikvKV{
		db: client,
	}, nil
}

func (b *tikvKV) Tx(readOnly bool, fn func(kv.Tx) error) error {
	tx, err := b.NewTx(readOnly)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback(context.Background())
		return err
	}
	return tx.Commit(context.Background())
}

func (b *tikvKV) NewTx(readOnly bool) (kv.Tx, error) {
	tx, err := b.db.Begin()
	if err != nil {
		return nil, err
	}
	return &tikvTx{txn: tx, readOnly: readOnly}, nil
}

func (b *tikvKV) Close(ctx context.Context) error {
	return b.db.Close()
}

func (b *tikvKV) DropPrefix(ctx context.Context, prefix ...[]byte) error {
	for _, p := range prefix {
		if _, err := b.db.DeleteRange(ctx, p, kvutil.NextPrefix(p), 1); err != nil {
			return err
		}
	}
	return nil
}
