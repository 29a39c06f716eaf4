package badger

import (
	"context"

	"github.com/autom8ter/provision/kv"
	"github.com/autom8ter/provision/kv/registry"
	"github.com/dgraph-io/badger/v3"
	"github.com/spf13/cast"
)

func init() {
	registry.Register("badger", func(params map[string]any) (kv.DB, error) {
		return Open(cast.ToString(params["storage_path"]))
	})
}

type badgerKV struct {
	db *badger.DB
}

// Open opens a badger database at storagePath. An empty path keeps everything in memory.
func Open(storagePath string) (kv.DB, error) {
	opts := badger.DefaultOptions(storagePath)
	if storagePath == "" {
		opts.InMemory = true
		opts.Dir = ""
		opts.ValueDir = ""
	}
	opts = opts.WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerKV{
		db: db,
	}, nil
}

func (b *badgerKV) Tx(readOnly bool, fn func(kv.Tx) error) error {
	tx := &badgerTx{txn: b.db.NewTransaction(!readOnly), readOnly: readOnly}
	defer tx.txn.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	if readOnly {
		return nil
	}
	return tx.txn.Commit()
}

func (b *badgerKV) NewTx(readOnly bool) (kv.Tx, error) {
	return &badgerTx{txn: b.db.NewTransaction(!readOnly), readOnly: readOnly}, nil
}

func (b *badgerKV) DropPrefix(ctx context.Context, prefix ...[]byte) error {
	if len(prefix) == 0 {
		return nil
	}
	return b.db.DropPrefix(prefix...)
}

func (b *badgerKV) Close(ctx context.Context) error {
	return b.db.Close()
}
