package kv

import "context"

// DB is a transactional key value store
type DB interface {
	// Tx runs fn inside a transaction. Write transactions commit when fn returns nil and roll back otherwise.
	Tx(readOnly bool, fn func(Tx) error) error
	// NewTx starts a transaction that the caller must Commit or Rollback
	NewTx(readOnly bool) (Tx, error)
	// DropPrefix deletes every key with one of the given prefixes
	DropPrefix(ctx context.Context, prefix ...[]byte) error
	Close(ctx context.Context) error
}

// IterOpts configures an iterator
type IterOpts struct {
	Prefix     []byte `json:"prefix"`
	Seek       []byte `json:"seek"`
	Reverse    bool   `json:"reverse"`
	UpperBound []byte `json:"upperBound"`
}

// Getter reads keys. A missing key yields a nil value and a nil error.
type Getter interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	NewIterator(opts IterOpts) (Iterator, error)
}

// Mutator writes keys
type Mutator interface {
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
}

// Tx is a key value transaction
type Tx interface {
	Getter
	Mutator
	Commit(ctx context.Context) error
	Rollback(ctx context.Context)
}

// Iterator walks keys in order
type Iterator interface {
	Seek(key []byte)
	Close()
	Valid() bool
	Key() []byte
	Value() ([]byte, error)
	Next() error
}
