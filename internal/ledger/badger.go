package ledger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerLedger keeps the audit ledger in an embedded Badger database for
// single-node deployments that have no shared key-value service to mirror
// into.
type BadgerLedger struct {
	db *badger.DB
}

// OpenBadgerLedger opens (or creates) the ledger database under dir.
func OpenBadgerLedger(dir string) (*BadgerLedger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ledger/badger: open %s: %w", dir, err)
	}
	return &BadgerLedger{db: db}, nil
}

// Put implements Ledger.
func (l *BadgerLedger) Put(ctx context.Context, key, value string) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("ledger/badger: put %s: %w", key, err)
	}
	return nil
}

// Delete implements Ledger.
func (l *BadgerLedger) Delete(ctx context.Context, key string) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("ledger/badger: delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying database.
func (l *BadgerLedger) Close() error {
	return l.db.Close()
}

var _ Ledger = (*BadgerLedger)(nil)
