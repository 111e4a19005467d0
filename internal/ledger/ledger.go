// Package ledger integrates the external append-only audit ledger. The
// ledger itself is an external system consumed strictly through a put/delete
// key-value contract; this package provides the adapters and the best-effort
// Mirror used by every mutating domain service.
package ledger

import (
	"context"
	"fmt"
)

// Ledger is the write-side contract of the external audit store. No read API
// is required by the domain core.
type Ledger interface {
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Key builds the canonical "<entity>.<id>" ledger key.
func Key(entity string, id int64) string {
	return fmt.Sprintf("%s.%d", entity, id)
}

// PairKey builds the composite "<entity>.<id1>/<id2>" ledger key used for
// directed relationship records.
func PairKey(entity string, first, second int64) string {
	return fmt.Sprintf("%s.%d/%d", entity, first, second)
}

// Entry pairs an unnamespaced ledger key with the record that belongs under
// it. Backfill tooling walks primary storage emitting entries.
type Entry struct {
	Key    string
	Record Record
}

// Nop is a Ledger that discards every write. It backs deployments that opt
// out of mirroring (LEDGER_BACKEND=none) and keeps tests quiet.
type Nop struct{}

// Put implements Ledger.
func (Nop) Put(ctx context.Context, key, value string) error { return nil }

// Delete implements Ledger.
func (Nop) Delete(ctx context.Context, key string) error { return nil }

var _ Ledger = Nop{}
