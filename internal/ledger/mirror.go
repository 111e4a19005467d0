package ledger

import (
	"context"
	"log/slog"

	"github.com/quillfeed/quillfeed/internal/observability"
)

// DefaultNamespace prefixes every ledger key written by this application.
const DefaultNamespace = "quillfeed"

// RetryEnqueuer hands failed mirror writes to a background queue for
// replay. Enqueue failures are themselves best-effort.
type RetryEnqueuer interface {
	EnqueueMirrorPut(ctx context.Context, key, value string) error
	EnqueueMirrorDelete(ctx context.Context, key string) error
}

// Mirror issues audit-ledger writes after primary-storage mutations. The
// primary store is the source of truth: a failed mirror write is logged,
// counted and (when a queue is configured) scheduled for replay, but never
// surfaces to the caller and never rolls the primary mutation back.
type Mirror struct {
	store     Ledger
	namespace string
	logger    *slog.Logger
	retry     RetryEnqueuer
	metrics   *observability.Metrics
}

// NewMirror constructs a Mirror. retry and metrics may be nil.
func NewMirror(store Ledger, namespace string, logger *slog.Logger, retry RetryEnqueuer, metrics *observability.Metrics) *Mirror {
	if store == nil {
		store = Nop{}
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Mirror{store: store, namespace: namespace, logger: logger, retry: retry, metrics: metrics}
}

// Put snapshots rec under the namespaced key.
func (m *Mirror) Put(ctx context.Context, key string, rec Record) {
	if m == nil {
		return
	}
	value, err := rec.Encode()
	if err != nil {
		m.warn("mirror encode failed", key, err)
		return
	}
	full := m.namespaced(key)
	err = m.store.Put(ctx, full, value)
	m.metrics.ObserveMirrorWrite("put", err)
	if err == nil {
		return
	}
	m.warn("mirror put failed", full, err)
	if m.retry == nil {
		return
	}
	if err := m.retry.EnqueueMirrorPut(ctx, full, value); err != nil {
		m.warn("mirror retry enqueue failed", full, err)
		return
	}
	m.metrics.ObserveMirrorRetry()
}

// Delete removes the namespaced key from the ledger.
func (m *Mirror) Delete(ctx context.Context, key string) {
	if m == nil {
		return
	}
	full := m.namespaced(key)
	err := m.store.Delete(ctx, full)
	m.metrics.ObserveMirrorWrite("delete", err)
	if err == nil {
		return
	}
	m.warn("mirror delete failed", full, err)
	if m.retry == nil {
		return
	}
	if err := m.retry.EnqueueMirrorDelete(ctx, full); err != nil {
		m.warn("mirror retry enqueue failed", full, err)
		return
	}
	m.metrics.ObserveMirrorRetry()
}

func (m *Mirror) namespaced(key string) string {
	return m.namespace + "." + key
}

func (m *Mirror) warn(msg, key string, err error) {
	if m.logger == nil {
		return
	}
	m.logger.Warn(msg, slog.String("key", key), slog.Any("error", err))
}
