package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingLedger struct {
	puts    map[string]string
	deletes []string
	fail    bool
}

func newRecordingLedger() *recordingLedger {
	return &recordingLedger{puts: make(map[string]string)}
}

func (l *recordingLedger) Put(ctx context.Context, key, value string) error {
	if l.fail {
		return errors.New("ledger unavailable")
	}
	l.puts[key] = value
	return nil
}

func (l *recordingLedger) Delete(ctx context.Context, key string) error {
	if l.fail {
		return errors.New("ledger unavailable")
	}
	l.deletes = append(l.deletes, key)
	return nil
}

type recordingRetry struct {
	puts    map[string]string
	deletes []string
}

func newRecordingRetry() *recordingRetry {
	return &recordingRetry{puts: make(map[string]string)}
}

func (r *recordingRetry) EnqueueMirrorPut(ctx context.Context, key, value string) error {
	r.puts[key] = value
	return nil
}

func (r *recordingRetry) EnqueueMirrorDelete(ctx context.Context, key string) error {
	r.deletes = append(r.deletes, key)
	return nil
}

func TestMirrorPutWritesNamespacedKey(t *testing.T) {
	ctx := context.Background()
	store := newRecordingLedger()
	mirror := NewMirror(store, "quillfeed", nil, nil, nil)

	mirror.Put(ctx, Key("user", 3), Record{"schema": SchemaUser, "id": int64(3)})

	require.Len(t, store.puts, 1)
	require.Contains(t, store.puts, "quillfeed.user.3")
}

func TestMirrorFailureIsSwallowedAndQueued(t *testing.T) {
	ctx := context.Background()
	store := newRecordingLedger()
	store.fail = true
	retry := newRecordingRetry()
	mirror := NewMirror(store, "quillfeed", nil, retry, nil)

	mirror.Put(ctx, Key("post", 8), Record{"schema": SchemaPost, "id": int64(8)})
	mirror.Delete(ctx, Key("post", 8))

	require.Contains(t, retry.puts, "quillfeed.post.8")
	require.Equal(t, []string{"quillfeed.post.8"}, retry.deletes)
}

func TestMirrorSkipsRecordWithoutSchema(t *testing.T) {
	ctx := context.Background()
	store := newRecordingLedger()
	mirror := NewMirror(store, "", nil, nil, nil)

	mirror.Put(ctx, Key("user", 1), Record{"id": int64(1)})

	require.Empty(t, store.puts)
}

func TestNilMirrorIsSafe(t *testing.T) {
	var mirror *Mirror
	mirror.Put(context.Background(), "user.1", Record{"schema": SchemaUser})
	mirror.Delete(context.Background(), "user.1")
}
