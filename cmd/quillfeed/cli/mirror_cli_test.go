package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillfeed/quillfeed/internal/ledger"
	_ "github.com/quillfeed/quillfeed/testing"
)

type stubLedgerStore struct {
	entries  map[string]string
	failKeys map[string]bool
}

func newStubLedgerStore() *stubLedgerStore {
	return &stubLedgerStore{entries: make(map[string]string), failKeys: make(map[string]bool)}
}

func (s *stubLedgerStore) Put(ctx context.Context, key, value string) error {
	if s.failKeys[key] {
		return errors.New("store rejected write")
	}
	s.entries[key] = value
	return nil
}

func (s *stubLedgerStore) Delete(ctx context.Context, key string) error {
	delete(s.entries, key)
	return nil
}

func staticSource(entries ...ledger.Entry) MirrorBackfillSource {
	return func(ctx context.Context) ([]ledger.Entry, error) {
		return entries, nil
	}
}

func alwaysConfirm(io.Reader, io.Writer) (bool, error) { return true, nil }

func testSources() []NamedSource {
	return []NamedSource{
		{Name: "roles", Source: staticSource(
			ledger.Entry{Key: "role.1", Record: ledger.Record{"schema": ledger.SchemaRole, "id": int64(1)}},
		)},
		{Name: "users", Source: staticSource(
			ledger.Entry{Key: "user.1", Record: ledger.Record{"schema": ledger.SchemaUser, "id": int64(1)}},
			ledger.Entry{Key: "user.2", Record: ledger.Record{"schema": ledger.SchemaUser, "id": int64(2)}},
		)},
	}
}

func TestBackfillDryWritesNothing(t *testing.T) {
	store := newStubLedgerStore()
	cli := NewMirrorOpsCLI(store, "quillfeed", testSources())

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.BackfillCommand(context.Background(), MirrorBackfillOptions{
		Mode:       MirrorBackfillModeDry,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())
	require.Empty(t, store.entries)

	var summary MirrorBackfillSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, MirrorBackfillModeDry, summary.Mode)
	require.Equal(t, 3, summary.Total)
	require.Zero(t, summary.Written)
	require.Len(t, summary.Sources, 2)
	require.Equal(t, "users", summary.Sources[1].Name)
	require.Equal(t, 2, summary.Sources[1].Entries)
}

func TestBackfillApplyWritesNamespacedKeys(t *testing.T) {
	store := newStubLedgerStore()
	cli := NewMirrorOpsCLI(store, "quillfeed", testSources())

	stdout := new(bytes.Buffer)
	exitCode := cli.BackfillCommand(context.Background(), MirrorBackfillOptions{
		Mode:       MirrorBackfillModeApply,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     new(bytes.Buffer),
		Confirm:    alwaysConfirm,
	})
	require.Zero(t, exitCode)
	require.Len(t, store.entries, 3)
	require.Contains(t, store.entries, "quillfeed.role.1")
	require.Contains(t, store.entries, "quillfeed.user.2")
	require.Contains(t, store.entries["quillfeed.user.1"], `"schema":"user.v1"`)

	var summary MirrorBackfillSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, 3, summary.Written)
	require.Zero(t, summary.Failed)
}

func TestBackfillApplyDefaultConfirmReadsStdin(t *testing.T) {
	store := newStubLedgerStore()
	cli := NewMirrorOpsCLI(store, "", testSources())

	exitCode := cli.BackfillCommand(context.Background(), MirrorBackfillOptions{
		Mode:   MirrorBackfillModeApply,
		Stdout: new(bytes.Buffer),
		Stderr: new(bytes.Buffer),
		Stdin:  strings.NewReader("YES\n"),
	})
	require.Zero(t, exitCode)
	require.Contains(t, store.entries, "quillfeed.role.1")
}

func TestBackfillApplyCancelled(t *testing.T) {
	store := newStubLedgerStore()
	cli := NewMirrorOpsCLI(store, "quillfeed", testSources())

	stderr := new(bytes.Buffer)
	exitCode := cli.BackfillCommand(context.Background(), MirrorBackfillOptions{
		Mode:   MirrorBackfillModeApply,
		Stdout: new(bytes.Buffer),
		Stderr: stderr,
		Stdin:  strings.NewReader("no\n"),
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "cancelled")
	require.Empty(t, store.entries)
}

func TestBackfillApplyCountsFailures(t *testing.T) {
	store := newStubLedgerStore()
	store.failKeys["quillfeed.user.1"] = true
	cli := NewMirrorOpsCLI(store, "quillfeed", testSources())

	stdout := new(bytes.Buffer)
	exitCode := cli.BackfillCommand(context.Background(), MirrorBackfillOptions{
		Mode:       MirrorBackfillModeApply,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     new(bytes.Buffer),
		Confirm:    alwaysConfirm,
	})
	require.Equal(t, 1, exitCode)

	var summary MirrorBackfillSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, 2, summary.Written)
	require.Equal(t, 1, summary.Failed)
	require.NotContains(t, store.entries, "quillfeed.user.1")
	require.Contains(t, store.entries, "quillfeed.user.2")
}

func TestBackfillSourceFailure(t *testing.T) {
	broken := []NamedSource{{Name: "users", Source: func(ctx context.Context) ([]ledger.Entry, error) {
		return nil, errors.New("query timeout")
	}}}
	cli := NewMirrorOpsCLI(newStubLedgerStore(), "quillfeed", broken)

	stderr := new(bytes.Buffer)
	exitCode := cli.BackfillCommand(context.Background(), MirrorBackfillOptions{
		Mode:   MirrorBackfillModeDry,
		Stdout: new(bytes.Buffer),
		Stderr: stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "query timeout")
}

func TestBackfillInvalidMode(t *testing.T) {
	cli := NewMirrorOpsCLI(newStubLedgerStore(), "quillfeed", testSources())

	stderr := new(bytes.Buffer)
	exitCode := cli.BackfillCommand(context.Background(), MirrorBackfillOptions{
		Mode:   "rehearse",
		Stdout: new(bytes.Buffer),
		Stderr: stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "invalid mode")
}
