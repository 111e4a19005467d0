package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/quillfeed/quillfeed/internal/ledger"
)

// MirrorBackfillMode enumerates supported execution strategies.
type MirrorBackfillMode string

const (
	// MirrorBackfillModeDry previews the snapshots without writing anything.
	MirrorBackfillModeDry MirrorBackfillMode = "dry"
	// MirrorBackfillModeApply writes the snapshots after confirmation.
	MirrorBackfillModeApply MirrorBackfillMode = "apply"
)

// MirrorBackfillSource yields the current ledger entries for one entity
// family, read from primary storage.
type MirrorBackfillSource func(ctx context.Context) ([]ledger.Entry, error)

// NamedSource pairs a backfill source with its reporting label.
type NamedSource struct {
	Name   string
	Source MirrorBackfillSource
}

// MirrorOpsCLI re-emits audit snapshots from primary storage to close
// mirror gaps left by crashes or ledger outages. Unlike the inline mirror,
// write failures here are surfaced to the operator.
type MirrorOpsCLI struct {
	store     ledger.Ledger
	namespace string
	sources   []NamedSource
}

// NewMirrorOpsCLI constructs a new helper instance.
func NewMirrorOpsCLI(store ledger.Ledger, namespace string, sources []NamedSource) *MirrorOpsCLI {
	if namespace == "" {
		namespace = ledger.DefaultNamespace
	}
	return &MirrorOpsCLI{store: store, namespace: namespace, sources: sources}
}

// MirrorBackfillOptions configures the backfill command execution.
type MirrorBackfillOptions struct {
	Mode       MirrorBackfillMode
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
	Stdin      io.Reader
	Confirm    func(io.Reader, io.Writer) (bool, error)
}

// MirrorBackfillSummary captures the structured reporting outcome.
type MirrorBackfillSummary struct {
	Mode    MirrorBackfillMode    `json:"mode"`
	Sources []MirrorBackfillCount `json:"sources"`
	Total   int                   `json:"total"`
	Written int                   `json:"written"`
	Failed  int                   `json:"failed"`
}

// MirrorBackfillCount reports the snapshots one source contributed.
type MirrorBackfillCount struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
}

// BackfillCommand executes the mirror backfill workflow.
func (c *MirrorOpsCLI) BackfillCommand(ctx context.Context, opts MirrorBackfillOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Mode == "" {
		opts.Mode = MirrorBackfillModeDry
	}
	mode := MirrorBackfillMode(strings.ToLower(string(opts.Mode)))
	switch mode {
	case MirrorBackfillModeDry, MirrorBackfillModeApply:
	default:
		fmt.Fprintf(opts.Stderr, "mirror backfill: invalid mode %q (expected dry or apply)\n", opts.Mode)
		return 1
	}

	summary := MirrorBackfillSummary{Mode: mode, Sources: make([]MirrorBackfillCount, 0, len(c.sources))}
	var entries []ledger.Entry
	for _, source := range c.sources {
		batch, err := source.Source(ctx)
		if err != nil {
			fmt.Fprintf(opts.Stderr, "mirror backfill: read %s: %v\n", source.Name, err)
			return 1
		}
		summary.Sources = append(summary.Sources, MirrorBackfillCount{Name: source.Name, Entries: len(batch)})
		entries = append(entries, batch...)
	}
	summary.Total = len(entries)

	if mode == MirrorBackfillModeDry || summary.Total == 0 {
		if err := writeBackfillOutput(opts, summary); err != nil {
			fmt.Fprintf(opts.Stderr, "mirror backfill: %v\n", err)
			return 1
		}
		return 0
	}

	confirm := opts.Confirm
	if confirm == nil {
		confirm = defaultBackfillConfirm
	}
	ok, err := confirm(opts.Stdin, opts.Stdout)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "mirror backfill: confirmation failed: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(opts.Stderr, "mirror backfill: cancelled by user")
		return 1
	}

	for _, entry := range entries {
		value, err := entry.Record.Encode()
		if err != nil {
			fmt.Fprintf(opts.Stderr, "mirror backfill: encode %s: %v\n", entry.Key, err)
			summary.Failed++
			continue
		}
		if err := c.store.Put(ctx, c.namespace+"."+entry.Key, value); err != nil {
			fmt.Fprintf(opts.Stderr, "mirror backfill: put %s: %v\n", entry.Key, err)
			summary.Failed++
			continue
		}
		summary.Written++
	}

	if err := writeBackfillOutput(opts, summary); err != nil {
		fmt.Fprintf(opts.Stderr, "mirror backfill: %v\n", err)
		return 1
	}
	if summary.Failed > 0 {
		return 1
	}
	return 0
}

func writeBackfillOutput(opts MirrorBackfillOptions, summary MirrorBackfillSummary) error {
	if opts.JSONOutput {
		return json.NewEncoder(opts.Stdout).Encode(summary)
	}
	renderBackfillHuman(opts.Stdout, summary)
	return nil
}

func renderBackfillHuman(out io.Writer, summary MirrorBackfillSummary) {
	fmt.Fprintf(out, "Mirror backfill (%s): %d snapshot(s) in primary storage\n", summary.Mode, summary.Total)
	for _, source := range summary.Sources {
		fmt.Fprintf(out, " - %s: %d\n", source.Name, source.Entries)
	}
	if summary.Mode == MirrorBackfillModeApply {
		fmt.Fprintf(out, "Written: %d\n", summary.Written)
		if summary.Failed > 0 {
			fmt.Fprintf(out, "Failed: %d\n", summary.Failed)
		}
	}
}

func defaultBackfillConfirm(r io.Reader, w io.Writer) (bool, error) {
	fmt.Fprint(w, "Rewrite all audit snapshots? Type YES to confirm: ")
	reader := bufio.NewReader(r)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "YES"), nil
}
