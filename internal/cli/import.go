package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/liveview/internal/engine"
	"github.com/roach88/liveview/internal/ir"
	"github.com/roach88/liveview/internal/metrics"
	"github.com/roach88/liveview/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database   string
	Name       string
	Key        string
	Limit      int
	DropFactor float64
}

// ImportResult is the outcome of an import.
type ImportResult struct {
	SnapshotID string `json:"snapshot_id"`
	Name       string `json:"name"`
	Seq        int64  `json:"seq"`
	Read       int    `json:"read"`
	Stored     int    `json:"stored"`
	Evicted    int    `json:"evicted"`
	Hash       string `json:"hash"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <records.json|records.yaml>",
		Short: "Load records through a collection and save a snapshot",
		Long: `Append every record of a JSON or YAML array to a fresh collection and save
the surviving records as a new snapshot.

Records go through the same validation as live appends: with --key every
record needs a unique, non-empty string or integer key, and with --limit
the oldest records are evicted as the collection fills up. Records must
not contain null or fractional numbers.

Exit codes:
  0 - Snapshot saved
  1 - A record was rejected (invalid or duplicate key)
  2 - Command error (missing file, unreadable records, database error)

Examples:
  liveview import --db ./liveview.db --name orders ./orders.json
  liveview import --db ./liveview.db --name orders --key id --limit 1000 ./orders.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "snapshot name (required)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "record field to key the collection by")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records kept (0 = unlimited)")
	cmd.Flags().Float64Var(&opts.DropFactor, "drop-factor", engine.DefaultDropFactor, "fraction of --limit evicted when full")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())

	records, err := readRecords(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("records file not found: %s", path), err)
		}
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "failed to read records", err)
	}
	logger.Debug("records read", "path", path, "count", len(records))

	reg := prometheus.NewRegistry()
	collOpts := []engine.Option{
		engine.WithLimit(opts.Limit),
		engine.WithDropFactor(opts.DropFactor),
		engine.WithLogger(logger),
		engine.WithMetrics(metrics.New(reg)),
	}
	var coll *engine.Collection[ir.IRObject]
	if opts.Key != "" {
		coll = engine.NewKeyed(engine.KeyField(opts.Key), collOpts...)
	} else {
		coll = engine.New[ir.IRObject](collOpts...)
	}

	for i, r := range records {
		if err := coll.Append(r); err != nil {
			return f.Fail(ExitFailure, ErrCodeRejected, fmt.Sprintf("record %d rejected", i), err)
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	snap, err := st.SaveSnapshot(ctx, opts.Name, opts.Key, coll.Serialize())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to save snapshot", err)
	}
	logger.Info("snapshot saved", "id", snap.ID, "name", snap.Name, "seq", snap.Seq, "records", snap.Count)

	if summary, err := metrics.Summarize(reg); err == nil {
		for _, name := range slices.Sorted(maps.Keys(summary)) {
			f.VerboseLog("metric %s %g", name, summary[name])
		}
	}

	result := ImportResult{
		SnapshotID: snap.ID,
		Name:       snap.Name,
		Seq:        snap.Seq,
		Read:       len(records),
		Stored:     snap.Count,
		Evicted:    len(records) - snap.Count,
		Hash:       snap.Hash,
	}

	if f.JSON() {
		return f.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Imported %d of %d records into %s (seq %d)\n", result.Stored, result.Read, result.Name, result.Seq)
	if result.Evicted > 0 {
		fmt.Fprintf(w, "  %d evicted by --limit %d\n", result.Evicted, opts.Limit)
	}
	fmt.Fprintf(w, "  id:   %s\n", result.SnapshotID)
	fmt.Fprintf(w, "  hash: %s\n", result.Hash)
	return nil
}

// readRecords decodes a JSON or YAML array of objects, chosen by file
// extension. Every record must be encodable as canonical JSON.
func readRecords(path string) ([]ir.IRObject, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var raw []any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(file)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported record file extension %q (want .json, .yaml or .yml)", ext)
	}

	records := make([]ir.IRObject, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d: expected an object, got %T", i, item)
		}
		obj, err := ir.ObjectFromGo(m)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := ir.MarshalCanonical(obj); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records[i] = obj
	}
	return records, nil
}
