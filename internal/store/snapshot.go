package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/liveview/internal/ir"
)

// ErrSnapshotNotFound is returned when no snapshot matches an id or name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrHashMismatch is returned when stored records no longer match the
// snapshot's recorded hash.
var ErrHashMismatch = errors.New("snapshot records hash mismatch")

// Snapshot is a saved record sequence.
type Snapshot struct {
	ID   string
	Name string

	// Seq orders snapshots of the same name; the latest has the highest.
	Seq int64

	// KeyField is the record field the collection was keyed by ("" if unkeyed).
	KeyField string

	Count         int
	Hash          string
	EngineVersion string
	IRVersion     string

	// Records is nil for snapshots returned by ListSnapshots.
	Records []ir.IRObject
}

// SaveSnapshot stores records under name in a single transaction and
// returns the saved header. The id is a UUIDv7.
func (s *Store) SaveSnapshot(ctx context.Context, name, keyField string, records []ir.IRObject) (Snapshot, error) {
	if name == "" {
		return Snapshot{}, fmt.Errorf("save snapshot: name is required")
	}
	hash, err := ir.RecordsHash(records)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	rows := make([]string, len(records))
	for i, r := range records {
		if rows[i], err = marshalRecord(r); err != nil {
			return Snapshot{}, fmt.Errorf("save snapshot: record %d: %w", i, err)
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: generate id: %w", err)
	}
	snap := Snapshot{
		ID:            id.String(),
		Name:          name,
		KeyField:      keyField,
		Count:         len(records),
		Hash:          hash,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.FormatVersion,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots WHERE name = ?`, name,
	).Scan(&snap.Seq); err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: next seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(id, name, seq, key_field, record_count, records_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.ID,
		snap.Name,
		snap.Seq,
		snap.KeyField,
		snap.Count,
		snap.Hash,
		snap.EngineVersion,
		snap.IRVersion,
	); err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: insert header: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_records (snapshot_id, position, record) VALUES (?, ?, ?)`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: prepare: %w", err)
	}
	defer stmt.Close()
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, snap.ID, i, row); err != nil {
			return Snapshot{}, fmt.Errorf("save snapshot: insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: commit: %w", err)
	}
	return snap, nil
}

// LoadSnapshot returns the snapshot with id, records included, after
// verifying the records against the stored hash.
func (s *Store) LoadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, `
		SELECT id, name, seq, key_field, record_count, records_hash, engine_version, ir_version
		FROM snapshots
		WHERE id = ?
	`, id))
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	if err := s.loadRecords(ctx, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return snap, nil
}

// LatestSnapshot loads the most recently saved snapshot named name.
func (s *Store) LatestSnapshot(ctx context.Context, name string) (Snapshot, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM snapshots
		WHERE name = ?
		ORDER BY seq DESC
		LIMIT 1
	`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("latest snapshot %q: %w", name, ErrSnapshotNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot %q: %w", name, err)
	}
	return s.LoadSnapshot(ctx, id)
}

// ListSnapshots returns every snapshot header (without records), ordered by
// name, then seq.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, seq, key_field, record_count, records_hash, engine_version, ir_version
		FROM snapshots
		ORDER BY name COLLATE BINARY ASC, seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// DeleteSnapshot removes a snapshot and its records.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete snapshot %s: %w", id, ErrSnapshotNotFound)
	}
	return nil
}

func (s *Store) loadRecords(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM snapshot_records
		WHERE snapshot_id = ?
		ORDER BY position ASC
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make([]ir.IRObject, 0, snap.Count)
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		r, err := unmarshalRecord(text)
		if err != nil {
			return fmt.Errorf("record %d: %w", len(records), err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate records: %w", err)
	}

	hash, err := ir.RecordsHash(records)
	if err != nil {
		return err
	}
	if len(records) != snap.Count || hash != snap.Hash {
		return fmt.Errorf("%w: have %d records hashing %s, want %d hashing %s",
			ErrHashMismatch, len(records), hash, snap.Count, snap.Hash)
	}
	snap.Records = records
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var snap Snapshot
	err := row.Scan(
		&snap.ID,
		&snap.Name,
		&snap.Seq,
		&snap.KeyField,
		&snap.Count,
		&snap.Hash,
		&snap.EngineVersion,
		&snap.IRVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	return snap, nil
}
