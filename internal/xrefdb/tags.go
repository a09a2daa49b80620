package xrefdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/untoldecay/elixir/internal/types"
)

// ListTags returns every tag this database knows about, oldest-first by the order they were
// first written (the sequence the Update Coordinator enumerated them in).
func (db *DB) ListTags(ctx context.Context) ([]types.Tag, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT tag, indexed FROM tags ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: list_tags: %w", types.ErrDatabaseBusy, err)
	}
	defer rows.Close()
	var tags []types.Tag
	for rows.Next() {
		var t types.Tag
		var indexed int
		if err := rows.Scan(&t.Name, &indexed); err != nil {
			return nil, fmt.Errorf("%w: scanning tag: %w", types.ErrDatabaseCorrupt, err)
		}
		t.Indexed = indexed != 0
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// IsIndexed reports whether tag has been fully committed (both passes finished, spec §4.6).
func (db *DB) IsIndexed(ctx context.Context, tag string) (bool, error) {
	var indexed int
	err := db.conn.QueryRowContext(ctx, `SELECT indexed FROM tags WHERE tag = ?`, tag).Scan(&indexed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: is_indexed(%s): %w", types.ErrDatabaseBusy, tag, err)
	}
	return indexed != 0, nil
}

// WriteTagTree persists tag's tree write-once (spec §3, tag.tree): a tag whose tree row
// already exists is left untouched, matching the write-once-per-tag discipline -- the Update
// Coordinator only calls this the first time it encounters a tag.
func (db *DB) WriteTagTree(ctx context.Context, tag string, entries []types.PathEntry) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags WHERE tag = ?`, tag).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%w: checking tag %s: %w", types.ErrDatabaseBusy, tag, err)
		}
		if exists > 0 {
			return nil
		}

		var seq int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM tags`).Scan(&seq); err != nil {
			return fmt.Errorf("%w: allocating tag sequence: %w", types.ErrDatabaseBusy, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tags (tag, indexed, seq) VALUES (?, 0, ?)`, tag, seq); err != nil {
			return fmt.Errorf("%w: inserting tag %s: %w", types.ErrDatabaseBusy, tag, err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO tag_tree (tag, path, num, ord) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("%w: preparing tag_tree insert: %w", types.ErrDatabaseBusy, err)
		}
		defer stmt.Close()
		for i, e := range entries {
			if _, err := stmt.ExecContext(ctx, tag, e.Path, uint32(e.Blob), i); err != nil {
				return fmt.Errorf("%w: inserting tag_tree row %s: %w", types.ErrDatabaseBusy, e.Path, err)
			}
		}
		return nil
	})
}

// MarkIndexed flips a tag's indexed flag once both the definitions and references passes
// have fully committed (spec §4.6 "a tag becomes visible to queries only after both passes
// commit").
func (db *DB) MarkIndexed(ctx context.Context, tag string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE tags SET indexed = 1 WHERE tag = ?`, tag)
	if err != nil {
		return fmt.Errorf("%w: mark_indexed(%s): %w", types.ErrDatabaseBusy, tag, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: mark_indexed(%s): no such tag", types.ErrDatabaseCorrupt, tag)
	}
	return nil
}

// TagTree returns tag's (path, blob) listing in the order it was recorded.
func (db *DB) TagTree(ctx context.Context, tag string) ([]types.PathEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path, num FROM tag_tree WHERE tag = ? ORDER BY ord`, tag)
	if err != nil {
		return nil, fmt.Errorf("%w: tag_tree(%s): %w", types.ErrDatabaseBusy, tag, err)
	}
	defer rows.Close()
	var entries []types.PathEntry
	for rows.Next() {
		var e types.PathEntry
		var num uint32
		if err := rows.Scan(&e.Path, &num); err != nil {
			return nil, fmt.Errorf("%w: scanning tag_tree row: %w", types.ErrDatabaseCorrupt, err)
		}
		e.Blob = types.BlobNumber(num)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// NumForPath resolves a single path within tag's tree, for the Query Interface's file()
// operation.
func (db *DB) NumForPath(ctx context.Context, tag, path string) (types.BlobNumber, bool, error) {
	var num uint32
	err := db.conn.QueryRowContext(ctx, `SELECT num FROM tag_tree WHERE tag = ? AND path = ?`, tag, path).Scan(&num)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: num_for_path(%s, %s): %w", types.ErrDatabaseBusy, tag, path, err)
	}
	return types.BlobNumber(num), true, nil
}
