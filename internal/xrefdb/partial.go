package xrefdb

import (
	"context"
	"fmt"

	"github.com/untoldecay/elixir/internal/types"
)

// Pass names a partial-blob marker belongs to: elixir runs a definitions pass and a
// references pass independently per blob, per family (spec §4.3/§4.4), and either can fail
// without affecting the other.
type Pass string

const (
	PassDefs Pass = "defs"
	PassRefs Pass = "refs"
)

// MarkPartial records that the given pass failed for (num, family), so the indexing of a
// later tag retries it (spec §9 Open Question, resolved "retried" -- see DESIGN.md).
func (db *DB) MarkPartial(ctx context.Context, num types.BlobNumber, family types.Family, pass Pass, reason string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO partial (num, family, pass, reason) VALUES (?, ?, ?, ?)
		ON CONFLICT(num, family, pass) DO UPDATE SET reason = excluded.reason
	`, uint32(num), string(family), string(pass), reason)
	if err != nil {
		return fmt.Errorf("%w: mark_partial(%d, %s, %s): %w", types.ErrDatabaseBusy, num, family, pass, err)
	}
	return nil
}

// ClearPartial removes a partial marker once its pass has succeeded.
func (db *DB) ClearPartial(ctx context.Context, num types.BlobNumber, family types.Family, pass Pass) error {
	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM partial WHERE num = ? AND family = ? AND pass = ?
	`, uint32(num), string(family), string(pass))
	if err != nil {
		return fmt.Errorf("%w: clear_partial(%d, %s, %s): %w", types.ErrDatabaseBusy, num, family, pass, err)
	}
	return nil
}

// PartialBlobs returns every (num, family) pair still marked partial for pass -- the set the
// Update Coordinator re-submits to the extractor each time it indexes a tag, until it clears.
func (db *DB) PartialBlobs(ctx context.Context, pass Pass) ([]types.BlobNumber, []types.Family, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT num, family FROM partial WHERE pass = ? ORDER BY num`, string(pass))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: partial_blobs(%s): %w", types.ErrDatabaseBusy, pass, err)
	}
	defer rows.Close()
	var nums []types.BlobNumber
	var families []types.Family
	for rows.Next() {
		var num uint32
		var family string
		if err := rows.Scan(&num, &family); err != nil {
			return nil, nil, fmt.Errorf("%w: scanning partial row: %w", types.ErrDatabaseCorrupt, err)
		}
		nums = append(nums, types.BlobNumber(num))
		families = append(families, types.Family(family))
	}
	return nums, families, rows.Err()
}
