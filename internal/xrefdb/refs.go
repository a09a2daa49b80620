package xrefdb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/untoldecay/elixir/internal/types"
)

// AppendRefs persists, for one (blob, family), every identifier's occurrence lines, set-union
// merged per (ident, num, family) (spec §3: refs stores "a sorted, deduplicated line list").
// Each identifier's lines are unioned with whatever is already committed for that key, so a
// retried references pass never loses or duplicates a line.
func (db *DB) AppendRefs(ctx context.Context, num types.BlobNumber, family types.Family, refs map[string][]int) error {
	if len(refs) == 0 {
		return nil
	}
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		for ident, lines := range refs {
			var existing string
			err := tx.QueryRowContext(ctx, `
				SELECT lines FROM refs WHERE ident = ? AND num = ? AND family = ?
			`, ident, uint32(num), string(family)).Scan(&existing)
			if err != nil && err != sql.ErrNoRows {
				return fmt.Errorf("%w: reading refs for %s@%d: %w", types.ErrDatabaseBusy, ident, num, err)
			}

			merged := mergeLines(existing, lines)
			_, err = tx.ExecContext(ctx, `
				INSERT INTO refs (ident, num, family, lines) VALUES (?, ?, ?, ?)
				ON CONFLICT(ident, num, family) DO UPDATE SET lines = excluded.lines
			`, ident, uint32(num), string(family), encodeLines(merged))
			if err != nil {
				return fmt.Errorf("%w: writing refs for %s@%d: %w", types.ErrDatabaseBusy, ident, num, err)
			}
		}
		return nil
	})
}

func mergeLines(existing string, incoming []int) []int {
	set := make(map[int]struct{}, len(incoming))
	for _, l := range incoming {
		set[l] = struct{}{}
	}
	if existing != "" {
		for _, part := range strings.Split(existing, ",") {
			if n, err := strconv.Atoi(part); err == nil {
				set[n] = struct{}{}
			}
		}
	}
	out := make([]int, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

func encodeLines(lines []int) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = strconv.Itoa(l)
	}
	return strings.Join(parts, ",")
}

func decodeLines(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// RefsForBlob returns every reference recorded against num, across all identifiers -- the
// Query Interface's file() overlay source for reference sites.
func (db *DB) RefsForBlob(ctx context.Context, num types.BlobNumber) (map[string][]types.RefEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT ident, family, lines FROM refs WHERE num = ? ORDER BY ident
	`, uint32(num))
	if err != nil {
		return nil, fmt.Errorf("%w: refs_for_blob(%d): %w", types.ErrDatabaseBusy, num, err)
	}
	defer rows.Close()
	out := make(map[string][]types.RefEntry)
	for rows.Next() {
		var ident, family, lines string
		if err := rows.Scan(&ident, &family, &lines); err != nil {
			return nil, fmt.Errorf("%w: scanning ref row: %w", types.ErrDatabaseCorrupt, err)
		}
		out[ident] = append(out[ident], types.RefEntry{Blob: num, Family: types.Family(family), Lines: decodeLines(lines)})
	}
	return out, rows.Err()
}

// ReferencedIdents returns every distinct identifier with at least one persisted reference --
// the left side of the reference closure invariant (spec §8: "every identifier key in refs is
// also a key in defs").
func (db *DB) ReferencedIdents(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT ident FROM refs`)
	if err != nil {
		return nil, fmt.Errorf("%w: referenced_idents: %w", types.ErrDatabaseBusy, err)
	}
	defer rows.Close()
	var idents []string
	for rows.Next() {
		var i string
		if err := rows.Scan(&i); err != nil {
			return nil, fmt.Errorf("%w: scanning ident: %w", types.ErrDatabaseCorrupt, err)
		}
		idents = append(idents, i)
	}
	return idents, rows.Err()
}

// RefsForIdent returns every (blob, family, lines) entry recorded for ident -- the Query
// Interface's ident() operation, reference half.
func (db *DB) RefsForIdent(ctx context.Context, ident string, family types.Family) ([]types.RefEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT num, lines FROM refs WHERE ident = ? AND family = ? ORDER BY num
	`, ident, string(family))
	if err != nil {
		return nil, fmt.Errorf("%w: refs_for_ident(%s): %w", types.ErrDatabaseBusy, ident, err)
	}
	defer rows.Close()
	var out []types.RefEntry
	for rows.Next() {
		var num uint32
		var lines string
		if err := rows.Scan(&num, &lines); err != nil {
			return nil, fmt.Errorf("%w: scanning ref row: %w", types.ErrDatabaseCorrupt, err)
		}
		out = append(out, types.RefEntry{Blob: types.BlobNumber(num), Family: family, Lines: decodeLines(lines)})
	}
	return out, rows.Err()
}
