package xrefdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/untoldecay/elixir/internal/types"
)

// AppendDefs persists defs, append-only (spec §3): rows that already exist at the same
// (num, family, ident, line) key are left untouched, so a retried definitions pass over a
// blob that partially committed before is safe to re-run.
func (db *DB) AppendDefs(ctx context.Context, defs []types.DefRecord) error {
	if len(defs) == 0 {
		return nil
	}
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO defs (num, family, ident, line, kind) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(num, family, ident, line) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("%w: preparing defs insert: %w", types.ErrDatabaseBusy, err)
		}
		defer stmt.Close()
		for _, d := range defs {
			if _, err := stmt.ExecContext(ctx, uint32(d.Blob), string(d.Family), d.Ident, d.Line, string(d.Kind)); err != nil {
				return fmt.Errorf("%w: appending def %s@%d: %w", types.ErrDatabaseBusy, d.Ident, d.Blob, err)
			}
		}
		return nil
	})
}

// DefsForBlob returns every definition recorded for num, ordered by line -- the Query
// Interface's file() overlay source for definition sites.
func (db *DB) DefsForBlob(ctx context.Context, num types.BlobNumber) ([]types.DefRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT ident, line, kind, family FROM defs WHERE num = ? ORDER BY line
	`, uint32(num))
	if err != nil {
		return nil, fmt.Errorf("%w: defs_for_blob(%d): %w", types.ErrDatabaseBusy, num, err)
	}
	defer rows.Close()
	var out []types.DefRecord
	for rows.Next() {
		d := types.DefRecord{Blob: num}
		var kind, family string
		if err := rows.Scan(&d.Ident, &d.Line, &kind, &family); err != nil {
			return nil, fmt.Errorf("%w: scanning def row: %w", types.ErrDatabaseCorrupt, err)
		}
		d.Kind = types.Kind(kind)
		d.Family = types.Family(family)
		out = append(out, d)
	}
	return out, rows.Err()
}

// DefsForIdent returns every definition site of ident across every blob -- the Query
// Interface's ident() operation, definition half.
func (db *DB) DefsForIdent(ctx context.Context, ident string, family types.Family) ([]types.DefRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT num, line, kind FROM defs WHERE ident = ? AND family = ? ORDER BY num, line
	`, ident, string(family))
	if err != nil {
		return nil, fmt.Errorf("%w: defs_for_ident(%s): %w", types.ErrDatabaseBusy, ident, err)
	}
	defer rows.Close()
	var out []types.DefRecord
	for rows.Next() {
		d := types.DefRecord{Ident: ident, Family: family}
		var num uint32
		var kind string
		if err := rows.Scan(&num, &d.Line, &kind); err != nil {
			return nil, fmt.Errorf("%w: scanning def row: %w", types.ErrDatabaseCorrupt, err)
		}
		d.Blob = types.BlobNumber(num)
		d.Kind = types.Kind(kind)
		out = append(out, d)
	}
	return out, rows.Err()
}

// IdentsWithPrefix returns every distinct identifier with a definition whose name starts
// with prefix, ascending -- the Query Interface's search() operation.
func (db *DB) IdentsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	like := escapeLike(prefix) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT ident FROM defs WHERE ident LIKE ? ESCAPE '\' ORDER BY ident
	`, like)
	if err != nil {
		return nil, fmt.Errorf("%w: idents_with_prefix(%s): %w", types.ErrDatabaseBusy, prefix, err)
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

// AllDefinedIdents returns every distinct identifier with at least one definition in any
// family -- the reference pass's known_idents dictionary (spec §4.6 step 4: "the in-memory
// set of known identifiers as the key set of (5)"). (5) is keyed by identifier text alone,
// not per family (spec §9), so an identifier defined under one family is a valid reference
// target when tokenizing content of a different family -- this is what makes the cross-family
// case in scenario 3 (§8) work.
func (db *DB) AllDefinedIdents(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT ident FROM defs`)
	if err != nil {
		return nil, fmt.Errorf("%w: all_defined_idents: %w", types.ErrDatabaseBusy, err)
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

// IdentsForFamily returns every distinct identifier with at least one definition in family.
// The Query Interface does not call it; its Search uses IdentsWithPrefix across all families.
func (db *DB) IdentsForFamily(ctx context.Context, family types.Family) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT ident FROM defs WHERE family = ?`, string(family))
	if err != nil {
		return nil, fmt.Errorf("%w: idents_for_family(%s): %w", types.ErrDatabaseBusy, family, err)
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

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' || c == '%' || c == '_' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
