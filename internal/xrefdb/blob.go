package xrefdb

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/untoldecay/elixir/internal/types"
)

// HashToNum looks up the dense number assigned to hash. ok is false if hash has never been
// interned.
func (db *DB) HashToNum(ctx context.Context, hash types.Hash) (types.BlobNumber, bool, error) {
	var num uint32
	err := db.conn.QueryRowContext(ctx, `SELECT num FROM blob_identity WHERE hash = ?`, hash.String()).Scan(&num)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: hash_to_num(%s): %w", types.ErrDatabaseBusy, hash, err)
	}
	return types.BlobNumber(num), true, nil
}

// NumToHash is the inverse of HashToNum.
func (db *DB) NumToHash(ctx context.Context, num types.BlobNumber) (types.Hash, error) {
	var hexHash string
	err := db.conn.QueryRowContext(ctx, `SELECT hash FROM blob_identity WHERE num = ?`, uint32(num)).Scan(&hexHash)
	if err == sql.ErrNoRows {
		return types.Hash{}, fmt.Errorf("%w: num %d", types.ErrDatabaseCorrupt, num)
	}
	if err != nil {
		return types.Hash{}, fmt.Errorf("%w: num_to_hash(%d): %w", types.ErrDatabaseBusy, num, err)
	}
	var h types.Hash
	raw, err := hex.DecodeString(hexHash)
	if err != nil || len(raw) != len(h) {
		return types.Hash{}, fmt.Errorf("%w: decoding stored hash %q: %v", types.ErrDatabaseCorrupt, hexHash, err)
	}
	copy(h[:], raw)
	return h, nil
}

// InternBlob assigns hash the next dense blob number if it has not been seen before, or
// returns the number it already holds. isNew reports whether this call allocated a fresh
// number -- the signal the Update Coordinator uses to route the blob into the extraction
// passes (spec §4.2, §4.6).
//
// Allocation is implemented with the same INSERT...ON CONFLICT...RETURNING counter pattern
// the teacher uses for its hierarchical child-ID counters (internal/storage/sqlite/hash_ids.go),
// generalised from a per-parent counter to the single global next_B counter in meta.
func (db *DB) InternBlob(ctx context.Context, hash types.Hash) (num types.BlobNumber, isNew bool, err error) {
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		var existing uint32
		scanErr := tx.QueryRowContext(ctx, `SELECT num FROM blob_identity WHERE hash = ?`, hash.String()).Scan(&existing)
		if scanErr == nil {
			num = types.BlobNumber(existing)
			isNew = false
			return nil
		}
		if scanErr != sql.ErrNoRows {
			return fmt.Errorf("%w: checking hash %s: %w", types.ErrDatabaseBusy, hash, scanErr)
		}

		var next int64
		allocErr := tx.QueryRowContext(ctx, `
			INSERT INTO meta (key, value) VALUES ('next_blob', '2')
			ON CONFLICT(key) DO UPDATE SET value = CAST(meta.value AS INTEGER) + 1
			RETURNING CAST(value AS INTEGER) - 1
		`).Scan(&next)
		if allocErr != nil {
			return fmt.Errorf("%w: allocating blob number for %s: %w", types.ErrDatabaseBusy, hash, allocErr)
		}

		if _, execErr := tx.ExecContext(ctx, `INSERT INTO blob_identity (hash, num) VALUES (?, ?)`, hash.String(), next); execErr != nil {
			return fmt.Errorf("%w: recording blob identity for %s: %w", types.ErrDatabaseBusy, hash, execErr)
		}
		num = types.BlobNumber(next)
		isNew = true
		return nil
	})
	return num, isNew, err
}

// AddPath records that num has been observed at path, a set-union append (spec §3,
// blob.num_to_paths) -- duplicates across tags collapse via the primary key.
func (db *DB) AddPath(ctx context.Context, num types.BlobNumber, path string) error {
	_, err := db.conn.ExecContext(ctx, `INSERT OR IGNORE INTO blob_paths (num, path) VALUES (?, ?)`, uint32(num), path)
	if err != nil {
		return fmt.Errorf("%w: add_path(%d, %s): %w", types.ErrDatabaseBusy, num, path, err)
	}
	return nil
}

// PathsForBlob returns every path num has ever been reachable under.
func (db *DB) PathsForBlob(ctx context.Context, num types.BlobNumber) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path FROM blob_paths WHERE num = ? ORDER BY path`, uint32(num))
	if err != nil {
		return nil, fmt.Errorf("%w: paths_for_blob(%d): %w", types.ErrDatabaseBusy, num, err)
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("%w: scanning path: %w", types.ErrDatabaseCorrupt, err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// MaxBlobNum returns the highest blob number ever allocated, or 0 if none. Nothing in the
// repository calls it: the Blob Identity Store rebuilds its state from AllBlobNums on open,
// and InternBlob always goes through the meta-backed counter.
func (db *DB) MaxBlobNum(ctx context.Context) (types.BlobNumber, error) {
	var max sql.NullInt64
	err := db.conn.QueryRowContext(ctx, `SELECT MAX(num) FROM blob_identity`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("%w: max_blob_num: %w", types.ErrDatabaseBusy, err)
	}
	if !max.Valid {
		return 0, nil
	}
	return types.BlobNumber(max.Int64), nil
}

// AllBlobNums streams every allocated blob number, ascending -- the input to the
// dense-numbering invariant check (spec §8) and elixir doctor.
func (db *DB) AllBlobNums(ctx context.Context) ([]types.BlobNumber, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT num FROM blob_identity ORDER BY num`)
	if err != nil {
		return nil, fmt.Errorf("%w: all_blob_nums: %w", types.ErrDatabaseBusy, err)
	}
	defer rows.Close()
	var nums []types.BlobNumber
	for rows.Next() {
		var n uint32
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("%w: scanning blob num: %w", types.ErrDatabaseCorrupt, err)
		}
		nums = append(nums, types.BlobNumber(n))
	}
	return nums, rows.Err()
}
