package xrefdb

// schema holds the full DDL for the six logical maps (spec §4.5, §3) plus the metadata
// table that carries the schema version and the blob counter's restart checkpoint. Laid
// out as one constant string, the same shape as the teacher's own schema.go.
const schema = `
-- Metadata: schema version and the monotonic blob counter (§4.2).
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- blob.hash_to_num / blob.num_to_hash: the bijective identity map (§3). Both directions are
-- persisted as columns of one table rather than two tables, since they are always written
-- and read together -- this still satisfies the "two logical maps" contract at the query
-- layer (hashToNum / numToHash below each address a single column).
CREATE TABLE IF NOT EXISTS blob_identity (
    hash TEXT NOT NULL UNIQUE,
    num  INTEGER PRIMARY KEY
);

-- blob.num_to_paths: append-only, set-union persistence (§3) -- every path a blob number has
-- ever been reachable under, across every tag ever indexed.
CREATE TABLE IF NOT EXISTS blob_paths (
    num  INTEGER NOT NULL,
    path TEXT NOT NULL,
    PRIMARY KEY (num, path)
);
CREATE INDEX IF NOT EXISTS idx_blob_paths_num ON blob_paths(num);

-- tag.tree: write-once-per-tag (§3) -- the ordered (path, blob) listing for one tag's
-- snapshot, plus whether that tag has been fully indexed (defs and refs committed).
CREATE TABLE IF NOT EXISTS tags (
    tag      TEXT PRIMARY KEY,
    indexed  INTEGER NOT NULL DEFAULT 0,
    seq      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tag_tree (
    tag      TEXT NOT NULL,
    path     TEXT NOT NULL,
    num      INTEGER NOT NULL,
    ord      INTEGER NOT NULL,
    PRIMARY KEY (tag, path),
    FOREIGN KEY (tag) REFERENCES tags(tag) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_tag_tree_tag_ord ON tag_tree(tag, ord);

-- defs: append-only (§3) -- one row per (blob, family, ident, line) definition occurrence.
CREATE TABLE IF NOT EXISTS defs (
    num    INTEGER NOT NULL,
    family TEXT NOT NULL,
    ident  TEXT NOT NULL,
    line   INTEGER NOT NULL,
    kind   TEXT NOT NULL,
    PRIMARY KEY (num, family, ident, line)
);
CREATE INDEX IF NOT EXISTS idx_defs_ident ON defs(ident);
CREATE INDEX IF NOT EXISTS idx_defs_num ON defs(num);

-- refs: append-only, one line list per (ident, blob, family) (§3) -- lines is a sorted,
-- deduplicated comma-joined decimal list, merged on append.
CREATE TABLE IF NOT EXISTS refs (
    ident  TEXT NOT NULL,
    num    INTEGER NOT NULL,
    family TEXT NOT NULL,
    lines  TEXT NOT NULL,
    PRIMARY KEY (ident, num, family)
);
CREATE INDEX IF NOT EXISTS idx_refs_num ON refs(num);

-- partial: blobs whose definitions or references pass failed for a tag, retried whenever a
-- later tag is indexed (§9 Open Question, resolved "retried", see DESIGN.md).
CREATE TABLE IF NOT EXISTS partial (
    num    INTEGER NOT NULL,
    family TEXT NOT NULL,
    pass   TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (num, family, pass)
);
`

// SchemaVersion is the current on-disk schema version, compared against the persisted
// meta.schema_version value with golang.org/x/mod/semver. Bumped on any incompatible DDL
// change; elixir carries no migration runner because there is, as yet, only one version.
const SchemaVersion = "v1.0.0"
