package types

import "errors"

// Error kinds from spec §7. Each is a distinct sentinel so callers can classify with
// errors.Is; wrapping call sites attach the offending blob/tag with fmt.Errorf("...: %w").
var (
	// ErrRepoUnavailable means the adapter cannot reach the version-control store at all.
	// Fatal: the update run aborts.
	ErrRepoUnavailable = errors.New("elixir: repo unavailable")

	// ErrBlobMissing means a hash known to a tag's tree is no longer retrievable as content.
	// Local: the blob is recorded as partial and the run continues.
	ErrBlobMissing = errors.New("elixir: blob missing")

	// ErrExtractorFailed means the tags tool or lexer errored or timed out on one blob.
	// Local: the blob is marked partial in the affected pass only.
	ErrExtractorFailed = errors.New("elixir: extractor failed")

	// ErrDatabaseBusy means a transient write-contention or store failure. Retried with
	// bounded backoff by the caller; escalates to fatal once the retry budget is spent.
	ErrDatabaseBusy = errors.New("elixir: database busy")

	// ErrDatabaseCorrupt means an invariant violation was detected (e.g. a blob number
	// present in defs/refs but absent from the hash<->number maps). Fatal, no recovery.
	ErrDatabaseCorrupt = errors.New("elixir: database corrupt")

	// ErrTagAborted means the update run was cancelled mid-tag. The tag is left un-indexed
	// and is retriable on the next run.
	ErrTagAborted = errors.New("elixir: tag aborted")
)
