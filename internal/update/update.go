// Package update implements the Update Coordinator (spec §4.6): drives the Repo Adapter,
// Blob Identity Store, Definition Extractor and Reference Extractor over every un-indexed
// tag, committing results to the Cross-Reference Database in a strict definitions-then-
// references order, and serialising concurrent update runs with a single-writer file lock.
//
// Grounded on the teacher's bounded-concurrency idiom (promoted here to golang.org/x/sync's
// errgroup rather than hand-rolled sync.WaitGroup+channel fan-out) and cmd/bd/sync.go's use
// of github.com/gofrs/flock to serialise a mutating operation against on-disk state.
package update

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/untoldecay/elixir/internal/blobstore"
	"github.com/untoldecay/elixir/internal/config"
	"github.com/untoldecay/elixir/internal/extractor"
	"github.com/untoldecay/elixir/internal/repoadapter"
	"github.com/untoldecay/elixir/internal/types"
	"github.com/untoldecay/elixir/internal/xrefdb"
)

// Reporter receives progress events during a run; internal/progress implements this for the
// CLI, tests can pass a no-op.
type Reporter interface {
	TagStarted(runID, tag string)
	TagCompleted(runID, tag string, newBlobs int, elapsed time.Duration)
	BlobFailed(runID, tag string, num types.BlobNumber, pass xrefdb.Pass, err error)
}

type noopReporter struct{}

func (noopReporter) TagStarted(string, string)                                        {}
func (noopReporter) TagCompleted(string, string, int, time.Duration)                   {}
func (noopReporter) BlobFailed(string, string, types.BlobNumber, xrefdb.Pass, error) {}

// Coordinator runs update passes for one project.
type Coordinator struct {
	repo       repoadapter.Adapter
	db         *xrefdb.DB
	store      *blobstore.Store
	descriptor *config.Descriptor
	pipeline   *extractor.Pipeline
	workers    int
	lockPath   string
	lockWait   time.Duration
	reporter   Reporter
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReporter attaches a progress Reporter.
func WithReporter(r Reporter) Option {
	return func(c *Coordinator) { c.reporter = r }
}

// WithLockTimeout bounds how long Run waits to acquire the single-writer lock.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.lockWait = d }
}

// New builds a Coordinator. workers is the bounded worker-pool size (spec §6: "W >= 5,
// default 10"); dataDir holds the advisory lock file alongside the database.
func New(repo repoadapter.Adapter, db *xrefdb.DB, store *blobstore.Store, descriptor *config.Descriptor, dataDir string, workers int, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:       repo,
		db:         db,
		store:      store,
		descriptor: descriptor,
		pipeline:   extractor.NewPipeline(),
		workers:    workers,
		lockPath:   filepath.Join(dataDir, "update.lock"),
		lockWait:   30 * time.Second,
		reporter:   noopReporter{},
	}
	return c
}

// Result summarises one Run invocation.
type Result struct {
	RunID       string
	TagsIndexed []string
	TagsFailed  map[string]error
}

// Run enumerates every tag the repo adapter reports, skips those already indexed, and runs
// the definitions pass to completion before starting the references pass for each
// newly-discovered tag, committing deterministically and marking the tag indexed only once
// both passes succeed (spec §4.6, §5). A single advisory file lock ensures only one Run is
// ever the database's writer at a time (spec §5: "the coordinator thread is the only
// writer").
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	lock := flock.New(c.lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, c.lockWait)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%w: acquiring update lock: %w", types.ErrDatabaseBusy, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: another update is in progress (%s)", types.ErrDatabaseBusy, c.lockPath)
	}
	defer func() { _ = lock.Unlock() }()

	runID := uuid.NewString()
	result := &Result{RunID: runID, TagsFailed: make(map[string]error)}

	tags, err := c.repo.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tags: %w", types.ErrRepoUnavailable, err)
	}

	for _, tag := range tags {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: %w", types.ErrTagAborted, err)
		}

		already, err := c.db.IsIndexed(ctx, tag)
		if err != nil {
			return result, err
		}
		if already {
			continue
		}

		start := time.Now()
		c.reporter.TagStarted(runID, tag)
		newCount, err := c.indexTag(ctx, runID, tag)
		if err != nil {
			result.TagsFailed[tag] = err
			if os.Getenv("ELIXIR_FAIL_FAST") != "" {
				return result, err
			}
			continue
		}
		c.reporter.TagCompleted(runID, tag, newCount, time.Since(start))
		result.TagsIndexed = append(result.TagsIndexed, tag)
	}

	return result, nil
}

// indexTag runs both passes for one tag and marks it indexed on success.
func (c *Coordinator) indexTag(ctx context.Context, runID, tag string) (int, error) {
	entries, err := c.repo.TagTree(ctx, tag)
	if err != nil {
		return 0, fmt.Errorf("%w: tree for %s: %w", types.ErrRepoUnavailable, tag, err)
	}

	newBlobs := blobstore.NewBlobSetEmpty()
	pathEntries := make([]types.PathEntry, 0, len(entries))
	blobPaths := make(map[types.BlobNumber][]string)

	for _, e := range entries {
		num, isNew, err := c.store.Intern(ctx, e.Hash)
		if err != nil {
			return 0, fmt.Errorf("%w: interning %s: %w", types.ErrRepoUnavailable, e.Path, err)
		}
		if err := c.store.AddPath(ctx, num, e.Path); err != nil {
			return 0, err
		}
		if isNew {
			newBlobs.Add(num)
		}
		pathEntries = append(pathEntries, types.PathEntry{Path: e.Path, Blob: num})
		blobPaths[num] = append(blobPaths[num], e.Path)
	}

	if err := c.db.WriteTagTree(ctx, tag, pathEntries); err != nil {
		return 0, err
	}

	targets := c.retryTargets(newBlobs.Numbers(), blobPaths)

	if err := c.runDefinitionsPass(ctx, runID, tag, targets); err != nil {
		return 0, err
	}
	if err := c.runReferencesPass(ctx, runID, tag, targets); err != nil {
		return 0, err
	}

	if err := c.db.MarkIndexed(ctx, tag); err != nil {
		return 0, err
	}
	return newBlobs.Len(), nil
}

// blobTarget is one blob due for extraction this run: freshly interned, or previously marked
// partial and therefore retried (spec §9, resolved "retried every run").
type blobTarget struct {
	num   types.BlobNumber
	paths []string
}

// retryTargets merges this run's freshly-interned blobs with every blob still carrying a
// partial marker from a prior run.
func (c *Coordinator) retryTargets(fresh []types.BlobNumber, blobPaths map[types.BlobNumber][]string) []blobTarget {
	seen := make(map[types.BlobNumber]bool, len(fresh))
	targets := make([]blobTarget, 0, len(fresh))
	for _, num := range fresh {
		seen[num] = true
		targets = append(targets, blobTarget{num: num, paths: blobPaths[num]})
	}

	ctx := context.Background()
	for _, pass := range []xrefdb.Pass{xrefdb.PassDefs, xrefdb.PassRefs} {
		nums, _, err := c.db.PartialBlobs(ctx, pass)
		if err != nil {
			continue
		}
		for _, num := range nums {
			if seen[num] {
				continue
			}
			seen[num] = true
			existingPaths, err := c.db.PathsForBlob(ctx, num)
			if err != nil {
				continue
			}
			targets = append(targets, blobTarget{num: num, paths: existingPaths})
		}
	}
	return targets
}

// familiesFor classifies a blob's paths into the families its content should be tagged
// under, unioning across every path the blob is reachable at (spec §9: "run both" for a
// blob reachable under conflicting families).
func (c *Coordinator) familiesFor(paths []string) []types.Family {
	seen := make(map[types.Family]bool)
	var families []types.Family
	for _, p := range paths {
		for _, f := range c.descriptor.FamiliesFor(p) {
			if !seen[f] {
				seen[f] = true
				families = append(families, f)
			}
		}
	}
	return families
}

// runDefinitionsPass extracts and commits definitions for every target blob before the
// references pass is allowed to start (spec §4.6: "the definitions pass for a tag's new
// blobs must fully commit before the references pass begins").
func (c *Coordinator) runDefinitionsPass(ctx context.Context, runID, tag string, targets []blobTarget) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, t := range targets {
		t := t
		g.Go(func() error {
			families := c.familiesFor(t.paths)
			if len(families) == 0 {
				return nil
			}
			hash, err := c.store.Resolve(gctx, t.num)
			if err != nil {
				return err
			}
			content, err := c.repo.BlobBytes(gctx, hash)
			if err != nil {
				c.reporter.BlobFailed(runID, tag, t.num, xrefdb.PassDefs, err)
				return c.db.MarkPartial(ctx, t.num, families[0], xrefdb.PassDefs, err.Error())
			}
			defs, err := c.pipeline.Definitions(content, t.num, families)
			if err != nil {
				c.reporter.BlobFailed(runID, tag, t.num, xrefdb.PassDefs, err)
				return c.db.MarkPartial(ctx, t.num, families[0], xrefdb.PassDefs, err.Error())
			}
			if err := c.db.AppendDefs(ctx, defs); err != nil {
				return err
			}
			for _, f := range families {
				_ = c.db.ClearPartial(ctx, t.num, f, xrefdb.PassDefs)
			}
			return nil
		})
	}
	return g.Wait()
}

// runReferencesPass tokenizes every target blob for occurrences of any identifier already
// defined anywhere in the database, suppressing same-line-as-definition occurrences. The
// known-identifier dictionary is rebuilt once, up front, as the full key set of the defs map
// across every family (spec §4.6 step 4) -- not scoped to the family being tokenized, since
// (5)/(6) are keyed by identifier text alone and an identifier defined in one family is a
// valid reference target when it turns up in another (spec §9, §8 scenario 3).
func (c *Coordinator) runReferencesPass(ctx context.Context, runID, tag string, targets []blobTarget) error {
	known, err := c.knownIdents(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, t := range targets {
		t := t
		g.Go(func() error {
			families := c.familiesFor(t.paths)
			if len(families) == 0 {
				return nil
			}
			hash, err := c.store.Resolve(gctx, t.num)
			if err != nil {
				return err
			}
			content, err := c.repo.BlobBytes(gctx, hash)
			if err != nil {
				c.reporter.BlobFailed(runID, tag, t.num, xrefdb.PassRefs, err)
				return c.db.MarkPartial(ctx, t.num, families[0], xrefdb.PassRefs, err.Error())
			}

			ownDefs, err := c.db.DefsForBlob(gctx, t.num)
			if err != nil {
				return err
			}
			defLines := make(map[string][]int)
			for _, d := range ownDefs {
				defLines[d.Ident] = append(defLines[d.Ident], d.Line)
			}

			for _, family := range families {
				refs, err := extractor.References(content, family, known, defLines)
				if err != nil {
					c.reporter.BlobFailed(runID, tag, t.num, xrefdb.PassRefs, err)
					if markErr := c.db.MarkPartial(ctx, t.num, family, xrefdb.PassRefs, err.Error()); markErr != nil {
						return markErr
					}
					continue
				}
				if err := c.db.AppendRefs(ctx, t.num, family, refs); err != nil {
					return err
				}
				if err := c.db.ClearPartial(ctx, t.num, family, xrefdb.PassRefs); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// knownIdents returns every identifier ever defined, in any family -- the reference pass's
// dictionary of "things worth tokenizing for" (spec §4.4, §4.6 step 4).
func (c *Coordinator) knownIdents(ctx context.Context) (map[string]bool, error) {
	idents, err := c.db.AllDefinedIdents(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(idents))
	for _, i := range idents {
		known[i] = true
	}
	return known, nil
}
