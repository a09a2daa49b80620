// Package extractor implements the Definition Extractor (spec §4.3) and Reference Extractor
// (spec §4.4): family-aware lexical tagging of a blob's content into (identifier, line,
// kind) definition tuples, and a tokenizer that finds every further occurrence of a known
// identifier outside its own definition line.
//
// Grounded on the teacher's internal/extractor package: an Extractor interface plus a
// Pipeline that runs every applicable extractor and unions results by name (here: by
// family), generalised from free-text entity extraction to family-scoped lexical rules.
package extractor

import (
	"fmt"
	"sort"

	"github.com/untoldecay/elixir/internal/types"
)

// Tagger is one family's lexical-tagging strategy: given a blob's raw content, it returns
// every (identifier, line, kind) definition tuple it recognises. Implementations are pure
// and stateless so the Update Coordinator's worker pool can call them concurrently.
type Tagger interface {
	Tag(content []byte) ([]types.DefRecord, error)
	Family() types.Family
}

// Pipeline runs every registered Tagger applicable to a blob's set of families and unions
// the results, each tuple stamped with the family that produced it (spec §4.3: "the
// extractor is invoked per family and results are unioned, each tuple tagged with the family
// that produced it").
type Pipeline struct {
	taggers map[types.Family]Tagger
}

// NewPipeline returns a Pipeline with the built-in family taggers registered (spec §3's
// closed family set: C, Kconfig, device-tree, Makefile).
func NewPipeline() *Pipeline {
	p := &Pipeline{taggers: make(map[types.Family]Tagger)}
	for _, t := range []Tagger{
		newCTagger(),
		newKconfigTagger(),
		newDeviceTreeTagger(),
		newMakefileTagger(),
	} {
		p.taggers[t.Family()] = t
	}
	return p
}

// Definitions runs the tagger for every family in families against content, unioning the
// results. A family with no registered tagger is silently skipped: a project descriptor may
// declare families beyond this core's built-in set (spec §6, project plug-ins), and such
// families simply never produce definitions here.
func (p *Pipeline) Definitions(content []byte, blob types.BlobNumber, families []types.Family) ([]types.DefRecord, error) {
	var out []types.DefRecord
	for _, family := range families {
		tagger, ok := p.taggers[family]
		if !ok {
			continue
		}
		defs, err := tagger.Tag(content)
		if err != nil {
			return nil, fmt.Errorf("%w: family %s: %w", types.ErrExtractorFailed, family, err)
		}
		for i := range defs {
			defs[i].Blob = blob
			defs[i].Family = family
		}
		out = append(out, defs...)
	}
	// spec §4.3: "output is sorted by (ident, line)".
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ident != out[j].Ident {
			return out[i].Ident < out[j].Ident
		}
		return out[i].Line < out[j].Line
	})
	return dedupeDefs(out), nil
}

func dedupeDefs(defs []types.DefRecord) []types.DefRecord {
	seen := make(map[types.DefRecord]struct{}, len(defs))
	out := defs[:0]
	for _, d := range defs {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
