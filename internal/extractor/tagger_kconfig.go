package extractor

import (
	"bufio"
	"bytes"
	"regexp"

	"github.com/untoldecay/elixir/internal/types"
)

// kconfigTagger recognises `config FOO` / `menuconfig FOO` stanzas, the only definition
// shape Kconfig files have.
type kconfigTagger struct {
	config *regexp.Regexp
}

func newKconfigTagger() *kconfigTagger {
	return &kconfigTagger{
		config: regexp.MustCompile(`^\s*(?:menu)?config\s+(\w+)`),
	}
}

func (t *kconfigTagger) Family() types.Family { return types.FamilyKconfig }

func (t *kconfigTagger) Tag(content []byte) ([]types.DefRecord, error) {
	var defs []types.DefRecord
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if m := t.config.FindStringSubmatch(scanner.Text()); m != nil {
			defs = append(defs, types.DefRecord{Ident: m[1], Line: line, Kind: types.KindConfig})
		}
	}
	return defs, scanner.Err()
}
