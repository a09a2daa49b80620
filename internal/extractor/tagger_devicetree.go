package extractor

import (
	"bufio"
	"bytes"
	"regexp"

	"github.com/untoldecay/elixir/internal/types"
)

// deviceTreeTagger recognises node labels (`label: node@addr {`) as struct-kind definitions
// -- the closest existing Kind to "a named, addressable block" that device-tree source
// defines.
type deviceTreeTagger struct {
	label *regexp.Regexp
}

func newDeviceTreeTagger() *deviceTreeTagger {
	return &deviceTreeTagger{
		label: regexp.MustCompile(`^\s*([\w,.+-]+)\s*:\s*[\w@,.+-]+\s*\{`),
	}
}

func (t *deviceTreeTagger) Family() types.Family { return types.FamilyDeviceTree }

func (t *deviceTreeTagger) Tag(content []byte) ([]types.DefRecord, error) {
	var defs []types.DefRecord
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if m := t.label.FindStringSubmatch(scanner.Text()); m != nil {
			defs = append(defs, types.DefRecord{Ident: m[1], Line: line, Kind: types.KindStruct})
		}
	}
	return defs, scanner.Err()
}
