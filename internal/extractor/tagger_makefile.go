package extractor

import (
	"bufio"
	"bytes"
	"regexp"

	"github.com/untoldecay/elixir/internal/types"
)

// makefileTagger recognises target rules (`name: deps`) and variable assignments
// (`NAME = value`, `NAME := value`, `NAME ?= value`).
type makefileTagger struct {
	target   *regexp.Regexp
	variable *regexp.Regexp
}

func newMakefileTagger() *makefileTagger {
	return &makefileTagger{
		target:   regexp.MustCompile(`^([\w./%-]+)\s*:(?:[^=]|$)`),
		variable: regexp.MustCompile(`^(\w+)\s*[:+?]?=`),
	}
}

func (t *makefileTagger) Family() types.Family { return types.FamilyMakefile }

func (t *makefileTagger) Tag(content []byte) ([]types.DefRecord, error) {
	var defs []types.DefRecord
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if len(text) == 0 || text[0] == '\t' || text[0] == '#' {
			continue
		}
		if m := t.variable.FindStringSubmatch(text); m != nil {
			defs = append(defs, types.DefRecord{Ident: m[1], Line: line, Kind: types.KindVariable})
			continue
		}
		if m := t.target.FindStringSubmatch(text); m != nil && m[1] != ".PHONY" {
			defs = append(defs, types.DefRecord{Ident: m[1], Line: line, Kind: types.KindTarget})
		}
	}
	return defs, scanner.Err()
}
