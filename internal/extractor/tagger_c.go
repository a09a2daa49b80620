package extractor

import (
	"bufio"
	"bytes"
	"regexp"

	"github.com/untoldecay/elixir/internal/types"
)

// cTagger recognises C definitions with the same shape of simple, line-anchored regexes the
// teacher's own extractor uses for its entity patterns: no preprocessing, no AST, just rules
// that are right often enough for a cross-referencer (spec §4.3: "lexical, not semantic").
type cTagger struct {
	function *regexp.Regexp
	macro    *regexp.Regexp
	strukt   *regexp.Regexp
	variable *regexp.Regexp
}

func newCTagger() *cTagger {
	return &cTagger{
		// "<type> name(args)" or "<type> name(args) {" at the start of a line: a function
		// definition, not a prototype (prototypes end in ';' and are excluded because the line
		// must end right after the closing paren or an opening brace).
		function: regexp.MustCompile(`^(?:\w+[\s*]+)+(\w+)\s*\([^;{]*\)\s*\{?\s*$`),
		macro:    regexp.MustCompile(`^\s*#\s*define\s+(\w+)`),
		strukt:   regexp.MustCompile(`^\s*(?:typedef\s+)?struct\s+(\w+)\s*\{?\s*$`),
		// "<type> name;" or "<type> name = ...;": a variable declaration, no parens before
		// the name (that would be a function) and no trailing brace (that would be a
		// struct/block). Leading whitespace is allowed, so indented declarations match too;
		// a statement whose first word is a control keyword ("return x;") does not count.
		variable: regexp.MustCompile(`^\s*(?:static\s+|const\s+|extern\s+)*(\w+)[\s*]+(\w+)\s*(?:=[^;]*)?;`),
	}
}

func (t *cTagger) Family() types.Family { return types.FamilyC }

func (t *cTagger) Tag(content []byte) ([]types.DefRecord, error) {
	var defs []types.DefRecord
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if m := t.macro.FindStringSubmatch(text); m != nil {
			defs = append(defs, types.DefRecord{Ident: m[1], Line: line, Kind: types.KindMacro})
			continue
		}
		if m := t.strukt.FindStringSubmatch(text); m != nil {
			defs = append(defs, types.DefRecord{Ident: m[1], Line: line, Kind: types.KindStruct})
			continue
		}
		if m := t.function.FindStringSubmatch(text); m != nil && !isControlKeyword(m[1]) {
			defs = append(defs, types.DefRecord{Ident: m[1], Line: line, Kind: types.KindFunction})
			continue
		}
		if m := t.variable.FindStringSubmatch(text); m != nil && !isControlKeyword(m[1]) && !isControlKeyword(m[2]) {
			defs = append(defs, types.DefRecord{Ident: m[2], Line: line, Kind: types.KindVariable})
		}
	}
	return defs, scanner.Err()
}

var cControlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
}

func isControlKeyword(ident string) bool {
	return cControlKeywords[ident]
}
