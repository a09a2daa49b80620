package extractor

import (
	"bufio"
	"bytes"
	"regexp"
	"sort"
	"strings"

	"github.com/untoldecay/elixir/internal/types"
)

var identToken = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// lineCommentPrefixes maps a family to the token that starts a line comment in it, used to
// strip the trailing portion of each line before tokenizing -- a cheap approximation of
// "not semantic" lexing (spec §4.4: "a reference is any occurrence of a known identifier
// outside its own definition, comments and string literals excluded on a best-effort
// basis").
var lineCommentPrefixes = map[types.Family]string{
	types.FamilyC:         "//",
	types.FamilyKconfig:   "#",
	types.FamilyDeviceTree: "//",
	types.FamilyMakefile:  "#",
}

// References tokenizes content for every occurrence of an identifier in known, returning,
// per identifier, the sorted deduplicated set of lines it occurs on outside its own
// definition lines in defLines (spec's Open Question #1, resolved "same-line is not a
// reference" -- see DESIGN.md).
func References(content []byte, family types.Family, known map[string]bool, defLines map[string][]int) (map[string][]int, error) {
	occurrences := make(map[string]map[int]struct{})
	commentPrefix := lineCommentPrefixes[family]

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if commentPrefix != "" {
			if idx := strings.Index(text, commentPrefix); idx >= 0 {
				text = text[:idx]
			}
		}
		text = stripStringLiterals(text)

		for _, tok := range identToken.FindAllString(text, -1) {
			if !known[tok] {
				continue
			}
			if isDefLine(defLines[tok], line) {
				continue
			}
			if occurrences[tok] == nil {
				occurrences[tok] = make(map[int]struct{})
			}
			occurrences[tok][line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	out := make(map[string][]int, len(occurrences))
	for ident, lineSet := range occurrences {
		lines := make([]int, 0, len(lineSet))
		for l := range lineSet {
			lines = append(lines, l)
		}
		sort.Ints(lines)
		out[ident] = lines
	}
	return out, nil
}

func isDefLine(lines []int, line int) bool {
	for _, l := range lines {
		if l == line {
			return true
		}
	}
	return false
}

// stripStringLiterals removes the contents of single- and double-quoted runs on one line, a
// best-effort pass that avoids tokenizing identifiers that only occur inside a literal.
func stripStringLiterals(text string) string {
	var out strings.Builder
	inString := false
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				inString = false
			}
			continue
		}
		if c == '"' || c == '\'' {
			inString = true
			quote = c
			continue
		}
		out.WriteByte(c)
	}
	return out.String()
}
