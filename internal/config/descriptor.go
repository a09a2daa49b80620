package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/untoldecay/elixir/internal/types"
)

// FamilyRule maps a glob-style match against a path's base name or extension to a language
// family. Rules are evaluated in declaration order and every rule that matches a path
// contributes its family (each family at most once), so a path or blob that maps to several
// families runs every matching family's extractor per spec §4.3 ("run both").
type FamilyRule struct {
	Match  string `toml:"match"`
	Family string `toml:"family"`
}

// Descriptor is the project-specific plug-in described in spec §6: family-classification
// toggles and tag-naming/filtering policy, declared by the project being indexed rather
// than by elixir's own configuration.
type Descriptor struct {
	Families       []FamilyRule `toml:"family"`
	TagFilter      string       `toml:"tag_filter"`
	HierarchyDepth int          `toml:"hierarchy_max_depth"`
}

// defaultFamilies mirrors the closed set sketched in spec §3 (C, Kconfig, device-tree,
// makefile) for projects that ship no elixir.toml at all.
var defaultFamilies = []FamilyRule{
	{Match: "*.c,*.h", Family: string(types.FamilyC)},
	{Match: "Kconfig,Kconfig.*", Family: string(types.FamilyKconfig)},
	{Match: "*.dts,*.dtsi", Family: string(types.FamilyDeviceTree)},
	{Match: "Makefile,*.mk", Family: string(types.FamilyMakefile)},
}

// LoadDescriptor reads elixir.toml from the repository root, if present, else returns the
// built-in default family table.
func LoadDescriptor(repoRoot string) (*Descriptor, error) {
	path := filepath.Join(repoRoot, "elixir.toml")
	d := &Descriptor{Families: defaultFamilies, HierarchyDepth: 3}
	if _, err := os.Stat(path); err != nil {
		return d, nil
	}
	if _, err := toml.DecodeFile(path, d); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if len(d.Families) == 0 {
		d.Families = defaultFamilies
	}
	return d, nil
}

// FamiliesFor returns every family whose rule matches path, in declaration order. A path
// matching no rule yields an empty slice: the caller should skip extraction for it (it is
// not in any configured language family).
func (d *Descriptor) FamiliesFor(path string) []types.Family {
	base := filepath.Base(path)
	var families []types.Family
	seen := make(map[string]bool)
	for _, rule := range d.Families {
		if seen[rule.Family] {
			continue
		}
		for _, pattern := range strings.Split(rule.Match, ",") {
			pattern = strings.TrimSpace(pattern)
			if ok, _ := filepath.Match(pattern, base); ok {
				families = append(families, types.Family(rule.Family))
				seen[rule.Family] = true
				break
			}
		}
	}
	return families
}
