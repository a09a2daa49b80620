package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/untoldecay/elixir/internal/xrefdb"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the cross-reference database's invariants (spec §8)",
	Long: "doctor runs the universal invariant checks (blob bijection, dense numbering, " +
		"reference closure, tag completeness) against the live database and reports any " +
		"violation. A clean database exits 0 and prints nothing.",
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	db, err := xrefdb.Open(rootCtx, filepath.Join(cfg.DataPath, "xref.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	var problems []string

	if p, err := checkDenseNumbering(db); err != nil {
		return err
	} else {
		problems = append(problems, p...)
	}
	if p, err := checkBlobBijection(db); err != nil {
		return err
	} else {
		problems = append(problems, p...)
	}
	if p, err := checkReferenceClosure(db); err != nil {
		return err
	} else {
		problems = append(problems, p...)
	}
	if p, err := checkTagCompleteness(db); err != nil {
		return err
	} else {
		problems = append(problems, p...)
	}

	for _, p := range problems {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d invariant violation(s) found", len(problems))
	}
	return nil
}

// checkDenseNumbering verifies the allocated blob numbers equal {1, ..., max}, no gaps.
func checkDenseNumbering(db *xrefdb.DB) ([]string, error) {
	nums, err := db.AllBlobNums(rootCtx)
	if err != nil {
		return nil, err
	}
	var problems []string
	for i, n := range nums {
		if want := uint32(i + 1); uint32(n) != want {
			problems = append(problems, fmt.Sprintf("dense numbering: expected blob %d, found %d at position %d", want, n, i))
			break
		}
	}
	return problems, nil
}

// checkBlobBijection verifies intern(resolve(B)) == (B, false) for every allocated B.
func checkBlobBijection(db *xrefdb.DB) ([]string, error) {
	nums, err := db.AllBlobNums(rootCtx)
	if err != nil {
		return nil, err
	}
	var problems []string
	for _, num := range nums {
		hash, err := db.NumToHash(rootCtx, num)
		if err != nil {
			problems = append(problems, fmt.Sprintf("blob bijection: resolving %d: %v", num, err))
			continue
		}
		roundTrip, ok, err := db.HashToNum(rootCtx, hash)
		if err != nil {
			problems = append(problems, fmt.Sprintf("blob bijection: interning %s: %v", hash, err))
			continue
		}
		if !ok || roundTrip != num {
			problems = append(problems, fmt.Sprintf("blob bijection: %d -> %s -> %d (want %d)", num, hash, roundTrip, num))
		}
	}
	return problems, nil
}

// checkReferenceClosure verifies every identifier with a reference also has a definition.
func checkReferenceClosure(db *xrefdb.DB) ([]string, error) {
	idents, err := db.IdentsWithPrefix(rootCtx, "")
	if err != nil {
		return nil, err
	}
	defined := make(map[string]bool, len(idents))
	for _, i := range idents {
		defined[i] = true
	}

	refIdents, err := db.ReferencedIdents(rootCtx)
	if err != nil {
		return nil, err
	}
	var problems []string
	for _, ident := range refIdents {
		if !defined[ident] {
			problems = append(problems, fmt.Sprintf("reference closure: %q has a reference but no definition", ident))
		}
	}
	return problems, nil
}

// checkTagCompleteness reports every indexed tag whose tree contains a blob that still carries
// a defs or refs partial marker. The update run marks a tag indexed even when some of its
// blobs were marked partial, so such a tag is reported here until a later run clears the
// marker.
func checkTagCompleteness(db *xrefdb.DB) ([]string, error) {
	tags, err := db.ListTags(rootCtx)
	if err != nil {
		return nil, err
	}
	var problems []string
	for _, tag := range tags {
		if !tag.Indexed {
			continue
		}
		entries, err := db.TagTree(rootCtx, tag.Name)
		if err != nil {
			return nil, err
		}
		inTree := make(map[uint32]bool, len(entries))
		for _, e := range entries {
			inTree[uint32(e.Blob)] = true
		}
		for _, pass := range []xrefdb.Pass{xrefdb.PassDefs, xrefdb.PassRefs} {
			nums, _, err := db.PartialBlobs(rootCtx, pass)
			if err != nil {
				return nil, err
			}
			for _, num := range nums {
				if inTree[uint32(num)] {
					problems = append(problems, fmt.Sprintf("tag completeness: %s is indexed but blob %d still has a partial %s marker", tag.Name, num, pass))
				}
			}
		}
	}
	return problems, nil
}
