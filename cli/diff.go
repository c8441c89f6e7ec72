package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/colors"
	"github.com/weftworks/weft/internal/domain"
)

var diffStat bool

func init() {
	diffCmd.Flags().BoolVar(&diffStat, "stat", false, "Show only summary counts")
}

var diffCmd = &cobra.Command{
	Use:   "diff <source-branch-id> <target-branch-id>",
	Short: "Show differences between two branches",
	Long: `Diff classifies every (key, language) pair as added, deleted, modified or
conflicting. A pair conflicts only when the branches share a fork point and
both sides changed since it; without shared lineage every difference is a
plain modification.`,
	Args: requireArgs(2, "diff <source-branch-id> <target-branch-id>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		diff, err := eng.DiffBranches(args[0], args[1])
		if err != nil {
			return err
		}

		if diff.Empty() {
			fmt.Println("No differences")
			return nil
		}

		if !diffStat {
			printEntries("added", colors.Added, diff.Added, func(e domain.DiffEntry) string {
				return fmt.Sprintf("+ %s = %q", e.Key, e.SourceValue)
			})
			printEntries("modified", colors.Modified, diff.Modified, func(e domain.DiffEntry) string {
				return fmt.Sprintf("~ %s: %q -> %q", e.Key, e.TargetValue, e.SourceValue)
			})
			printEntries("deleted", colors.Deleted, diff.Deleted, func(e domain.DiffEntry) string {
				return fmt.Sprintf("- %s (was %q)", e.Key, e.TargetValue)
			})
			printEntries("conflicts", colors.Conflict, diff.Conflicts, func(e domain.DiffEntry) string {
				return fmt.Sprintf("! %s: source %q vs target %q", e.Key, e.SourceValue, e.TargetValue)
			})
		}

		fmt.Printf("%d added, %d modified, %d deleted, %d conflicts\n",
			diff.Summary.Added, diff.Summary.Modified, diff.Summary.Deleted, diff.Summary.Conflicts)
		return nil
	},
}

func printEntries(header string, color func(string) string, entries []domain.DiffEntry, format func(domain.DiffEntry) string) {
	if len(entries) == 0 {
		return
	}
	fmt.Println(colors.Bold(header + ":"))
	for _, e := range entries {
		fmt.Println("  " + color(format(e)))
	}
}
