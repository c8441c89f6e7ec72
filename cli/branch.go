package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/colors"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Manage branches",
}

var branchCreateCmd = &cobra.Command{
	Use:   "create <space-id> <name>",
	Short: "Create a space's initial branch",
	Long: `Create a space's first branch. The branch has no fork lineage and becomes
the space's default branch. Further branches are created with "weft fork".`,
	Args: requireArgs(2, "branch create <space-id> <name>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		b, err := eng.Registry.CreateBranch(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Created default branch %s (%s)\n", colors.Bold(b.Name), b.ID)
		return nil
	},
}

var branchListCmd = &cobra.Command{
	Use:   "list <space-id>",
	Short: "List a space's branches, default first",
	Args:  requireArgs(1, "branch list <space-id>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		branches, err := eng.Registry.ListBranches(args[0])
		if err != nil {
			return err
		}
		for _, b := range branches {
			marker := " "
			if b.IsDefault {
				marker = "*"
			}
			line := fmt.Sprintf("%s %s  %s", marker, b.ID, b.Name)
			if b.ForkedAt != nil {
				line += colors.Dim(fmt.Sprintf("  (forked %s)", b.ForkedAt.Format("2006-01-02 15:04:05")))
			}
			fmt.Println(line)
		}
		return nil
	},
}

var branchRemoveCmd = &cobra.Command{
	Use:   "remove <branch-id>",
	Short: "Delete a branch and its keys",
	Args:  requireArgs(1, "branch remove <branch-id>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		if err := eng.Registry.DeleteBranch(args[0]); err != nil {
			return err
		}
		fmt.Println("Branch removed")
		return nil
	},
}

var forkCmd = &cobra.Command{
	Use:   "fork <source-branch-id> <name>",
	Short: "Fork a branch into a copy-on-write clone",
	Long: `Fork creates a new branch containing a point-in-time copy of every key and
translation in the source branch. The new branch records the source and its
fork instant; that instant is the merge base for later diffs and merges.`,
	Args: requireArgs(2, "fork <source-branch-id> <name>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		b, err := eng.ForkBranch(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Forked %s (%s) at %s\n", colors.Bold(b.Name), b.ID, b.ForkedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}
