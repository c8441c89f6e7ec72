package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/colors"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new project",
	Args:  requireArgs(1, "project create <name>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		p, err := eng.Registry.CreateProject(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Created project %s (%s)\n", colors.Bold(p.Name), p.ID)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		projects, err := eng.Registry.ListProjects()
		if err != nil {
			return err
		}
		for _, p := range projects {
			fmt.Printf("%s  %s\n", p.ID, p.Name)
		}
		return nil
	},
}

var spaceCmd = &cobra.Command{
	Use:   "space",
	Short: "Manage spaces",
}

var spaceCreateCmd = &cobra.Command{
	Use:   "create <project-id> <name>",
	Short: "Create a new space under a project",
	Args:  requireArgs(2, "space create <project-id> <name>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		sp, err := eng.Registry.CreateSpace(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Created space %s (%s)\n", colors.Bold(sp.Name), sp.ID)
		return nil
	},
}

var spaceListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's spaces",
	Args:  requireArgs(1, "space list <project-id>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		spaces, err := eng.Registry.ListSpaces(args[0])
		if err != nil {
			return err
		}
		for _, sp := range spaces {
			fmt.Printf("%s  %s\n", sp.ID, sp.Name)
		}
		return nil
	},
}
