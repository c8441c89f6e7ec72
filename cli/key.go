package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/domain"
)

var (
	keyNamespace   string
	keyDescription string
	trNamespace    string
	trStatus       string
)

func init() {
	keyAddCmd.Flags().StringVar(&keyNamespace, "namespace", "", "Optional key namespace")
	keyAddCmd.Flags().StringVar(&keyDescription, "description", "", "Key description for translators")
	keyRemoveCmd.Flags().StringVar(&keyNamespace, "namespace", "", "Optional key namespace")
	trSetCmd.Flags().StringVar(&trNamespace, "namespace", "", "Optional key namespace")
	trSetCmd.Flags().StringVar(&trStatus, "status", "pending", "Translation status (pending, approved, rejected)")
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage translation keys",
}

var keyAddCmd = &cobra.Command{
	Use:   "add <branch-id> <name>",
	Short: "Add a key to a branch",
	Args:  requireArgs(2, "key add <branch-id> <name>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		k, err := eng.Catalog.CreateKey(args[0], args[1], keyNamespace, keyDescription)
		if err != nil {
			return err
		}
		fmt.Printf("Added key %s (%s)\n", k.Name, k.ID)
		return nil
	},
}

var keyRemoveCmd = &cobra.Command{
	Use:   "remove <branch-id> <name>",
	Short: "Remove a key and its translations from a branch",
	Args:  requireArgs(2, "key remove <branch-id> <name>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		if err := eng.Catalog.DeleteKeyByName(args[0], args[1], keyNamespace); err != nil {
			return err
		}
		fmt.Println("Key removed")
		return nil
	},
}

var trCmd = &cobra.Command{
	Use:   "tr",
	Short: "Manage translations",
}

var trSetCmd = &cobra.Command{
	Use:   "set <branch-id> <key-name> <language> <value>",
	Short: "Set one language's value for a key",
	Args:  requireArgs(4, "tr set <branch-id> <key-name> <language> <value>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()
		tr, err := eng.Catalog.SetTranslation(args[0], args[1], trNamespace, args[2], args[3],
			domain.TranslationStatus(trStatus))
		if err != nil {
			return err
		}
		fmt.Printf("Set %s (%s) = %q\n", args[1], tr.Language, tr.Value)
		return nil
	},
}
