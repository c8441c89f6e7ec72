package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export <branch-id> <file>",
	Short: "Export a branch to a compressed snapshot archive",
	Long: `Export serializes a branch's full key/translation set to zstd-compressed
JSON. The archive carries a BLAKE3 fingerprint of the content; import
verifies it before touching the store.`,
	Args: requireArgs(2, "export <branch-id> <file>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()

		f, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		if err := snapshot.Write(s, args[0], f); err != nil {
			return err
		}
		fmt.Printf("Exported branch to %s\n", args[1])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <branch-id> <file>",
	Short: "Import a snapshot archive into an empty branch",
	Args:  requireArgs(2, "import <branch-id> <file>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()

		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		snap, err := snapshot.Read(f)
		if err != nil {
			return err
		}
		if err := snapshot.Restore(s, args[0], snap); err != nil {
			return err
		}
		fmt.Printf("Imported %d key(s) from %s\n", len(snap.Keys), args[1])
		return nil
	},
}

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <branch-id>",
	Short: "Print the BLAKE3 content fingerprint of a branch",
	Long: `The fingerprint covers key names, namespaces, descriptions and every
translation's language, value and status. Two branches with identical
content print the same fingerprint regardless of ids or timestamps.`,
	Args: requireArgs(1, "fingerprint <branch-id>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()

		fp, err := snapshot.Fingerprint(s, args[0])
		if err != nil {
			return err
		}
		fmt.Println(fp)
		return nil
	},
}
