package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/colors"
	"github.com/weftworks/weft/internal/domain"
)

var (
	mergeTakeSource []string
	mergeTakeTarget []string
	mergeOverrides  []string
)

func init() {
	mergeCmd.Flags().StringArrayVar(&mergeTakeSource, "take-source", nil,
		"Resolve a conflict with the source value (key[@namespace]:language)")
	mergeCmd.Flags().StringArrayVar(&mergeTakeTarget, "take-target", nil,
		"Resolve a conflict with the target value (key[@namespace]:language)")
	mergeCmd.Flags().StringArrayVar(&mergeOverrides, "set", nil,
		"Resolve a conflict with an explicit value (key[@namespace]:language=value)")
}

var mergeCmd = &cobra.Command{
	Use:   "merge <source-branch-id> <target-branch-id>",
	Short: "Merge one branch into another",
	Long: `Merge recomputes the diff between the branches, then applies it to the
target in a single transaction. Every conflict must be resolved with
--take-source, --take-target or --set; otherwise the merge applies nothing
and lists what remains.`,
	Args: requireArgs(2, "merge <source-branch-id> <target-branch-id>"),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolutions, err := parseResolutions()
		if err != nil {
			return err
		}

		eng, s, err := openEngine()
		if err != nil {
			return err
		}
		defer s.Close()

		result, err := eng.MergeBranches(args[0], args[1], resolutions)
		var unresolved *domain.UnresolvedConflictsError
		if errors.As(err, &unresolved) {
			fmt.Println(colors.Conflict("Merge blocked; unresolved conflicts:"))
			for _, k := range unresolved.Keys {
				fmt.Printf("  ! %s\n", k)
			}
			return fmt.Errorf("%d conflict(s) need resolutions", len(unresolved.Keys))
		}
		if err != nil {
			return err
		}
		fmt.Printf("Merged %d change(s)\n", result.Merged)
		return nil
	},
}

func parseResolutions() ([]domain.Resolution, error) {
	var out []domain.Resolution
	for _, spec := range mergeTakeSource {
		ck, err := parseComparisonKey(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Resolution{Key: ck, Choice: domain.ResolveTakeSource})
	}
	for _, spec := range mergeTakeTarget {
		ck, err := parseComparisonKey(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Resolution{Key: ck, Choice: domain.ResolveTakeTarget})
	}
	for _, spec := range mergeOverrides {
		keyPart, value, found := strings.Cut(spec, "=")
		if !found {
			return nil, fmt.Errorf("--set wants key[@namespace]:language=value, got %q", spec)
		}
		ck, err := parseComparisonKey(keyPart)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Resolution{Key: ck, Choice: domain.ResolveOverride, OverrideValue: value})
	}
	return out, nil
}

// parseComparisonKey parses "name[@namespace]:language".
func parseComparisonKey(spec string) (domain.ComparisonKey, error) {
	keyPart, language, found := strings.Cut(spec, ":")
	if !found || language == "" {
		return domain.ComparisonKey{}, fmt.Errorf("expected key[@namespace]:language, got %q", spec)
	}
	name, namespace, _ := strings.Cut(keyPart, "@")
	if name == "" {
		return domain.ComparisonKey{}, fmt.Errorf("expected key[@namespace]:language, got %q", spec)
	}
	return domain.ComparisonKey{Name: name, Namespace: namespace, Language: strings.ToLower(language)}, nil
}
