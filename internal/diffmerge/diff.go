// Package diffmerge implements the branch comparison and merge engines.
//
// Diff classifies every (key, language) pair of two branches as added,
// deleted, modified or conflicting, using the branches' single-hop fork
// lineage as the merge base: a pair conflicts only when it differs between
// the branches and the target side was edited after the fork point. Merge
// recomputes a fresh diff, validates caller-supplied conflict resolutions,
// and applies the resulting change set in one transaction.
package diffmerge

import (
	"sort"
	"time"

	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/store"
)

// pair is one branch-local (key, translation) record addressed by its
// comparison key.
type pair struct {
	key         domain.Key
	translation domain.Translation
}

// Differ computes structured comparisons between branches.
type Differ struct {
	store store.Store
}

// NewDiffer creates a Differ on top of s.
func NewDiffer(s store.Store) *Differ {
	return &Differ{store: s}
}

// Diff compares the source branch against the target branch. The call is
// read-only and safe to run concurrently with anything, including an
// in-flight merge; a merge never trusts a previously computed diff.
func (d *Differ) Diff(sourceBranchID, targetBranchID string) (*domain.DiffResult, error) {
	var result *domain.DiffResult
	err := d.store.View(func(tx store.Tx) error {
		var err error
		result, err = diffTx(tx, sourceBranchID, targetBranchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// diffTx computes the diff inside an existing transaction. The merge engine
// calls this directly so its recomputation shares the apply transaction's
// snapshot.
func diffTx(tx store.Tx, sourceBranchID, targetBranchID string) (*domain.DiffResult, error) {
	source, err := tx.GetBranch(sourceBranchID)
	if err != nil {
		return nil, err
	}
	target, err := tx.GetBranch(targetBranchID)
	if err != nil {
		return nil, err
	}

	sourceMap, err := loadPairs(tx, sourceBranchID)
	if err != nil {
		return nil, err
	}
	targetMap, err := loadPairs(tx, targetBranchID)
	if err != nil {
		return nil, err
	}

	// Merge-base time: defined only when one branch is the other's direct
	// fork parent. Without it no independent divergence can be established,
	// so every differing pair degrades to modified.
	baseTime := forkPoint(source, target)

	result := &domain.DiffResult{
		SourceBranchID: sourceBranchID,
		TargetBranchID: targetBranchID,
	}

	for ck, sp := range sourceMap {
		tp, inTarget := targetMap[ck]
		if !inTarget {
			result.Added = append(result.Added, domain.DiffEntry{
				Key:          ck,
				SourceValue:  sp.translation.Value,
				SourceStatus: sp.translation.Status,
				Description:  sp.key.Description,
			})
			continue
		}
		if sp.translation.Value == tp.translation.Value {
			continue
		}
		entry := domain.DiffEntry{
			Key:          ck,
			SourceValue:  sp.translation.Value,
			TargetValue:  tp.translation.Value,
			SourceStatus: sp.translation.Status,
		}
		if baseTime != nil && tp.translation.UpdatedAt.After(*baseTime) {
			// Target edited after the fork point and the values disagree:
			// both sides diverged independently. Equal timestamps count as
			// untouched, so a pair only conflicts on hard evidence.
			result.Conflicts = append(result.Conflicts, entry)
		} else {
			result.Modified = append(result.Modified, entry)
		}
	}

	for ck, tp := range targetMap {
		if _, inSource := sourceMap[ck]; !inSource {
			result.Deleted = append(result.Deleted, domain.DiffEntry{
				Key:         ck,
				TargetValue: tp.translation.Value,
			})
		}
	}

	sortEntries(result.Added)
	sortEntries(result.Deleted)
	sortEntries(result.Modified)
	sortEntries(result.Conflicts)

	result.Summary = domain.DiffSummary{
		Added:     len(result.Added),
		Deleted:   len(result.Deleted),
		Modified:  len(result.Modified),
		Conflicts: len(result.Conflicts),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Deleted +
		result.Summary.Modified + result.Summary.Conflicts

	return result, nil
}

// forkPoint returns the merge-base time for two branches, or nil when
// neither branch is the other's direct fork parent.
func forkPoint(source, target *domain.Branch) *time.Time {
	if target.SourceBranchID != nil && *target.SourceBranchID == source.ID {
		return target.ForkedAt
	}
	if source.SourceBranchID != nil && *source.SourceBranchID == target.ID {
		return source.ForkedAt
	}
	return nil
}

// loadPairs flattens a branch's keys and translations into a map addressed
// by comparison key.
func loadPairs(tx store.Tx, branchID string) (map[domain.ComparisonKey]pair, error) {
	keys, err := tx.ListKeys(branchID)
	if err != nil {
		return nil, err
	}
	pairs := make(map[domain.ComparisonKey]pair)
	for _, k := range keys {
		translations, err := tx.ListTranslations(k.ID)
		if err != nil {
			return nil, err
		}
		for _, tr := range translations {
			ck := domain.ComparisonKey{Name: k.Name, Namespace: k.Namespace, Language: tr.Language}
			pairs[ck] = pair{key: k, translation: tr}
		}
	}
	return pairs, nil
}

func sortEntries(entries []domain.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.String() < entries[j].Key.String()
	})
}
