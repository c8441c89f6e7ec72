package diffmerge

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/store"
)

// changeKind is the type of one planned change operation.
type changeKind uint8

const (
	changeCreate changeKind = iota + 1 // create key/translation in target
	changeUpdate                       // update translation value in target
	changeDelete                       // remove from target
)

// changeOp is one step of a merge plan. The full plan is built from the
// fresh diff before anything is written, then applied in order inside the
// same transaction.
type changeOp struct {
	kind   changeKind
	key    domain.ComparisonKey
	value  string
	status domain.TranslationStatus
	desc   string
}

// Merger applies branch diffs to a target branch.
type Merger struct {
	store store.Store
	now   func() time.Time
}

// NewMerger creates a Merger on top of s.
func NewMerger(s store.Store) *Merger {
	return &Merger{store: s, now: time.Now}
}

// SetClock overrides the merger's clock. Tests use this to pin timestamps.
func (m *Merger) SetClock(now func() time.Time) { m.now = now }

// Merge merges the source branch into the target branch. The diff is
// recomputed fresh inside the apply transaction — a previously fetched diff
// is advisory only. Every conflict in the fresh diff must be covered by
// exactly one resolution; otherwise no change is applied and the result
// lists the unresolved comparison keys. Lineage is never touched, so a
// repeated merge finds an empty diff and reports zero applied changes.
func (m *Merger) Merge(sourceBranchID, targetBranchID string, resolutions []domain.Resolution) (*domain.MergeResult, error) {
	resolutionMap := make(map[domain.ComparisonKey]domain.Resolution, len(resolutions))
	for _, r := range resolutions {
		switch r.Choice {
		case domain.ResolveTakeSource, domain.ResolveTakeTarget, domain.ResolveOverride:
		default:
			return nil, domain.Validationf("unknown resolution choice %q for %s", r.Choice, r.Key)
		}
		if _, dup := resolutionMap[r.Key]; dup {
			return nil, domain.Validationf("duplicate resolution for %s", r.Key)
		}
		resolutionMap[r.Key] = r
	}

	var result *domain.MergeResult
	err := m.store.Update(func(tx store.Tx) error {
		diff, err := diffTx(tx, sourceBranchID, targetBranchID)
		if err != nil {
			return err
		}
		if diff.Empty() {
			// Nothing to do; resolutions are vacuous. Re-running an
			// already-applied merge with the same arguments lands here.
			result = &domain.MergeResult{Success: true}
			return nil
		}

		unresolved := validateResolutions(diff, resolutionMap)
		if len(unresolved) > 0 {
			// Nothing has been written yet; returning a failed result with
			// a nil error leaves the transaction a pure read.
			result = &domain.MergeResult{Success: false, Unresolved: unresolved}
			return nil
		}

		plan := buildPlan(diff, resolutionMap)
		applied, err := m.applyPlan(tx, targetBranchID, plan)
		if err != nil {
			return err
		}
		result = &domain.MergeResult{Success: true, Merged: applied}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validateResolutions pairs the fresh diff's conflicts with the supplied
// resolutions. It returns the comparison keys that block the merge: every
// conflict without a resolution and every resolution that does not match a
// conflict.
func validateResolutions(diff *domain.DiffResult, resolutions map[domain.ComparisonKey]domain.Resolution) []domain.ComparisonKey {
	var unresolved []domain.ComparisonKey
	conflictKeys := make(map[domain.ComparisonKey]bool, len(diff.Conflicts))
	for _, c := range diff.Conflicts {
		conflictKeys[c.Key] = true
		if _, ok := resolutions[c.Key]; !ok {
			unresolved = append(unresolved, c.Key)
		}
	}
	for ck := range resolutions {
		if !conflictKeys[ck] {
			unresolved = append(unresolved, ck)
		}
	}
	sortKeys(unresolved)
	return unresolved
}

// buildPlan turns a fully resolved diff into an ordered list of change
// operations. No mutation happens here.
func buildPlan(diff *domain.DiffResult, resolutions map[domain.ComparisonKey]domain.Resolution) []changeOp {
	plan := make([]changeOp, 0, diff.Summary.Total)
	for _, e := range diff.Added {
		plan = append(plan, changeOp{
			kind:   changeCreate,
			key:    e.Key,
			value:  e.SourceValue,
			status: e.SourceStatus,
			desc:   e.Description,
		})
	}
	for _, e := range diff.Modified {
		plan = append(plan, changeOp{kind: changeUpdate, key: e.Key, value: e.SourceValue})
	}
	for _, e := range diff.Conflicts {
		r := resolutions[e.Key]
		op := changeOp{kind: changeUpdate, key: e.Key}
		switch r.Choice {
		case domain.ResolveTakeSource:
			op.value = e.SourceValue
		case domain.ResolveTakeTarget:
			op.value = e.TargetValue
		case domain.ResolveOverride:
			op.value = r.OverrideValue
		}
		plan = append(plan, op)
	}
	for _, e := range diff.Deleted {
		plan = append(plan, changeOp{kind: changeDelete, key: e.Key})
	}
	return plan
}

// applyPlan executes the change operations against the target branch inside
// tx. Returns the number of applied changes.
func (m *Merger) applyPlan(tx store.Tx, targetBranchID string, plan []changeOp) (int, error) {
	now := m.now()
	applied := 0
	// Keys removed entirely; languages deleted one by one may empty a key.
	deletedKeys := make(map[string]bool)

	for _, op := range plan {
		switch op.kind {
		case changeCreate:
			key, err := tx.FindKey(targetBranchID, op.key.Name, op.key.Namespace)
			if errors.Is(err, domain.ErrNotFound) {
				key = &domain.Key{
					ID:          uuid.NewString(),
					BranchID:    targetBranchID,
					Name:        op.key.Name,
					Namespace:   op.key.Namespace,
					Description: op.desc,
					CreatedAt:   now,
				}
				if err := tx.CreateKey(key); err != nil {
					return applied, err
				}
			} else if err != nil {
				return applied, err
			}
			status := op.status
			if status == "" {
				status = domain.StatusPending
			}
			tr := &domain.Translation{
				ID:        uuid.NewString(),
				KeyID:     key.ID,
				Language:  op.key.Language,
				Value:     op.value,
				Status:    status,
				UpdatedAt: now,
			}
			if err := tx.CreateTranslation(tr); err != nil {
				return applied, err
			}

		case changeUpdate:
			key, err := tx.FindKey(targetBranchID, op.key.Name, op.key.Namespace)
			if err != nil {
				return applied, err
			}
			tr, err := tx.FindTranslation(key.ID, op.key.Language)
			if err != nil {
				return applied, err
			}
			if err := tx.UpdateTranslation(tr.ID, op.value, tr.Status, now); err != nil {
				return applied, err
			}

		case changeDelete:
			key, err := tx.FindKey(targetBranchID, op.key.Name, op.key.Namespace)
			if errors.Is(err, domain.ErrNotFound) {
				// Already removed by an earlier whole-key delete.
				applied++
				continue
			} else if err != nil {
				return applied, err
			}
			if deletedKeys[key.ID] {
				applied++
				continue
			}
			if err := tx.DeleteKey(key.ID); err != nil {
				return applied, err
			}
			deletedKeys[key.ID] = true
		}
		applied++
	}
	return applied, nil
}

func sortKeys(keys []domain.ComparisonKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}
