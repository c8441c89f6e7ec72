// Package fork implements the copy-on-write branch clone. A fork creates a
// new branch whose key/translation set is an exact copy of the source at the
// fork instant; the branch records that instant and the source id as its
// lineage. Copied translations are stamped updatedAt = forkedAt, which is
// what lets the diff engine later tell "untouched since fork" apart from
// "edited after fork".
package fork

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/registry"
	"github.com/weftworks/weft/internal/store"
)

// Forker performs branch forks.
type Forker struct {
	store store.Store
	now   func() time.Time
}

// New creates a Forker on top of s.
func New(s store.Store) *Forker {
	return &Forker{store: s, now: time.Now}
}

// SetClock overrides the forker's clock. Tests use this to pin fork points.
func (f *Forker) SetClock(now func() time.Time) { f.now = now }

// Fork clones the source branch into a new branch named newName within the
// same space. The whole copy runs in one transaction: either the new branch
// appears fully populated or not at all.
func (f *Forker) Fork(sourceBranchID, newName string) (*domain.Branch, error) {
	if strings.TrimSpace(newName) == "" {
		return nil, domain.Validationf("branch name must not be empty")
	}

	forkedAt := f.now()
	branch := &domain.Branch{
		ID:             uuid.NewString(),
		SpaceID:        "", // filled in once the source is loaded
		Name:           newName,
		Slug:           registry.Slugify(newName),
		SourceBranchID: &sourceBranchID,
		ForkedAt:       &forkedAt,
		CreatedAt:      forkedAt,
	}

	err := f.store.Update(func(tx store.Tx) error {
		source, err := tx.GetBranch(sourceBranchID)
		if err != nil {
			return err
		}
		branch.SpaceID = source.SpaceID

		if _, err := tx.GetBranchBySlug(source.SpaceID, branch.Slug); err == nil {
			return domain.Conflictf("branch %q already exists in space", newName)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if err := tx.PutBranch(branch); err != nil {
			return err
		}

		keys, err := tx.ListKeys(sourceBranchID)
		if err != nil {
			return err
		}
		for _, k := range keys {
			copied := domain.Key{
				ID:          uuid.NewString(),
				BranchID:    branch.ID,
				Name:        k.Name,
				Namespace:   k.Namespace,
				Description: k.Description,
				CreatedAt:   forkedAt,
			}
			if err := tx.CreateKey(&copied); err != nil {
				return err
			}
			translations, err := tx.ListTranslations(k.ID)
			if err != nil {
				return err
			}
			for _, tr := range translations {
				copiedTr := domain.Translation{
					ID:        uuid.NewString(),
					KeyID:     copied.ID,
					Language:  tr.Language,
					Value:     tr.Value,
					Status:    tr.Status,
					UpdatedAt: forkedAt,
				}
				if err := tx.CreateTranslation(&copiedTr); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return branch, nil
}
