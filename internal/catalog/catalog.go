// Package catalog provides the editing operations over keys and
// translations: the mutation path translators and importers use. Every edit
// moves a translation's updatedAt forward, which is what the diff engine
// reads as divergence from the branch's fork point.
package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/store"
)

// Service edits keys and translations within a branch.
type Service struct {
	store store.Store
	now   func() time.Time
}

// New creates a catalog Service on top of s.
func New(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// SetClock overrides the service's clock. Tests use this to pin edit times
// relative to fork points.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreateKey adds a new key to a branch. (name, namespace) must be unique
// within the branch.
func (s *Service) CreateKey(branchID, name, namespace, description string) (*domain.Key, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.Validationf("key name must not be empty")
	}
	k := &domain.Key{
		ID:          uuid.NewString(),
		BranchID:    branchID,
		Name:        name,
		Namespace:   namespace,
		Description: description,
		CreatedAt:   s.now(),
	}
	err := s.store.Update(func(tx store.Tx) error {
		if _, err := tx.GetBranch(branchID); err != nil {
			return err
		}
		return tx.CreateKey(k)
	})
	if err != nil {
		return nil, err
	}
	return k, nil
}

// DeleteKey removes a key and its translations.
func (s *Service) DeleteKey(keyID string) error {
	return s.store.Update(func(tx store.Tx) error {
		return tx.DeleteKey(keyID)
	})
}

// DeleteKeyByName removes the key addressed by (name, namespace) within a
// branch, cascading to its translations.
func (s *Service) DeleteKeyByName(branchID, name, namespace string) error {
	return s.store.Update(func(tx store.Tx) error {
		key, err := tx.FindKey(branchID, name, namespace)
		if err != nil {
			return err
		}
		return tx.DeleteKey(key.ID)
	})
}

// SetTranslation writes one language's value for a key identified by name
// and namespace, creating the translation if it does not exist yet. The
// translation's updatedAt is stamped with the current time.
func (s *Service) SetTranslation(branchID, name, namespace, language, value string, status domain.TranslationStatus) (*domain.Translation, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return nil, domain.Validationf("language must not be empty")
	}
	if status == "" {
		status = domain.StatusPending
	}
	if !domain.ValidStatus(status) {
		return nil, domain.Validationf("unknown translation status %q", status)
	}

	now := s.now()
	var out *domain.Translation
	err := s.store.Update(func(tx store.Tx) error {
		key, err := tx.FindKey(branchID, name, namespace)
		if err != nil {
			return err
		}
		existing, err := tx.FindTranslation(key.ID, language)
		if errors.Is(err, domain.ErrNotFound) {
			tr := &domain.Translation{
				ID:        uuid.NewString(),
				KeyID:     key.ID,
				Language:  language,
				Value:     value,
				Status:    status,
				UpdatedAt: now,
			}
			out = tr
			return tx.CreateTranslation(tr)
		} else if err != nil {
			return err
		}
		if err := tx.UpdateTranslation(existing.ID, value, status, now); err != nil {
			return err
		}
		existing.Value = value
		existing.Status = status
		existing.UpdatedAt = now
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListKeys returns a branch's keys with their translations.
func (s *Service) ListKeys(branchID string) ([]domain.Key, map[string][]domain.Translation, error) {
	var keys []domain.Key
	translations := make(map[string][]domain.Translation)
	err := s.store.View(func(tx store.Tx) error {
		if _, err := tx.GetBranch(branchID); err != nil {
			return err
		}
		var err error
		keys, err = tx.ListKeys(branchID)
		if err != nil {
			return err
		}
		for _, k := range keys {
			trs, err := tx.ListTranslations(k.ID)
			if err != nil {
				return err
			}
			translations[k.ID] = trs
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return keys, translations, nil
}
