// Package store defines the persistence interface the weft engines run
// against. The shape mirrors bbolt's View/Update transaction scopes: a
// callback receives a Tx and every operation performed inside it commits or
// rolls back as one unit. Fork and merge depend on that atomicity; diff only
// ever takes a View.
package store

import (
	"time"

	"github.com/weftworks/weft/internal/domain"
)

// Tx exposes the entity operations available inside a transaction. Readers
// get a consistent snapshot; writers see their own uncommitted changes.
//
// Cascade rules: DeleteBranch removes the branch's keys and translations;
// DeleteKey removes the key's translations.
type Tx interface {
	// Projects
	PutProject(p *domain.Project) error
	GetProject(id string) (*domain.Project, error)
	ListProjects() ([]domain.Project, error)

	// Spaces
	PutSpace(s *domain.Space) error
	GetSpace(id string) (*domain.Space, error)
	ListSpaces(projectID string) ([]domain.Space, error)

	// Branches
	PutBranch(b *domain.Branch) error
	GetBranch(id string) (*domain.Branch, error)
	GetBranchBySlug(spaceID, slug string) (*domain.Branch, error)
	ListBranches(spaceID string) ([]domain.Branch, error)
	DeleteBranch(id string) error

	// Keys
	CreateKey(k *domain.Key) error
	GetKey(id string) (*domain.Key, error)
	FindKey(branchID, name, namespace string) (*domain.Key, error)
	ListKeys(branchID string) ([]domain.Key, error)
	DeleteKey(id string) error

	// Translations
	CreateTranslation(t *domain.Translation) error
	ListTranslations(keyID string) ([]domain.Translation, error)
	FindTranslation(keyID, language string) (*domain.Translation, error)
	UpdateTranslation(id, value string, status domain.TranslationStatus, updatedAt time.Time) error
}

// Store is a transactional repository for the weft content tree.
type Store interface {
	// View runs fn in a read-only transaction.
	View(fn func(Tx) error) error
	// Update runs fn in a writable transaction. If fn returns an error the
	// transaction is rolled back and nothing fn did is observable.
	Update(fn func(Tx) error) error
	Close() error
}
