// Package registry owns the content tree above keys: projects, spaces and
// branch entities with their lineage metadata. It enforces the structural
// invariants: exactly one default branch per space, slugs unique within
// their parent, and no deleting a default branch.
package registry

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/store"
)

// Registry manages projects, spaces and branches.
type Registry struct {
	store store.Store
	now   func() time.Time
}

// New creates a Registry on top of s.
func New(s store.Store) *Registry {
	return &Registry{store: s, now: time.Now}
}

// SetClock overrides the registry's clock. Tests use this to pin timestamps.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

// Slugify converts a display name into its slug form: lowercased, with
// every run of non-alphanumeric characters collapsed to a single dash.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// CreateProject creates a new project.
func (r *Registry) CreateProject(name string) (*domain.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.Validationf("project name must not be empty")
	}
	p := &domain.Project{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      Slugify(name),
		CreatedAt: r.now(),
	}
	err := r.store.Update(func(tx store.Tx) error {
		return tx.PutProject(p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects returns all projects ordered by name.
func (r *Registry) ListProjects() ([]domain.Project, error) {
	var out []domain.Project
	err := r.store.View(func(tx store.Tx) error {
		var err error
		out, err = tx.ListProjects()
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateSpace creates a new space under a project.
func (r *Registry) CreateSpace(projectID, name string) (*domain.Space, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.Validationf("space name must not be empty")
	}
	s := &domain.Space{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		Slug:      Slugify(name),
		CreatedAt: r.now(),
	}
	err := r.store.Update(func(tx store.Tx) error {
		if _, err := tx.GetProject(projectID); err != nil {
			return err
		}
		return tx.PutSpace(s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSpaces returns a project's spaces ordered by name.
func (r *Registry) ListSpaces(projectID string) ([]domain.Space, error) {
	var out []domain.Space
	err := r.store.View(func(tx store.Tx) error {
		var err error
		out, err = tx.ListSpaces(projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateBranch creates a space's initial branch. The new branch has no
// lineage and becomes the space's default. Spaces get exactly one branch
// this way; every further branch is created by forking.
func (r *Registry) CreateBranch(spaceID, name string) (*domain.Branch, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.Validationf("branch name must not be empty")
	}
	b := &domain.Branch{
		ID:        uuid.NewString(),
		SpaceID:   spaceID,
		Name:      name,
		Slug:      Slugify(name),
		IsDefault: true,
		CreatedAt: r.now(),
	}
	err := r.store.Update(func(tx store.Tx) error {
		if _, err := tx.GetSpace(spaceID); err != nil {
			return err
		}
		existing, err := tx.ListBranches(spaceID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.IsDefault {
				return domain.Validationf("space already has a default branch %q", e.Name)
			}
		}
		return tx.PutBranch(b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBranch loads one branch by id.
func (r *Registry) GetBranch(id string) (*domain.Branch, error) {
	var b *domain.Branch
	err := r.store.View(func(tx store.Tx) error {
		var err error
		b, err = tx.GetBranch(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBranches returns a space's branches, default branch first, the rest
// ordered by name.
func (r *Registry) ListBranches(spaceID string) ([]domain.Branch, error) {
	var out []domain.Branch
	err := r.store.View(func(tx store.Tx) error {
		var err error
		out, err = tx.ListBranches(spaceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// DeleteBranch removes a branch and cascades to its keys and translations.
// The space's default branch cannot be deleted.
func (r *Registry) DeleteBranch(id string) error {
	return r.store.Update(func(tx store.Tx) error {
		b, err := tx.GetBranch(id)
		if err != nil {
			return err
		}
		if b.IsDefault {
			return domain.Invariantf("cannot delete default branch %q", b.Name)
		}
		return tx.DeleteBranch(id)
	})
}
