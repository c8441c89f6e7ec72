package sqlstore

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/store"
)

// openTestDB connects to the database named by WEFT_TEST_POSTGRES_DSN.
// Without it the suite is skipped; these tests need a real server.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("WEFT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WEFT_TEST_POSTGRES_DSN not set")
	}
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresRoundTrip(t *testing.T) {
	db := openTestDB(t)

	projectID := uuid.NewString()
	spaceID := uuid.NewString()
	branchID := uuid.NewString()
	keyID := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	err := db.Update(func(tx store.Tx) error {
		if err := tx.PutProject(&domain.Project{ID: projectID, Name: "Acme", Slug: "acme-" + projectID[:8], CreatedAt: now}); err != nil {
			return err
		}
		if err := tx.PutSpace(&domain.Space{ID: spaceID, ProjectID: projectID, Name: "Website", Slug: "website", CreatedAt: now}); err != nil {
			return err
		}
		if err := tx.PutBranch(&domain.Branch{ID: branchID, SpaceID: spaceID, Name: "main", Slug: "main", IsDefault: true, CreatedAt: now}); err != nil {
			return err
		}
		if err := tx.CreateKey(&domain.Key{ID: keyID, BranchID: branchID, Name: "greeting.hello", CreatedAt: now}); err != nil {
			return err
		}
		return tx.CreateTranslation(&domain.Translation{
			ID: uuid.NewString(), KeyID: keyID, Language: "en",
			Value: "Hi", Status: domain.StatusApproved, UpdatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = db.View(func(tx store.Tx) error {
		b, err := tx.GetBranchBySlug(spaceID, "main")
		if err != nil {
			return err
		}
		if b.ID != branchID || !b.IsDefault {
			t.Errorf("branch: %+v", b)
		}
		k, err := tx.FindKey(branchID, "greeting.hello", "")
		if err != nil {
			return err
		}
		tr, err := tx.FindTranslation(k.ID, "en")
		if err != nil {
			return err
		}
		if tr.Value != "Hi" || !tr.UpdatedAt.Equal(now) {
			t.Errorf("translation: %+v", tr)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	// Unique constraint maps to the conflict sentinel.
	err = db.Update(func(tx store.Tx) error {
		return tx.CreateKey(&domain.Key{ID: uuid.NewString(), BranchID: branchID, Name: "greeting.hello", CreatedAt: now})
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate key: want conflict, got %v", err)
	}

	// Cascade wipes keys and translations with the branch.
	err = db.Update(func(tx store.Tx) error { return tx.DeleteBranch(branchID) })
	if err != nil {
		t.Fatalf("delete branch: %v", err)
	}
	err = db.View(func(tx store.Tx) error {
		if _, err := tx.GetKey(keyID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("key survived cascade: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestPostgresRollback(t *testing.T) {
	db := openTestDB(t)

	projectID := uuid.NewString()
	boom := errors.New("boom")
	err := db.Update(func(tx store.Tx) error {
		if err := tx.PutProject(&domain.Project{ID: projectID, Name: "Doomed", Slug: "doomed-" + projectID[:8], CreatedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("update: got %v", err)
	}

	err = db.View(func(tx store.Tx) error {
		if _, err := tx.GetProject(projectID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("write survived rollback: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
