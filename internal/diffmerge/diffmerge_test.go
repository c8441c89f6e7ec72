package diffmerge

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/weftworks/weft/internal/boltstore"
	"github.com/weftworks/weft/internal/catalog"
	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/fork"
	"github.com/weftworks/weft/internal/registry"
	"github.com/weftworks/weft/internal/store"
)

// fakeClock hands out a controllable time to the components under test.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type env struct {
	store  store.Store
	reg    *registry.Registry
	forker *fork.Forker
	cat    *catalog.Service
	clock  *fakeClock
	main   *domain.Branch
}

func newTestEnv(t *testing.T) *env {
	t.Helper()
	db, err := boltstore.Open(filepath.Join(t.TempDir(), "weft.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	e := &env{
		store:  db,
		reg:    registry.New(db),
		forker: fork.New(db),
		cat:    catalog.New(db),
		clock:  clock,
	}
	e.reg.SetClock(clock.Now)
	e.forker.SetClock(clock.Now)
	e.cat.SetClock(clock.Now)

	project, err := e.reg.CreateProject("Acme")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	space, err := e.reg.CreateSpace(project.ID, "Website")
	if err != nil {
		t.Fatalf("create space: %v", err)
	}
	e.main, err = e.reg.CreateBranch(space.ID, "main")
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}
	return e
}

// seed ensures a key exists on the branch and sets one language's value.
func (e *env) seed(t *testing.T, branchID, name, namespace, language, value string) {
	t.Helper()
	if _, err := e.cat.CreateKey(branchID, name, namespace, ""); err != nil && !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("create key %s: %v", name, err)
	}
	if _, err := e.cat.SetTranslation(branchID, name, namespace, language, value, domain.StatusApproved); err != nil {
		t.Fatalf("set translation %s/%s: %v", name, language, err)
	}
}

func (e *env) forkBranch(t *testing.T, name string) *domain.Branch {
	t.Helper()
	b, err := e.forker.Fork(e.main.ID, name)
	if err != nil {
		t.Fatalf("fork %s: %v", name, err)
	}
	return b
}

func TestDiffEmptyAfterFork(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hi")
	e.seed(t, e.main.ID, "greeting.hello", "", "de", "Hallo")
	e.seed(t, e.main.ID, "button.save", "ui", "en", "Save")

	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")

	differ := NewDiffer(e.store)
	for _, pair := range [][2]string{{feature.ID, e.main.ID}, {e.main.ID, feature.ID}} {
		diff, err := differ.Diff(pair[0], pair[1])
		if err != nil {
			t.Fatalf("diff: %v", err)
		}
		if !diff.Empty() {
			t.Errorf("expected empty diff right after fork, got %+v", diff.Summary)
		}
	}
}

func TestDiffClassification(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hi")
	e.seed(t, e.main.ID, "nav.home", "", "en", "Home")
	e.seed(t, e.main.ID, "nav.about", "", "en", "About")

	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")
	e.clock.Advance(time.Minute)

	// Added on feature, modified on feature, deleted on feature.
	e.seed(t, feature.ID, "nav.contact", "", "en", "Contact")
	e.seed(t, feature.ID, "greeting.hello", "", "en", "Hello")
	if err := e.cat.DeleteKeyByName(feature.ID, "nav.about", ""); err != nil {
		t.Fatalf("delete key: %v", err)
	}

	diff, err := NewDiffer(e.store).Diff(feature.ID, e.main.ID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}

	if diff.Summary.Added != 1 || diff.Added[0].Key.Name != "nav.contact" {
		t.Errorf("added: got %+v", diff.Added)
	}
	if diff.Summary.Modified != 1 || diff.Modified[0].Key.Name != "greeting.hello" {
		t.Errorf("modified: got %+v", diff.Modified)
	}
	if len(diff.Modified) > 0 && (diff.Modified[0].SourceValue != "Hello" || diff.Modified[0].TargetValue != "Hi") {
		t.Errorf("modified values: got %+v", diff.Modified[0])
	}
	if diff.Summary.Deleted != 1 || diff.Deleted[0].Key.Name != "nav.about" {
		t.Errorf("deleted: got %+v", diff.Deleted)
	}
	if diff.Summary.Conflicts != 0 {
		t.Errorf("one-sided edits must not conflict, got %+v", diff.Conflicts)
	}
	if diff.Summary.Total != 3 {
		t.Errorf("total: got %d", diff.Summary.Total)
	}
}

func TestDiffDirectionSymmetry(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "nav.home", "", "en", "Home")

	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")
	e.clock.Advance(time.Minute)
	e.seed(t, feature.ID, "nav.contact", "", "en", "Contact")

	forward, err := NewDiffer(e.store).Diff(feature.ID, e.main.ID)
	if err != nil {
		t.Fatalf("diff forward: %v", err)
	}
	backward, err := NewDiffer(e.store).Diff(e.main.ID, feature.ID)
	if err != nil {
		t.Fatalf("diff backward: %v", err)
	}

	if len(forward.Added) != 1 || len(backward.Deleted) != 1 {
		t.Fatalf("expected one added forward and one deleted backward, got %+v / %+v",
			forward.Summary, backward.Summary)
	}
	if forward.Added[0].Key != backward.Deleted[0].Key {
		t.Errorf("comparison keys differ: %v vs %v", forward.Added[0].Key, backward.Deleted[0].Key)
	}
}

// Fork at T0, a source edit at T1 gives modified, a later independent
// target edit at T2 upgrades the same pair to a conflict.
func TestDiffConflictNeedsBothSides(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hi")

	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")

	e.clock.Advance(time.Minute)
	e.seed(t, feature.ID, "greeting.hello", "", "en", "Hello")

	diff, err := NewDiffer(e.store).Diff(feature.ID, e.main.ID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if diff.Summary.Modified != 1 || diff.Summary.Conflicts != 0 {
		t.Fatalf("one-sided edit: want modified, got %+v", diff.Summary)
	}

	e.clock.Advance(time.Minute)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hey")

	diff, err = NewDiffer(e.store).Diff(feature.ID, e.main.ID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if diff.Summary.Conflicts != 1 || diff.Summary.Modified != 0 {
		t.Fatalf("two-sided edit: want conflict, got %+v", diff.Summary)
	}
	c := diff.Conflicts[0]
	want := domain.ComparisonKey{Name: "greeting.hello", Language: "en"}
	if c.Key != want {
		t.Errorf("conflict key: got %v, want %v", c.Key, want)
	}
	if c.SourceValue != "Hello" || c.TargetValue != "Hey" {
		t.Errorf("conflict values: got %+v", c)
	}
}

// A target edit stamped exactly at the fork instant counts as untouched:
// conflicts require strict evidence of a change after the fork point.
func TestDiffEqualTimestampTieBreak(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hi")

	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")

	// Target edit at the exact fork time, then a later source edit.
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hey")
	e.clock.Advance(time.Minute)
	e.seed(t, feature.ID, "greeting.hello", "", "en", "Hello")

	diff, err := NewDiffer(e.store).Diff(feature.ID, e.main.ID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if diff.Summary.Conflicts != 0 || diff.Summary.Modified != 1 {
		t.Errorf("equal timestamps must favor modified, got %+v", diff.Summary)
	}
}

// Sibling branches share a parent but neither is the other's fork source,
// so no merge base is known and nothing can conflict.
func TestDiffNoLineageDegradesToModified(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hi")

	e.clock.Advance(time.Minute)
	a := e.forkBranch(t, "feature-a")
	b := e.forkBranch(t, "feature-b")

	e.clock.Advance(time.Minute)
	e.seed(t, a.ID, "greeting.hello", "", "en", "Hello")
	e.clock.Advance(time.Minute)
	e.seed(t, b.ID, "greeting.hello", "", "en", "Hey")

	diff, err := NewDiffer(e.store).Diff(a.ID, b.ID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if diff.Summary.Conflicts != 0 || diff.Summary.Modified != 1 {
		t.Errorf("no shared fork point: want modified only, got %+v", diff.Summary)
	}
}

func TestDiffMissingBranch(t *testing.T) {
	e := newTestEnv(t)
	if _, err := NewDiffer(e.store).Diff(e.main.ID, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want not-found, got %v", err)
	}
	if _, err := NewDiffer(e.store).Diff("nope", e.main.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want not-found, got %v", err)
	}
}

func TestDiffIsRepeatable(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hi")
	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")
	e.clock.Advance(time.Minute)
	e.seed(t, feature.ID, "greeting.hello", "", "en", "Hello")

	differ := NewDiffer(e.store)
	first, err := differ.Diff(feature.ID, e.main.ID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	second, err := differ.Diff(feature.ID, e.main.ID)
	if err != nil {
		t.Fatalf("diff again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("diff is not stable across calls:\n%+v\n%+v", first, second)
	}
}

// Keys with the same name in different namespaces must not collide.
func TestDiffNamespaceSeparation(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "title", "checkout", "en", "Checkout")
	e.seed(t, e.main.ID, "title", "cart", "en", "Cart")

	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")
	e.clock.Advance(time.Minute)
	e.seed(t, feature.ID, "title", "checkout", "en", "Pay now")

	diff, err := NewDiffer(e.store).Diff(feature.ID, e.main.ID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if diff.Summary.Total != 1 || diff.Summary.Modified != 1 {
		t.Fatalf("want exactly one modified entry, got %+v", diff.Summary)
	}
	if diff.Modified[0].Key.Namespace != "checkout" {
		t.Errorf("wrong namespace matched: %+v", diff.Modified[0].Key)
	}
}
