package diffmerge

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/weftworks/weft/internal/domain"
)

func newTestMerger(e *env) *Merger {
	m := NewMerger(e.store)
	m.SetClock(e.clock.Now)
	return m
}

// value reads one translation value off a branch, failing the test when
// the pair does not exist.
func (e *env) value(t *testing.T, branchID, name, namespace, language string) string {
	t.Helper()
	keys, trs, err := e.cat.ListKeys(branchID)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	for _, k := range keys {
		if k.Name != name || k.Namespace != namespace {
			continue
		}
		for _, tr := range trs[k.ID] {
			if tr.Language == language {
				return tr.Value
			}
		}
	}
	t.Fatalf("translation %s@%s:%s not found on branch %s", name, namespace, language, branchID)
	return ""
}

func TestMergeModifiedAndAdded(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hi")

	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")
	e.clock.Advance(time.Minute)
	e.seed(t, feature.ID, "greeting.hello", "", "en", "Hello")
	e.seed(t, feature.ID, "nav.contact", "", "en", "Contact")

	result, err := newTestMerger(e).Merge(feature.ID, e.main.ID, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !result.Success || result.Merged != 2 {
		t.Fatalf("merge result: %+v", result)
	}
	if got := e.value(t, e.main.ID, "greeting.hello", "", "en"); got != "Hello" {
		t.Errorf("modified value not applied: %q", got)
	}
	if got := e.value(t, e.main.ID, "nav.contact", "", "en"); got != "Contact" {
		t.Errorf("added value not applied: %q", got)
	}

	// A clean re-merge has nothing left to do.
	again, err := newTestMerger(e).Merge(feature.ID, e.main.ID, nil)
	if err != nil {
		t.Fatalf("re-merge: %v", err)
	}
	if !again.Success || again.Merged != 0 {
		t.Errorf("re-merge should be a no-op, got %+v", again)
	}
}

func TestMergeAppliesDeletes(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "nav.home", "", "en", "Home")
	e.seed(t, e.main.ID, "nav.about", "", "en", "About")

	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")
	e.clock.Advance(time.Minute)
	if err := e.cat.DeleteKeyByName(feature.ID, "nav.about", ""); err != nil {
		t.Fatalf("delete key: %v", err)
	}

	result, err := newTestMerger(e).Merge(feature.ID, e.main.ID, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !result.Success || result.Merged != 1 {
		t.Fatalf("merge result: %+v", result)
	}

	keys, _, err := e.cat.ListKeys(e.main.ID)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	for _, k := range keys {
		if k.Name == "nav.about" {
			t.Errorf("deleted key survived the merge")
		}
	}
}

// An unresolved conflict blocks the merge and must leave the target
// exactly as it was, including the non-conflicting changes.
func TestMergeUnresolvedBlocksEverything(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hi")
	e.seed(t, e.main.ID, "nav.home", "", "en", "Home")

	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")
	e.clock.Advance(time.Minute)
	e.seed(t, feature.ID, "greeting.hello", "", "en", "Hello")
	e.seed(t, feature.ID, "nav.home", "", "en", "Start")
	e.clock.Advance(time.Minute)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hey")

	before, err := NewDiffer(e.store).Diff(feature.ID, e.main.ID)
	if err != nil {
		t.Fatalf("diff before: %v", err)
	}

	result, err := newTestMerger(e).Merge(feature.ID, e.main.ID, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.Success {
		t.Fatalf("merge must fail with an unresolved conflict, got %+v", result)
	}
	want := []domain.ComparisonKey{{Name: "greeting.hello", Language: "en"}}
	if !reflect.DeepEqual(result.Unresolved, want) {
		t.Errorf("unresolved: got %v, want %v", result.Unresolved, want)
	}

	// Nothing applied, not even the clean nav.home change.
	if got := e.value(t, e.main.ID, "greeting.hello", "", "en"); got != "Hey" {
		t.Errorf("conflicting value changed: %q", got)
	}
	if got := e.value(t, e.main.ID, "nav.home", "", "en"); got != "Home" {
		t.Errorf("clean change leaked through a failed merge: %q", got)
	}
	after, err := NewDiffer(e.store).Diff(feature.ID, e.main.ID)
	if err != nil {
		t.Fatalf("diff after: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("failed merge mutated state:\nbefore %+v\nafter  %+v", before.Summary, after.Summary)
	}
}

func TestMergeResolutions(t *testing.T) {
	cases := []struct {
		name   string
		choice domain.ResolutionChoice
		value  string
		want   string
	}{
		{"take source", domain.ResolveTakeSource, "", "Hello"},
		{"take target", domain.ResolveTakeTarget, "", "Hey"},
		{"override", domain.ResolveOverride, "Howdy", "Howdy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hi")

			e.clock.Advance(time.Minute)
			feature := e.forkBranch(t, "feature")
			e.clock.Advance(time.Minute)
			e.seed(t, feature.ID, "greeting.hello", "", "en", "Hello")
			e.clock.Advance(time.Minute)
			e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hey")

			res := []domain.Resolution{{
				Key:           domain.ComparisonKey{Name: "greeting.hello", Language: "en"},
				Choice:        tc.choice,
				OverrideValue: tc.value,
			}}
			result, err := newTestMerger(e).Merge(feature.ID, e.main.ID, res)
			if err != nil {
				t.Fatalf("merge: %v", err)
			}
			if !result.Success {
				t.Fatalf("merge result: %+v", result)
			}
			if got := e.value(t, e.main.ID, "greeting.hello", "", "en"); got != tc.want {
				t.Errorf("resolved value: got %q, want %q", got, tc.want)
			}

			// Re-running with the same resolutions finds an empty diff and
			// is a no-op, stale resolutions and all.
			if tc.choice == domain.ResolveTakeSource {
				again, err := newTestMerger(e).Merge(feature.ID, e.main.ID, res)
				if err != nil {
					t.Fatalf("re-merge: %v", err)
				}
				if !again.Success || again.Merged != 0 {
					t.Errorf("re-merge with same resolutions: got %+v", again)
				}
			}
		})
	}
}

func TestMergeRejectsStrayResolution(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hi")

	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")
	e.clock.Advance(time.Minute)
	e.seed(t, feature.ID, "greeting.hello", "", "en", "Hello")

	// greeting.hello is modified, not conflicting, so resolving it is a
	// stale request and the merge must not apply.
	res := []domain.Resolution{{
		Key:    domain.ComparisonKey{Name: "greeting.hello", Language: "en"},
		Choice: domain.ResolveTakeSource,
	}}
	result, err := newTestMerger(e).Merge(feature.ID, e.main.ID, res)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.Success {
		t.Fatalf("stray resolution must block the merge, got %+v", result)
	}
	if got := e.value(t, e.main.ID, "greeting.hello", "", "en"); got != "Hi" {
		t.Errorf("target changed despite failed merge: %q", got)
	}
}

func TestMergeValidatesResolutionInput(t *testing.T) {
	e := newTestEnv(t)
	key := domain.ComparisonKey{Name: "greeting.hello", Language: "en"}

	_, err := newTestMerger(e).Merge(e.main.ID, e.main.ID, []domain.Resolution{
		{Key: key, Choice: "coin-flip"},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown choice: want validation error, got %v", err)
	}

	_, err = newTestMerger(e).Merge(e.main.ID, e.main.ID, []domain.Resolution{
		{Key: key, Choice: domain.ResolveTakeSource},
		{Key: key, Choice: domain.ResolveTakeTarget},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("duplicate resolution: want validation error, got %v", err)
	}
}

// Merged creates carry the source's review status; merged updates keep
// the status already on the target.
func TestMergeStatusHandling(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, e.main.ID, "greeting.hello", "", "en", "Hi")

	e.clock.Advance(time.Minute)
	feature := e.forkBranch(t, "feature")
	e.clock.Advance(time.Minute)
	if _, err := e.cat.CreateKey(feature.ID, "nav.contact", "", ""); err != nil {
		t.Fatalf("create key: %v", err)
	}
	if _, err := e.cat.SetTranslation(feature.ID, "nav.contact", "", "en", "Contact", domain.StatusPending); err != nil {
		t.Fatalf("set translation: %v", err)
	}
	e.seed(t, feature.ID, "greeting.hello", "", "en", "Hello")

	if _, err := newTestMerger(e).Merge(feature.ID, e.main.ID, nil); err != nil {
		t.Fatalf("merge: %v", err)
	}

	keys, trs, err := e.cat.ListKeys(e.main.ID)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	for _, k := range keys {
		for _, tr := range trs[k.ID] {
			switch k.Name {
			case "nav.contact":
				if tr.Status != domain.StatusPending {
					t.Errorf("created translation status: got %s", tr.Status)
				}
			case "greeting.hello":
				if tr.Status != domain.StatusApproved {
					t.Errorf("updated translation status: got %s", tr.Status)
				}
			}
		}
	}
}
