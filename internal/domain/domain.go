// Package domain defines the entities managed by weft: Projects, Spaces,
// Branches, Keys and per-language Translations, plus the structures exchanged
// by the branch diff and merge engines.
//
// Branches are copy-on-write snapshots of a Space's key/translation set. A
// branch records only single-hop lineage: the branch it was forked from and
// the instant the copy was taken. That fork timestamp is the implicit merge
// base for any later three-way comparison.
package domain

import (
	"strings"
	"time"
)

// TranslationStatus is the review state of a single translation.
type TranslationStatus string

const (
	StatusPending  TranslationStatus = "pending"
	StatusApproved TranslationStatus = "approved"
	StatusRejected TranslationStatus = "rejected"
)

// ValidStatus reports whether s is one of the known translation statuses.
func ValidStatus(s TranslationStatus) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Project is the top level of the content tree.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Space groups branches under a project.
type Space struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Branch is an isolated, named copy of a Space's translation keys.
//
// SourceBranchID is nil only for a Space's initial branch. ForkedAt is set
// exactly once, by the fork operation, and never updated afterwards; merges
// do not touch lineage.
type Branch struct {
	ID             string     `json:"id"`
	SpaceID        string     `json:"space_id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	IsDefault      bool       `json:"is_default"`
	SourceBranchID *string    `json:"source_branch_id,omitempty"`
	ForkedAt       *time.Time `json:"forked_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Key is a named translation unit within a branch. (Name, Namespace) is
// unique per branch. Keys get fresh identities on fork, so cross-branch
// matching always goes through the comparison key, never the id.
type Key struct {
	ID          string    `json:"id"`
	BranchID    string    `json:"branch_id"`
	Name        string    `json:"name"`
	Namespace   string    `json:"namespace,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Translation holds one language's value for a key. An empty Value means
// "untranslated", which is distinct from the translation being absent.
// UpdatedAt is the divergence clock: the fork operation stamps copies with
// the fork time, and every real edit moves it forward.
type Translation struct {
	ID        string            `json:"id"`
	KeyID     string            `json:"key_id"`
	Language  string            `json:"language"`
	Value     string            `json:"value"`
	Status    TranslationStatus `json:"status"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ComparisonKey identifies one (key, language) pair across branches whose
// keys have different generated identities.
type ComparisonKey struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
	Language  string `json:"language"`
}

// String renders the comparison key as name[@namespace]:language, the form
// used in CLI output and error messages.
func (c ComparisonKey) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	if c.Namespace != "" {
		b.WriteByte('@')
		b.WriteString(c.Namespace)
	}
	b.WriteByte(':')
	b.WriteString(c.Language)
	return b.String()
}

// DiffEntry is one classified difference between two branches.
type DiffEntry struct {
	Key         ComparisonKey `json:"key"`
	SourceValue string        `json:"source_value,omitempty"`
	TargetValue string        `json:"target_value,omitempty"`
	// Status of the source side translation, carried so merges can
	// recreate translations with their review state intact.
	SourceStatus TranslationStatus `json:"source_status,omitempty"`
	Description  string            `json:"description,omitempty"`
}

// DiffResult is the structured comparison of a source branch against a
// target branch.
type DiffResult struct {
	SourceBranchID string      `json:"source_branch_id"`
	TargetBranchID string      `json:"target_branch_id"`
	Added          []DiffEntry `json:"added"`
	Deleted        []DiffEntry `json:"deleted"`
	Modified       []DiffEntry `json:"modified"`
	Conflicts      []DiffEntry `json:"conflicts"`
	Summary        DiffSummary `json:"summary"`
}

// DiffSummary carries the per-class counts of a diff.
type DiffSummary struct {
	Added     int `json:"added"`
	Deleted   int `json:"deleted"`
	Modified  int `json:"modified"`
	Conflicts int `json:"conflicts"`
	Total     int `json:"total"`
}

// Empty reports whether the diff contains no differences at all.
func (d *DiffResult) Empty() bool {
	return d.Summary.Total == 0
}

// ResolutionChoice selects the outcome for one conflicting pair.
type ResolutionChoice string

const (
	ResolveTakeSource ResolutionChoice = "take-source"
	ResolveTakeTarget ResolutionChoice = "take-target"
	ResolveOverride   ResolutionChoice = "override"
)

// Resolution decides one conflict. OverrideValue is consulted only when
// Choice is ResolveOverride.
type Resolution struct {
	Key           ComparisonKey    `json:"key"`
	Choice        ResolutionChoice `json:"choice"`
	OverrideValue string           `json:"override_value,omitempty"`
}

// MergeResult reports the outcome of merging a source branch into a target.
// When Success is false, Unresolved lists the conflicts that blocked the
// merge and nothing was applied.
type MergeResult struct {
	Success    bool            `json:"success"`
	Merged     int             `json:"merged"`
	Unresolved []ComparisonKey `json:"unresolved,omitempty"`
}
