// Package engine wires the registry, fork, diff and merge components into
// the surface consumed by the CLI and the HTTP API.
package engine

import (
	"github.com/weftworks/weft/internal/catalog"
	"github.com/weftworks/weft/internal/diffmerge"
	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/fork"
	"github.com/weftworks/weft/internal/registry"
	"github.com/weftworks/weft/internal/store"
)

// Engine is the branch fork & merge engine plus the surrounding CRUD
// services, all sharing one store.
type Engine struct {
	Registry *registry.Registry
	Catalog  *catalog.Service

	forker *fork.Forker
	differ *diffmerge.Differ
	merger *diffmerge.Merger
}

// New builds an Engine on top of s.
func New(s store.Store) *Engine {
	return &Engine{
		Registry: registry.New(s),
		Catalog:  catalog.New(s),
		forker:   fork.New(s),
		differ:   diffmerge.NewDiffer(s),
		merger:   diffmerge.NewMerger(s),
	}
}

// ForkBranch creates a copy-on-write clone of the source branch.
func (e *Engine) ForkBranch(sourceBranchID, name string) (*domain.Branch, error) {
	return e.forker.Fork(sourceBranchID, name)
}

// DiffBranches computes the structured comparison of source against target.
func (e *Engine) DiffBranches(sourceBranchID, targetBranchID string) (*domain.DiffResult, error) {
	return e.differ.Diff(sourceBranchID, targetBranchID)
}

// MergeBranches merges source into target. When conflicts remain unresolved
// the returned result lists them and the error is an
// *domain.UnresolvedConflictsError; nothing has been applied in that case.
func (e *Engine) MergeBranches(sourceBranchID, targetBranchID string, resolutions []domain.Resolution) (*domain.MergeResult, error) {
	result, err := e.merger.Merge(sourceBranchID, targetBranchID, resolutions)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return result, &domain.UnresolvedConflictsError{Keys: result.Unresolved}
	}
	return result, nil
}
