package core

import "context"

// FileChange is one changed file from a VCS diff, reduced to what the
// regression strategy needs.
type FileChange struct {
	// Path is the post-change path (or the pre-change path for deletions).
	Path string `json:"path"`
	// OldPath is the pre-change path for renames.
	OldPath string `json:"old_path,omitempty"`
	// Added and Deleted count changed lines.
	Added   int `json:"added"`
	Deleted int `json:"deleted"`
	// IsNew / IsDeleted flag file creation and removal.
	IsNew     bool `json:"is_new,omitempty"`
	IsDeleted bool `json:"is_deleted,omitempty"`
	// Hunks holds the raw text fragments of the change.
	Hunks []string `json:"hunks,omitempty"`
}

// DiffProvider returns the changed files for a revision range. Providers
// must tolerate non-repository or detached-state targets by returning an
// empty diff rather than an error; a failed diff must never fail a session.
type DiffProvider interface {
	Diff(ctx context.Context, revRange string) ([]FileChange, error)
}
