// Package vcs provides the git-backed diff provider used by the regression
// agent. Diffs are produced by the git CLI and parsed with go-gitdiff into
// the neutral core.FileChange shape.
//
// A target that is not a git repository, is in a detached state, or names an
// unknown revision range yields an empty diff, never an error: a missing
// diff must not fail a whole session.
package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/hupe1980/qamesh/core"
)

// GitProvider implements core.DiffProvider over the git CLI.
type GitProvider struct {
	// Dir is the repository working directory ("" = process cwd).
	Dir string
	// ContextLines is passed to git diff as -U<n>.
	ContextLines int
}

// NewGitProvider creates a provider rooted at dir.
func NewGitProvider(dir string) *GitProvider {
	return &GitProvider{Dir: dir, ContextLines: 3}
}

// Diff returns the changed files for revRange ("" = working tree vs HEAD).
// Git failures of any kind degrade to an empty diff.
func (p *GitProvider) Diff(ctx context.Context, revRange string) ([]core.FileChange, error) {
	args := []string{"diff", fmt.Sprintf("-U%d", p.ContextLines)}
	if revRange != "" {
		args = append(args, revRange)
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = p.Dir
	out, err := cmd.Output()
	if err != nil {
		// Non-repo, detached state, unknown range: treat as no change.
		return nil, nil
	}
	return Parse(string(out))
}

// Parse converts a raw unified diff into core.FileChange records. Unparsable
// input degrades to an empty diff.
func Parse(raw string) ([]core.FileChange, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, nil
	}

	changes := make([]core.FileChange, 0, len(files))
	for _, f := range files {
		fc := core.FileChange{
			IsNew:     f.IsNew,
			IsDeleted: f.IsDelete,
		}
		fc.Path = f.NewName
		if fc.Path == "" {
			fc.Path = f.OldName
		}
		if f.IsRename {
			fc.OldPath = f.OldName
		}
		for _, frag := range f.TextFragments {
			var hunk strings.Builder
			hunk.WriteString(frag.Header())
			hunk.WriteString("\n")
			for _, line := range frag.Lines {
				hunk.WriteString(line.String())
				switch line.Op {
				case gitdiff.OpAdd:
					fc.Added++
				case gitdiff.OpDelete:
					fc.Deleted++
				}
			}
			fc.Hunks = append(fc.Hunks, hunk.String())
		}
		changes = append(changes, fc)
	}
	return changes, nil
}
