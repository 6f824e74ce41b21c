// Package vcs answers the version-control questions of incremental runs.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepository is returned when no repository encloses the path.
var ErrNotRepository = errors.New("not a git repository")

// Repo is an opened git repository with a worktree.
type Repo struct {
	repo *git.Repository
	wt   *git.Worktree
	root string
}

// Open opens the repository containing path, searching parent directories.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
	}
	if err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	return &Repo{repo: repo, wt: wt, root: wt.Filesystem.Root()}, nil
}

// Root returns the absolute worktree root.
func (r *Repo) Root() string {
	return r.root
}

// Resolve returns the commit hash a revision (branch, tag, SHA or
// expression such as HEAD~2) points at.
func (r *Repo) Resolve(rev string) (plumbing.Hash, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", rev, err)
	}
	return *hash, nil
}

// ChangedSince returns the files that differ between rev and the worktree:
// files changed by commits after rev plus staged, unstaged and untracked
// changes. Paths are absolute and sorted. Deleted files are left out.
func (r *Repo) ChangedSince(ctx context.Context, rev string) ([]string, error) {
	baseHash, err := r.Resolve(rev)
	if err != nil {
		return nil, err
	}
	baseTree, err := r.treeAt(baseHash)
	if err != nil {
		return nil, err
	}
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	headTree, err := r.treeAt(head.Hash())
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTreeWithOptions(ctx, baseTree, headTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diff %s..HEAD: %w", rev, err)
	}

	names := make(map[string]bool)
	for _, c := range changes {
		if c.To.Name != "" {
			names[c.To.Name] = true
		}
	}

	status, err := r.wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}
	for name, s := range status {
		if s.Worktree == git.Unmodified && s.Staging == git.Unmodified {
			continue
		}
		names[name] = true
	}

	files := make([]string, 0, len(names))
	for name := range names {
		path := filepath.Join(r.root, filepath.FromSlash(name))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		files = append(files, path)
	}
	slices.Sort(files)
	return files, nil
}

func (r *Repo) treeAt(hash plumbing.Hash) (*object.Tree, error) {
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", hash, err)
	}
	return tree, nil
}
