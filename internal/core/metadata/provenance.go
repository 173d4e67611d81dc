package metadata

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Provenance is the version-control origin of a file.
type Provenance struct {
	CommitSHA  string
	Author     string
	Branch     string
	SourceURL  string
	Repository string
}

// ProvenanceResolver looks up where a file came from.
type ProvenanceResolver interface {
	Resolve(path string) (Provenance, error)
}

// ErrNoHistory is returned when the file has no commit touching it.
var ErrNoHistory = errors.New("no commit history for file")

// GitResolver resolves provenance from the enclosing git working tree.
// Opened repositories are cached per directory.
type GitResolver struct {
	mu    sync.Mutex
	repos map[string]*gitRepo
}

type gitRepo struct {
	repo *git.Repository
	root string
	err  error
}

func NewGitResolver() *GitResolver {
	return &GitResolver{repos: make(map[string]*gitRepo)}
}

func (g *GitResolver) open(dir string) *gitRepo {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.repos[dir]; ok {
		return r
	}
	r := &gitRepo{}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		r.err = err
	} else if wt, err := repo.Worktree(); err != nil {
		r.err = err
	} else {
		r.repo = repo
		r.root = realPath(wt.Filesystem.Root())
	}
	g.repos[dir] = r
	return r
}

func (g *GitResolver) Resolve(path string) (Provenance, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Provenance{}, err
	}
	abs = realPath(abs)

	r := g.open(filepath.Dir(abs))
	if r.err != nil {
		return Provenance{}, r.err
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return Provenance{}, err
	}
	rel = filepath.ToSlash(rel)

	head, err := r.repo.Head()
	if err != nil {
		return Provenance{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash(), FileName: &rel})
	if err != nil {
		return Provenance{}, fmt.Errorf("git log %s: %w", rel, err)
	}
	defer iter.Close()
	commit, err := iter.Next()
	if err != nil || commit == nil {
		return Provenance{}, ErrNoHistory
	}

	p := Provenance{
		CommitSHA: commit.Hash.String(),
		Author:    fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email),
	}
	ref := p.CommitSHA
	if head.Name().IsBranch() {
		p.Branch = head.Name().Short()
		ref = p.Branch
	}

	if remote, err := r.repo.Remote(git.DefaultRemoteName); err == nil && len(remote.Config().URLs) > 0 {
		if slug, ok := githubSlug(remote.Config().URLs[0]); ok {
			p.Repository = slug
			p.SourceURL = fmt.Sprintf("https://github.com/%s/blob/%s/%s", slug, ref, rel)
		}
	}
	return p, nil
}

// githubSlug extracts "owner/repo" from https, ssh and scp-style remotes.
func githubSlug(remote string) (string, bool) {
	i := strings.Index(remote, "github.com")
	if i < 0 {
		return "", false
	}
	rest := remote[i+len("github.com"):]
	if rest == "" || (rest[0] != '/' && rest[0] != ':') {
		return "", false
	}
	slug := strings.Trim(strings.TrimSuffix(strings.TrimRight(rest[1:], "/"), ".git"), "/")
	if strings.Count(slug, "/") != 1 {
		return "", false
	}
	return slug, true
}

func realPath(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return p
}

// isNotRepository reports errors that just mean "no VCS here".
func isNotRepository(err error) bool {
	return errors.Is(err, git.ErrRepositoryNotExists) || errors.Is(err, ErrNoHistory) || errors.Is(err, plumbing.ErrReferenceNotFound)
}
