package git

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
)

// ErrNoRepository is returned when none of the candidate paths is a git repository.
var ErrNoRepository = stderrors.New("no git repository found")

// Revision identifies the HEAD of a repository.
type Revision struct {
	Path    string    `json:"path"`
	Commit  string    `json:"commit"`
	Branch  string    `json:"branch,omitempty"`
	Subject string    `json:"subject,omitempty"`
	When    time.Time `json:"when"`
}

// Short returns the abbreviated commit hash.
func (r Revision) Short() string {
	if len(r.Commit) > 12 {
		return r.Commit[:12]
	}
	return r.Commit
}

// ReadRevision opens the first candidate path that is a git repository and
// reads its HEAD.
func ReadRevision(candidates ...string) (Revision, error) {
	for _, p := range candidates {
		repo, err := git.PlainOpen(p)
		if stderrors.Is(err, git.ErrRepositoryNotExists) {
			continue
		}
		if err != nil {
			return Revision{}, fmt.Errorf("open repository %s: %w", p, err)
		}
		return readHead(repo, p)
	}
	return Revision{}, ErrNoRepository
}

func readHead(repo *git.Repository, path string) (Revision, error) {
	ref, err := repo.Head()
	if err != nil {
		return Revision{}, fmt.Errorf("read HEAD of %s: %w", path, err)
	}
	rev := Revision{Path: path, Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		rev.Branch = ref.Name().Short()
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Revision{}, fmt.Errorf("read commit %s: %w", rev.Short(), err)
	}
	rev.Subject, _, _ = strings.Cut(commit.Message, "\n")
	rev.When = commit.Committer.When
	return rev, nil
}
