// The tag enumeration in this file is adapted from pulumictl (https://github.com/pulumi/pulumictl)
// which is licensed under the Apache License 2.0. See NOTICE file for full attribution.

package gitver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Repository implements History on top of a go-git repository.
type Repository struct {
	repo   *git.Repository
	logger *slog.Logger

	mu sync.Mutex
	// ancestry caches the set of commits reachable from each walked commit,
	// the commit itself included.
	ancestry map[plumbing.Hash]map[plumbing.Hash]struct{}
}

// OpenRepository opens a Git repository at the specified path
func OpenRepository(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository %q: %w: %w", path, ErrNotFound, err)
	}
	return NewRepository(repo), nil
}

// NewRepository wraps an already opened go-git repository.
func NewRepository(repo *git.Repository) *Repository {
	return &Repository{
		repo:     repo,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		ancestry: make(map[plumbing.Hash]map[plumbing.Hash]struct{}),
	}
}

// SetLogger sets the logger that receives debug output about unreadable tags.
func (r *Repository) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

func (r *Repository) ResolveReference(rev plumbing.Revision) (plumbing.Hash, error) {
	hash, err := r.repo.ResolveRevision(rev)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolving %q: %w: %w", rev, ErrNotFound, err)
	}
	return *hash, nil
}

func (r *Repository) IsAncestor(candidate, reference plumbing.Hash) (bool, error) {
	reachable, err := r.ancestors(reference)
	if err != nil {
		return false, err
	}
	_, ok := reachable[candidate]
	return ok, nil
}

// Distance counts the commits reachable from reference but not from
// candidate. A strict ancestor of a tagged commit is always further away than
// the tagged commit, whichever side of a merge it is reached through.
func (r *Repository) Distance(candidate, reference plumbing.Hash) (int, error) {
	fromReference, err := r.ancestors(reference)
	if err != nil {
		return 0, err
	}
	if _, ok := fromReference[candidate]; !ok {
		return 0, fmt.Errorf("commit %s is not an ancestor of %s", candidate, reference)
	}

	fromCandidate, err := r.ancestors(candidate)
	if err != nil {
		return 0, err
	}
	return len(fromReference) - len(fromCandidate), nil
}

// ancestors walks the parents of hash and returns every commit reached,
// hash included.
func (r *Repository) ancestors(hash plumbing.Hash) (map[plumbing.Hash]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seen, ok := r.ancestry[hash]; ok {
		return seen, nil
	}

	seen := map[plumbing.Hash]struct{}{hash: {}}
	queue := []plumbing.Hash{hash}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		commit, err := r.repo.CommitObject(current)
		if err != nil {
			// Parents cut off by a shallow clone end the walk on that path.
			if current != hash && errors.Is(err, plumbing.ErrObjectNotFound) {
				continue
			}
			return nil, fmt.Errorf("getting commit object %s: %w", current, err)
		}

		for _, parent := range commit.ParentHashes {
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}
			queue = append(queue, parent)
		}
	}

	r.ancestry[hash] = seen
	return seen, nil
}

// Tags lists lightweight and annotated tags sorted by name. Annotated tags are
// peeled to the commit they end at; tags that cannot be read or that do not
// end at a commit are skipped.
func (r *Repository) Tags() ([]Tag, error) {
	refs, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	var tags []Tag
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}

		target, err := r.peel(ref.Hash())
		if err != nil {
			r.logger.Debug("skipping tag", "tag", ref.Name().Short(), "error", err)
			return nil
		}
		tags = append(tags, Tag{Name: ref.Name().Short(), Target: target})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

// peel follows annotated tag objects starting at hash until it reaches a
// commit. A hash that is not a tag object is returned as is.
func (r *Repository) peel(hash plumbing.Hash) (plumbing.Hash, error) {
	for {
		obj, err := r.repo.TagObject(hash)
		switch err {
		case nil:
			// Annotated tag
		case plumbing.ErrObjectNotFound:
			// Lightweight tag
			return hash, nil
		default:
			return plumbing.ZeroHash, err
		}

		switch obj.TargetType {
		case plumbing.CommitObject:
			return obj.Target, nil
		case plumbing.TagObject:
			hash = obj.Target
		default:
			return plumbing.ZeroHash, fmt.Errorf("tag %s points at a %s", obj.Name, obj.TargetType)
		}
	}
}

// CommitMetadata returns the author time of hash and the checked out branch.
// A detached HEAD reports the full HEAD hash as its branch.
func (r *Repository) CommitMetadata(hash plumbing.Hash) (CommitMetadata, error) {
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return CommitMetadata{}, fmt.Errorf("getting commit object: %w", err)
	}

	head, err := r.repo.Head()
	if err != nil {
		return CommitMetadata{}, fmt.Errorf("reading HEAD: %w", err)
	}

	branch := head.Hash().String()
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	return CommitMetadata{
		Hash:       commit.Hash,
		AuthorTime: commit.Author.When,
		Branch:     branch,
	}, nil
}
