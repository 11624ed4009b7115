package gitver

import (
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
)

var testSignature = &object.Signature{
	Name:  "test",
	Email: "test@example.com",
	When:  time.Date(2019, time.December, 3, 14, 30, 0, 0, time.FixedZone("CET", 3600)),
}

// testRepoCreate creates a new in-memory git repository for testing
func testRepoCreate() (*git.Repository, error) {
	storage := memory.NewStorage()
	fs := memfs.New()
	return git.Init(storage, fs)
}

// testCommit writes a file named after msg and commits it. Without parents the
// commit goes on top of HEAD.
func testCommit(repo *git.Repository, msg string, parents ...plumbing.Hash) (plumbing.Hash, error) {
	workTree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	filename := "file_" + msg + ".txt"
	if err := writeFile(workTree.Filesystem, filename, "Content for "+msg); err != nil {
		return plumbing.ZeroHash, err
	}

	if _, err := workTree.Add(filename); err != nil {
		return plumbing.ZeroHash, err
	}

	return workTree.Commit(msg, &git.CommitOptions{
		Author:  testSignature,
		Parents: parents,
	})
}

// testRepoLinear creates one commit per tag, oldest first, tagging each commit
// with its own tag. It returns the commit hashes in order.
func testRepoLinear(repo *git.Repository, tags []string) ([]plumbing.Hash, error) {
	hashes := make([]plumbing.Hash, 0, len(tags))
	for _, tag := range tags {
		hash, err := testCommit(repo, "commit-"+sanitize(tag))
		if err != nil {
			return nil, err
		}
		if _, err := repo.CreateTag(tag, hash, nil); err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

// testAnnotatedTag creates an annotated tag on hash.
func testAnnotatedTag(repo *git.Repository, name string, hash plumbing.Hash) error {
	_, err := repo.CreateTag(name, hash, &git.CreateTagOptions{
		Tagger:  testSignature,
		Message: "Release " + name,
	})
	return err
}

func sanitize(name string) string {
	out := []byte(name)
	for i, c := range out {
		if c == '/' {
			out[i] = '_'
		}
	}
	return string(out)
}

// writeFile writes content to a file in the given filesystem
func writeFile(fs billy.Filesystem, filename, content string) error {
	file, err := fs.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.Write([]byte(content))
	return err
}
