package gitver

import (
	"log/slog"
	"regexp"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

// ShortHashLength is the number of hex digits kept in ResolvedVersion.CommitHash.
const ShortHashLength = 9

// History is the read-only view of a repository that version resolution needs.
type History interface {
	// ResolveReference returns the commit a revision points at. It wraps
	// ErrNotFound when the revision does not exist.
	ResolveReference(rev plumbing.Revision) (plumbing.Hash, error)

	// IsAncestor reports whether candidate is reference or one of its ancestors.
	IsAncestor(candidate, reference plumbing.Hash) (bool, error)

	// Distance returns the number of commits reachable from reference but not
	// from candidate. It is 0 when both are the same commit.
	Distance(candidate, reference plumbing.Hash) (int, error)

	// Tags lists all tags with their target commits.
	Tags() ([]Tag, error)

	// CommitMetadata describes a commit and the current branch.
	CommitMetadata(hash plumbing.Hash) (CommitMetadata, error)
}

// Tag is a tag name and the commit it points at. Annotated tags are peeled.
type Tag struct {
	Name   string
	Target plumbing.Hash
}

// CommitMetadata holds the commit details copied into a ResolvedVersion.
type CommitMetadata struct {
	Hash       plumbing.Hash
	AuthorTime time.Time
	Branch     string
}

// Options configures version resolution
type Options struct {
	// Repository is the history to analyze
	Repository History

	// Commitish specifies the reference commit (default: "HEAD")
	Commitish plumbing.Revision

	// Pattern extracts a version from a tag name (default: TagPattern)
	Pattern *regexp.Regexp

	// TagFilter allows filtering which tags to consider
	TagFilter func(string) bool

	// TagPattern is a regex pattern to filter tags (alternative to TagFilter)
	TagPattern string

	// Logger receives debug output about skipped tags (default: discard)
	Logger *slog.Logger

	// Now is the clock used for the build ordinal (default: time.Now)
	Now func() time.Time
}

// TagCandidate is a reachable tag whose name parsed as a version.
type TagCandidate struct {
	Name     string
	Hash     plumbing.Hash
	Distance int
	Version  Version
}

// ResolvedVersion is the version found for a reference commit.
type ResolvedVersion struct {
	CommitHash   string    `json:"hash" yaml:"hash"`
	BranchName   string    `json:"branch" yaml:"branch"`
	CommitTime   time.Time `json:"date" yaml:"date"`
	TagName      string    `json:"tag" yaml:"tag"`
	Distance     int       `json:"distance" yaml:"distance"`
	Version      Version   `json:"version" yaml:"version"`
	BuildOrdinal int64     `json:"buildnumber" yaml:"buildnumber"`
}

// ISOTime formats the commit time as RFC 3339 with its original offset.
func (r *ResolvedVersion) ISOTime() string {
	return r.CommitTime.Format(time.RFC3339)
}

// SimpleTime formats the commit time as "2006-01-02 15:04:05 -0700".
func (r *ResolvedVersion) SimpleTime() string {
	return r.CommitTime.Format("2006-01-02 15:04:05 -0700")
}

func (r *ResolvedVersion) String() string {
	return r.Version.Format(DefaultPattern)
}
