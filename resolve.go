package gitver

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

// Resolve finds the tag that best describes the version at opts.Commitish.
// found is false, with a nil error, when no reachable tag carries a version.
func Resolve(opts Options) (resolved *ResolvedVersion, found bool, err error) {
	if opts.Repository == nil {
		return nil, false, fmt.Errorf("repository is required")
	}

	opts, err = withDefaults(opts)
	if err != nil {
		return nil, false, err
	}

	reference, err := opts.Repository.ResolveReference(opts.Commitish)
	if err != nil {
		return nil, false, err
	}

	meta, err := opts.Repository.CommitMetadata(reference)
	if err != nil {
		return nil, false, fmt.Errorf("reading commit metadata: %w", err)
	}

	candidates, err := Candidates(opts.Repository, reference, opts)
	if err != nil {
		return nil, false, err
	}

	best, ok := SelectBest(candidates)
	if !ok {
		opts.Logger.Debug("no version tag reachable", "commit", reference.String())
		return nil, false, nil
	}

	hash := meta.Hash.String()
	if len(hash) > ShortHashLength {
		hash = hash[:ShortHashLength]
	}

	return &ResolvedVersion{
		CommitHash:   hash,
		BranchName:   meta.Branch,
		CommitTime:   meta.AuthorTime,
		TagName:      best.Name,
		Distance:     best.Distance,
		Version:      best.Version,
		BuildOrdinal: BuildOrdinalAt(opts.Now()),
	}, true, nil
}

// ResolvePath opens the repository containing path and resolves it.
func ResolvePath(path string, opts Options) (*ResolvedVersion, bool, error) {
	repo, err := OpenRepository(path)
	if err != nil {
		return nil, false, err
	}
	repo.SetLogger(opts.Logger)
	opts.Repository = repo
	return Resolve(opts)
}

func withDefaults(opts Options) (Options, error) {
	if opts.Commitish == "" {
		opts.Commitish = "HEAD"
	}
	if opts.Pattern == nil {
		opts.Pattern = TagPattern
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	// Apply tag pattern filter if specified
	if opts.TagPattern != "" && opts.TagFilter == nil {
		re, err := regexp.Compile(opts.TagPattern)
		if err != nil {
			return opts, fmt.Errorf("invalid tag pattern: %w", err)
		}
		opts.TagFilter = re.MatchString
	}
	return opts, nil
}

// Candidates returns every tag reachable from reference whose name parses as a
// version. Tags that fail any step are logged and skipped; only a failure to
// list tags is returned as an error.
func Candidates(history History, reference plumbing.Hash, opts Options) ([]TagCandidate, error) {
	opts, err := withDefaults(opts)
	if err != nil {
		return nil, err
	}

	tags, err := history.Tags()
	if err != nil {
		return nil, err
	}

	var candidates []TagCandidate
	for _, tag := range tags {
		log := opts.Logger.With("tag", tag.Name)

		if opts.TagFilter != nil && !opts.TagFilter(tag.Name) {
			log.Debug("tag filtered out")
			continue
		}

		reachable, err := history.IsAncestor(tag.Target, reference)
		if err != nil {
			log.Debug("skipping tag", "error", err)
			continue
		}
		if !reachable {
			continue
		}

		version, err := ParsePattern(tag.Name, opts.Pattern)
		if err != nil {
			log.Debug("skipping tag", "error", err)
			continue
		}

		distance, err := history.Distance(tag.Target, reference)
		if err != nil {
			log.Debug("skipping tag", "error", err)
			continue
		}

		candidates = append(candidates, TagCandidate{
			Name:     tag.Name,
			Hash:     tag.Target,
			Distance: distance,
			Version:  version,
		})
	}
	return candidates, nil
}

// SelectBest picks the candidate nearest to the reference commit, preferring
// the higher version between equally near tags. Remaining ties are broken by
// tag name so the result does not depend on input order.
func SelectBest(candidates []TagCandidate) (TagCandidate, bool) {
	if len(candidates) == 0 {
		return TagCandidate{}, false
	}

	ranked := make([]TagCandidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if c := a.Version.Compare(b.Version); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})
	return ranked[0], true
}
