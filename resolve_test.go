package gitver

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"
)

// fakeHistory is a History over a fixed commit graph. parents maps each
// commit to its parents.
type fakeHistory struct {
	head     plumbing.Hash
	parents  map[plumbing.Hash][]plumbing.Hash
	tags     []Tag
	branch   string
	when     time.Time
	badCheck map[plumbing.Hash]bool
}

func fakeHash(n int) plumbing.Hash {
	return plumbing.NewHash(fmt.Sprintf("%040x", n))
}

func (f *fakeHistory) ResolveReference(rev plumbing.Revision) (plumbing.Hash, error) {
	if rev == "HEAD" {
		return f.head, nil
	}
	return plumbing.ZeroHash, fmt.Errorf("resolving %q: %w", rev, ErrNotFound)
}

// reachable returns hash and every commit behind it.
func (f *fakeHistory) reachable(hash plumbing.Hash) map[plumbing.Hash]bool {
	seen := map[plumbing.Hash]bool{hash: true}
	queue := []plumbing.Hash{hash}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		for _, p := range f.parents[h] {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return seen
}

func (f *fakeHistory) IsAncestor(candidate, reference plumbing.Hash) (bool, error) {
	if f.badCheck[candidate] {
		return false, errors.New("broken object")
	}
	return f.reachable(reference)[candidate], nil
}

func (f *fakeHistory) Distance(candidate, reference plumbing.Hash) (int, error) {
	fromReference := f.reachable(reference)
	if !fromReference[candidate] {
		return 0, errors.New("not an ancestor")
	}
	return len(fromReference) - len(f.reachable(candidate)), nil
}

func (f *fakeHistory) Tags() ([]Tag, error) { return f.tags, nil }

func (f *fakeHistory) CommitMetadata(hash plumbing.Hash) (CommitMetadata, error) {
	return CommitMetadata{Hash: hash, AuthorTime: f.when, Branch: f.branch}, nil
}

// linearHistory builds commits 1..n where each commit's parent is the previous
// one and n is HEAD.
func linearHistory(n int) *fakeHistory {
	f := &fakeHistory{
		head:    fakeHash(n),
		parents: make(map[plumbing.Hash][]plumbing.Hash),
		branch:  "main",
		when:    time.Date(2020, time.March, 1, 9, 0, 0, 0, time.FixedZone("", 2*3600)),
	}
	for i := 2; i <= n; i++ {
		f.parents[fakeHash(i)] = []plumbing.Hash{fakeHash(i - 1)}
	}
	return f
}

func fixedNow() time.Time {
	return BuildEpoch.Add(100 * time.Hour)
}

func TestSelectBest(t *testing.T) {
	t.Run("nearest tag wins", func(t *testing.T) {
		best, ok := SelectBest([]TagCandidate{
			{Name: "v9.0.0", Distance: 3, Version: NewPatch(9, 0, 0)},
			{Name: "v1.0.0", Distance: 1, Version: NewPatch(1, 0, 0)},
		})
		require.True(t, ok)
		require.Equal(t, "v1.0.0", best.Name)
	})

	t.Run("higher version wins at equal distance", func(t *testing.T) {
		best, ok := SelectBest([]TagCandidate{
			{Name: "1.2.0", Distance: 0, Version: NewPatch(1, 2, 0)},
			{Name: "1.3.0", Distance: 0, Version: NewPatch(1, 3, 0)},
		})
		require.True(t, ok)
		require.Equal(t, "1.3.0", best.Name)
	})

	t.Run("equal versions break on name", func(t *testing.T) {
		a := []TagCandidate{
			{Name: "v1.0.0", Distance: 0, Version: NewPatch(1, 0, 0)},
			{Name: "1.0.0-final", Distance: 0, Version: NewPatch(1, 0, 0).WithPreRelease("final")},
		}
		b := []TagCandidate{a[1], a[0]}

		bestA, _ := SelectBest(a)
		bestB, _ := SelectBest(b)
		require.Equal(t, bestA, bestB)
		require.Equal(t, "1.0.0-final", bestA.Name)
	})

	t.Run("does not reorder input", func(t *testing.T) {
		in := []TagCandidate{
			{Name: "a", Distance: 2, Version: New(1, 0)},
			{Name: "b", Distance: 1, Version: New(1, 0)},
		}
		_, _ = SelectBest(in)
		require.Equal(t, "a", in[0].Name)
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := SelectBest(nil)
		require.False(t, ok)
	})
}

func TestResolveWithFakeHistory(t *testing.T) {
	t.Run("tie on the same commit selects the higher version", func(t *testing.T) {
		f := linearHistory(3)
		f.tags = []Tag{
			{Name: "1.2.0", Target: fakeHash(3)},
			{Name: "1.3.0", Target: fakeHash(3)},
		}

		resolved, found, err := Resolve(Options{Repository: f, Now: fixedNow})
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "1.3.0", resolved.TagName)
		require.Equal(t, 0, resolved.Distance)
		require.Equal(t, NewPatch(1, 3, 0), resolved.Version)
		require.Equal(t, int64(100), resolved.BuildOrdinal)
		require.Equal(t, "main", resolved.BranchName)
		require.Equal(t, fakeHash(3).String()[:ShortHashLength], resolved.CommitHash)
		require.Equal(t, "2020-03-01T09:00:00+02:00", resolved.ISOTime())
	})

	t.Run("malformed tag does not block resolution", func(t *testing.T) {
		f := linearHistory(2)
		f.tags = []Tag{
			{Name: "release-final", Target: fakeHash(2)},
			{Name: "2.1.0", Target: fakeHash(1)},
		}

		resolved, found, err := Resolve(Options{Repository: f})
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "2.1.0", resolved.TagName)
		require.Equal(t, 1, resolved.Distance)
	})

	t.Run("failing ancestry check drops only that tag", func(t *testing.T) {
		f := linearHistory(3)
		f.tags = []Tag{
			{Name: "v5.0.0", Target: fakeHash(3)},
			{Name: "v1.0.0", Target: fakeHash(1)},
		}
		f.badCheck = map[plumbing.Hash]bool{fakeHash(3): true}

		resolved, found, err := Resolve(Options{Repository: f})
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "v1.0.0", resolved.TagName)
	})

	t.Run("no reachable tag is not an error", func(t *testing.T) {
		f := linearHistory(2)
		f.tags = []Tag{{Name: "v1.0.0", Target: fakeHash(99)}}

		resolved, found, err := Resolve(Options{Repository: f})
		require.NoError(t, err)
		require.False(t, found)
		require.Nil(t, resolved)
	})

	t.Run("unknown reference is ErrNotFound", func(t *testing.T) {
		f := linearHistory(1)
		_, _, err := Resolve(Options{Repository: f, Commitish: "nope"})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("diverging branches", func(t *testing.T) {
		// 1 <- 2 <- 3 <- 5 (merge, HEAD)
		//   \- 4 ------/
		f := linearHistory(3)
		f.head = fakeHash(5)
		f.parents[fakeHash(4)] = []plumbing.Hash{fakeHash(1)}
		f.parents[fakeHash(5)] = []plumbing.Hash{fakeHash(3), fakeHash(4)}
		f.tags = []Tag{
			{Name: "v1.0.0", Target: fakeHash(1)},
			{Name: "v1.1.0", Target: fakeHash(3)},
			{Name: "v2.0.0", Target: fakeHash(4)},
		}

		candidates, err := Candidates(f, f.head, Options{})
		require.NoError(t, err)
		require.Len(t, candidates, 3)

		distances := map[string]int{}
		for _, c := range candidates {
			distances[c.Name] = c.Distance
		}
		require.Equal(t, map[string]int{"v1.0.0": 4, "v1.1.0": 2, "v2.0.0": 3}, distances)

		best, ok := SelectBest(candidates)
		require.True(t, ok)
		require.Equal(t, "v1.1.0", best.Name)
	})

	t.Run("older release merged back through a short branch", func(t *testing.T) {
		// 1 (v1.0.0) <- 2 (v1.1.0) <- 3 <- 4 <- 6 (merge, HEAD)
		//   \- 5 -------------------------/
		f := linearHistory(4)
		f.head = fakeHash(6)
		f.parents[fakeHash(5)] = []plumbing.Hash{fakeHash(1)}
		f.parents[fakeHash(6)] = []plumbing.Hash{fakeHash(4), fakeHash(5)}
		f.tags = []Tag{
			{Name: "v1.0.0", Target: fakeHash(1)},
			{Name: "v1.1.0", Target: fakeHash(2)},
		}

		candidates, err := Candidates(f, f.head, Options{})
		require.NoError(t, err)
		distances := map[string]int{}
		for _, c := range candidates {
			distances[c.Name] = c.Distance
		}
		require.Greater(t, distances["v1.0.0"], distances["v1.1.0"])

		resolved, found, err := Resolve(Options{Repository: f})
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "v1.1.0", resolved.TagName)
		require.Equal(t, 4, resolved.Distance)
	})

	t.Run("tag filter", func(t *testing.T) {
		f := linearHistory(2)
		f.tags = []Tag{
			{Name: "sdk/v3.0.0", Target: fakeHash(2)},
			{Name: "v1.0.0", Target: fakeHash(1)},
		}

		resolved, found, err := Resolve(Options{Repository: f, TagPattern: `^v`})
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "v1.0.0", resolved.TagName)

		_, _, err = Resolve(Options{Repository: f, TagPattern: `(`})
		require.Error(t, err)
	})

	t.Run("repository is required", func(t *testing.T) {
		_, _, err := Resolve(Options{})
		require.Error(t, err)
	})
}

func TestBuildOrdinal(t *testing.T) {
	require.Equal(t, int64(0), BuildOrdinalAt(BuildEpoch))
	require.Equal(t, int64(0), BuildOrdinalAt(BuildEpoch.Add(59*time.Minute)))
	require.Equal(t, int64(1), BuildOrdinalAt(BuildEpoch.Add(time.Hour)))
	require.Equal(t, int64(-1), BuildOrdinalAt(BuildEpoch.Add(-time.Minute)))
	require.Equal(t, int64(24), BuildOrdinalAt(time.Date(2016, 1, 2, 1, 0, 0, 0, time.FixedZone("", 3600))))

	before := BuildOrdinal()
	require.Greater(t, before, int64(0))
	require.GreaterOrEqual(t, BuildOrdinal(), before)
}
