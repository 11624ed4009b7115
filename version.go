// Package gitver derives release versions from Git tags and commit ancestry.
package gitver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/blang/semver"
)

const versionExpr = `(?P<major>\d+)\.(?P<minor>\d+)(?:\.(?P<patch>\d+))?(?:-(?P<name>[a-zA-Z0-9.]+))?(?:\+(?P<build>[a-zA-Z0-9.]+))?`

var (
	// VersionPattern matches a dotted version anywhere in a string.
	VersionPattern = regexp.MustCompile(versionExpr)

	// TagPattern is the loose pattern used when scanning tag names. It also
	// accepts "/" between the numeric components, e.g. "release/19/12".
	TagPattern = regexp.MustCompile(`(?P<major>\d+)[./](?P<minor>\d+)(?:[./](?P<patch>\d+))?(?:-(?P<name>[a-zA-Z0-9.]+))?(?:\+(?P<build>[a-zA-Z0-9.]+))?`)

	strictPattern = regexp.MustCompile(`^` + versionExpr + `$`)
	maskPattern   = regexp.MustCompile(`(0+)\.(0+)(?:\.(0+))?(?:-(0+))?(?:\+(0+))?`)
)

// Version is an immutable major.minor[.patch][-name][+build] value.
// Only major, minor and patch take part in ordering.
type Version struct {
	major    int
	minor    int
	patch    int
	hasPatch bool
	pre      string
	build    string
}

// New returns a version without a patch component.
func New(major, minor int) Version {
	return Version{major: major, minor: minor}
}

// NewPatch returns a version with all three numeric components.
func NewPatch(major, minor, patch int) Version {
	return Version{major: major, minor: minor, patch: patch, hasPatch: true}
}

func (v Version) Major() int { return v.major }
func (v Version) Minor() int { return v.minor }

// Patch returns the patch number and whether it is present. An absent patch
// is distinct from a patch of zero.
func (v Version) Patch() (int, bool) { return v.patch, v.hasPatch }

// PreRelease returns the pre-release label, or "" when absent.
func (v Version) PreRelease() string { return v.pre }

// Build returns the build metadata, or "" when absent.
func (v Version) Build() string { return v.build }

// WithPreRelease returns a copy of v carrying the given pre-release label.
func (v Version) WithPreRelease(name string) Version {
	v.pre = name
	return v
}

// WithBuild returns a copy of v carrying the given build metadata.
func (v Version) WithBuild(build string) Version {
	v.build = build
	return v
}

// IncPatch returns a copy of v with the patch incremented. An absent patch
// becomes 0. Labels are dropped.
func (v Version) IncPatch() Version {
	next := -1
	if v.hasPatch {
		next = v.patch
	}
	return NewPatch(v.major, v.minor, next+1)
}

// ordinalPatch maps an absent patch below any present one.
func (v Version) ordinalPatch() int {
	if !v.hasPatch {
		return -1
	}
	return v.patch
}

// Compare returns -1, 0 or +1 as v is lower than, equal to or higher than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.major != o.major:
		return cmpInt(v.major, o.major)
	case v.minor != o.minor:
		return cmpInt(v.minor, o.minor)
	default:
		return cmpInt(v.ordinalPatch(), o.ordinalPatch())
	}
}

// Equal reports whether v and o have the same ordering components.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders the version as major.minor[.patch][-name][+build].
func (v Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d", v.major, v.minor)
	if v.hasPatch {
		fmt.Fprintf(&b, ".%d", v.patch)
	}
	if v.pre != "" {
		b.WriteString("-" + v.pre)
	}
	if v.build != "" {
		b.WriteString("+" + v.build)
	}
	return b.String()
}

// Format renders the version against a mask such as "00.00.0" or "0000.00".
// Each zero run sets the minimum width of its component. A "-0" or "+0" block
// only enables the pre-release or build label, which is copied verbatim.
// Masks that do not fit this shape fall back to String.
func (v Version) Format(mask string) string {
	m := maskPattern.FindStringSubmatch(mask)
	if m == nil {
		return v.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%0*d.%0*d", len(m[1]), v.major, len(m[2]), v.minor)
	if m[3] != "" {
		patch := 0
		if v.hasPatch && v.patch > 0 {
			patch = v.patch
		}
		fmt.Fprintf(&b, ".%0*d", len(m[3]), patch)
	}
	if m[4] != "" && v.pre != "" {
		b.WriteString("-" + v.pre)
	}
	if m[5] != "" && v.build != "" {
		b.WriteString("+" + v.build)
	}
	return b.String()
}

// Semver converts v to a blang/semver version. An absent patch becomes 0.
func (v Version) Semver() semver.Version {
	sv := semver.Version{
		Major: uint64(v.major),
		Minor: uint64(v.minor),
	}
	if v.hasPatch {
		sv.Patch = uint64(v.patch)
	}
	if v.pre != "" {
		for _, part := range strings.Split(v.pre, ".") {
			pr, err := semver.NewPRVersion(part)
			if err != nil {
				// Labels like "01" are not valid semver identifiers.
				pr = semver.PRVersion{VersionStr: part}
			}
			sv.Pre = append(sv.Pre, pr)
		}
	}
	if v.build != "" {
		sv.Build = strings.Split(v.build, ".")
	}
	return sv
}

// Parse extracts the first version found anywhere in text.
func Parse(text string) (Version, error) {
	return ParsePattern(text, VersionPattern)
}

// ParseStrict parses text that must consist of a version and nothing else.
func ParseStrict(text string) (Version, error) {
	return ParsePattern(text, strictPattern)
}

// MustParse is like ParseStrict but panics on error.
func MustParse(text string) Version {
	v, err := ParseStrict(text)
	if err != nil {
		panic(err)
	}
	return v
}

// ParsePattern parses the first match of re in text. The pattern must define
// the named groups major and minor, and may define patch, name and build.
func ParsePattern(text string, re *regexp.Regexp) (Version, error) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return Version{}, &FormatError{Text: text, Reason: "no version found"}
	}
	return fromMatch(text, re, loc)
}

// ParsePatternExact is like ParsePattern but the match must cover all of text.
func ParsePatternExact(text string, re *regexp.Regexp) (Version, error) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil || loc[0] != 0 || loc[1] != len(text) {
		return Version{}, &FormatError{Text: text, Reason: "not a valid version"}
	}
	return fromMatch(text, re, loc)
}

func fromMatch(text string, re *regexp.Regexp, loc []int) (Version, error) {
	group := func(name string) (string, bool) {
		i := re.SubexpIndex(name)
		if i < 0 || loc[2*i] < 0 {
			return "", false
		}
		return text[loc[2*i]:loc[2*i+1]], true
	}
	number := func(name string) (int, bool, error) {
		s, ok := group(name)
		if !ok {
			return 0, false, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, false, &FormatError{Text: text, Reason: fmt.Sprintf("invalid %s component %q", name, s)}
		}
		return n, true, nil
	}

	major, ok, err := number("major")
	if err != nil {
		return Version{}, err
	}
	if !ok {
		return Version{}, &FormatError{Text: text, Reason: "missing major component"}
	}
	minor, ok, err := number("minor")
	if err != nil {
		return Version{}, err
	}
	if !ok {
		return Version{}, &FormatError{Text: text, Reason: "missing minor component"}
	}
	patch, hasPatch, err := number("patch")
	if err != nil {
		return Version{}, err
	}

	v := Version{major: major, minor: minor, patch: patch, hasPatch: hasPatch}
	v.pre, _ = group("name")
	v.build, _ = group("build")
	return v, nil
}

// MarshalText implements encoding.TextMarshaler using String.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseStrict.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseStrict(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
