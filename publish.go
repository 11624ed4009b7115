package gitver

import (
	"sort"
	"strconv"
	"strings"
)

// Property keys published for a resolved version.
const (
	PropCommitDate  = "git.commit.date"
	PropCommitHash  = "git.commit.hash"
	PropBranch      = "git.commit.branch"
	PropTag         = "git.tag"
	PropBuildNumber = "git.buildnumber"
	PropVersion     = "git.version"
	PropRelease     = "git.release"
)

// Properties is the set of values handed to a build for stamping.
type Properties map[string]string

// Publish renders a resolved version into properties according to cfg.
func Publish(resolved *ResolvedVersion, cfg *Config) Properties {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	version := resolved.Version
	if cfg.Nightly {
		version = version.IncPatch()
	}

	return Properties{
		PropCommitDate:  resolved.ISOTime(),
		PropCommitHash:  resolved.CommitHash,
		PropBranch:      resolved.BranchName,
		PropTag:         resolved.TagName,
		PropBuildNumber: strconv.FormatInt(resolved.BuildOrdinal, 10),
		PropVersion:     version.Format(cfg.Pattern),
		PropRelease:     version.Format(cfg.ReleasePattern),
	}
}

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Env returns the properties keyed by environment variable name, e.g.
// git.commit.hash becomes GIT_COMMIT_HASH.
func (p Properties) Env() map[string]string {
	env := make(map[string]string, len(p))
	for k, v := range p {
		env[EnvName(k)] = v
	}
	return env
}

// EnvName converts a property key to its environment variable name.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
