package gitver

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var envLinePattern = regexp.MustCompile(`\b(GIT_\w+)[^=]*=.*`)

// envValues maps the GIT_* keys understood in environment files to values.
func envValues(resolved *ResolvedVersion, cfg *Config) map[string]string {
	props := Publish(resolved, cfg)
	return map[string]string{
		"GIT_VERSION":     props[PropVersion],
		"GIT_RELEASE":     props[PropRelease],
		"GIT_BRANCH":      resolved.BranchName,
		"GIT_TAG":         resolved.TagName,
		"GIT_HASH":        resolved.CommitHash,
		"GIT_DATE":        resolved.SimpleTime(),
		"GIT_BUILDNUMBER": props[PropBuildNumber],
	}
}

// RewriteEnv replaces the value of every known "GIT_KEY = value" assignment in
// content. Text before the key, such as indentation or "export ", and the line
// ending are kept. Unknown keys and all other lines are left untouched. It
// returns the new content and the number of lines changed.
func RewriteEnv(content string, resolved *ResolvedVersion, cfg *Config) (string, int) {
	values := envValues(resolved, cfg)

	lines := strings.Split(content, "\n")
	changed := 0
	for i, line := range lines {
		body := strings.TrimSuffix(line, "\r")
		m := envLinePattern.FindStringSubmatchIndex(body)
		if m == nil {
			continue
		}
		key := body[m[2]:m[3]]
		value, ok := values[key]
		if !ok {
			continue
		}
		lines[i] = fmt.Sprintf("%s%s\t= %s%s", body[:m[0]], key, value, line[len(body):])
		changed++
	}
	return strings.Join(lines, "\n"), changed
}

// RewriteEnvFile applies RewriteEnv to a file in place. The file is replaced
// atomically.
func RewriteEnvFile(path string, resolved *ResolvedVersion, cfg *Config) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat env file: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read env file: %w", err)
	}

	updated, changed := RewriteEnv(string(content), resolved, cfg)
	if changed == 0 {
		return 0, nil
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, []byte(updated), info.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return changed, nil
}
