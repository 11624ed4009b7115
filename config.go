package gitver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

const (
	// DefaultPattern is the mask used for git.version.
	DefaultPattern = "00.00.0"

	// DefaultReleasePattern is the mask used for git.release.
	DefaultReleasePattern = "00.00"

	// DefaultConfigFile is looked up in the repository root by the CLI.
	DefaultConfigFile = "gitver.hcl"
)

// Config controls how a resolved version is published.
type Config struct {
	Pattern        string   // Mask for git.version
	ReleasePattern string   // Mask for git.release
	Nightly        bool     // Bump the patch of the resolved version
	TagPattern     string   // Regex tags must match to be considered
	EnvFiles       []string // Files whose GIT_* lines are rewritten
}

type hclConfig struct {
	Pattern        string       `hcl:"pattern,optional"`
	ReleasePattern string       `hcl:"release,optional"`
	Nightly        bool         `hcl:"nightly,optional"`
	TagPattern     string       `hcl:"tag_pattern,optional"`
	EnvFiles       []hclEnvFile `hcl:"env_file,block"`
}

type hclEnvFile struct {
	Path string `hcl:"path,label"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Pattern:        DefaultPattern,
		ReleasePattern: DefaultReleasePattern,
	}
}

// LoadConfig reads an HCL configuration file. A missing file yields the
// defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}

	var hclCfg hclConfig
	if err := hclsimple.DecodeFile(filename, nil, &hclCfg); err != nil {
		return nil, fmt.Errorf("failed to parse HCL config: %w", err)
	}

	cfg := DefaultConfig()
	if hclCfg.Pattern != "" {
		cfg.Pattern = hclCfg.Pattern
	}
	if hclCfg.ReleasePattern != "" {
		cfg.ReleasePattern = hclCfg.ReleasePattern
	}
	cfg.Nightly = hclCfg.Nightly
	cfg.TagPattern = hclCfg.TagPattern
	for _, f := range hclCfg.EnvFiles {
		cfg.EnvFiles = append(cfg.EnvFiles, f.Path)
	}
	return cfg, nil
}
