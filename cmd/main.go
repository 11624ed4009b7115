package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/jaxxstorm/gitver"
	"github.com/lmittmann/tint"
	"gopkg.in/yaml.v3"
)

// Version will be set by build process
var Version = "dev"

type CLI struct {
	Commitish   string   `arg:"" optional:"" help:"Git commitish to analyze or version string to convert (default: HEAD)"`
	Repo        string   `short:"r" help:"Repository path (default: current directory)"`
	Config      string   `short:"c" help:"Config file (default: <repo>/gitver.hcl)"`
	Pattern     string   `short:"p" help:"Version mask (e.g., '00.00.0')"`
	Release     string   `help:"Release mask (e.g., '00.00')"`
	Nightly     bool     `help:"Bump the patch of the resolved version"`
	TagPattern  string   `help:"Regex pattern to filter tags (e.g., '^v')"`
	Output      string   `short:"o" default:"text" enum:"text,json,yaml,properties,env,semver" help:"Output format"`
	Rewrite     []string `help:"Environment files whose GIT_* assignments are rewritten"`
	Strict      bool     `help:"Fail when no repository or version tag is found"`
	Verbose     int      `short:"v" type:"counter" help:"More output, repeat for even more"`
	NoColor     bool     `help:"Disable colored log output"`
	ShowVersion bool     `help:"Show version information" name:"version"`

	Out    io.Writer    `kong:"-"`
	logger *slog.Logger `kong:"-"`
}

// report is the structured form of the json and yaml outputs.
type report struct {
	Tag         string `json:"tag,omitempty" yaml:"tag,omitempty"`
	Hash        string `json:"hash,omitempty" yaml:"hash,omitempty"`
	Branch      string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Date        string `json:"date,omitempty" yaml:"date,omitempty"`
	Distance    int    `json:"distance" yaml:"distance"`
	BuildNumber int64  `json:"buildnumber" yaml:"buildnumber"`
	Version     string `json:"version" yaml:"version"`
	Release     string `json:"release" yaml:"release"`
	Semver      string `json:"semver" yaml:"semver"`
}

func main() {
	var cli CLI

	kong.Parse(&cli,
		kong.Name("gitver"),
		kong.Description("Derive a release version from the nearest Git version tag"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	err := cli.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *CLI) Run() error {
	if c.Out == nil {
		c.Out = os.Stdout
	}
	c.logger = newLogger(os.Stderr, c.Verbose, c.NoColor)

	// Handle version flag
	if c.ShowVersion {
		return c.showVersion()
	}

	repoPath := c.Repo
	if repoPath == "" {
		var err error
		repoPath, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
	}

	cfg, err := c.loadConfig(repoPath)
	if err != nil {
		return err
	}

	// Check if the input looks like a version string to convert
	if c.Commitish != "" && isVersionString(c.Commitish) {
		return c.convertVersion(cfg)
	}

	// Otherwise, resolve from git repository
	return c.resolveVersion(repoPath, cfg)
}

func newLogger(w io.Writer, verbose int, noColor bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}))
}

// loadConfig reads the config file and applies flag overrides.
func (c *CLI) loadConfig(repoPath string) (*gitver.Config, error) {
	path := c.Config
	if path == "" {
		path = filepath.Join(repoPath, gitver.DefaultConfigFile)
	}

	cfg, err := gitver.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if c.Pattern != "" {
		cfg.Pattern = c.Pattern
	}
	if c.Release != "" {
		cfg.ReleasePattern = c.Release
	}
	if c.Nightly {
		cfg.Nightly = true
	}
	if c.TagPattern != "" {
		cfg.TagPattern = c.TagPattern
	}
	for i, f := range cfg.EnvFiles {
		if !filepath.IsAbs(f) {
			cfg.EnvFiles[i] = filepath.Join(repoPath, f)
		}
	}
	cfg.EnvFiles = append(cfg.EnvFiles, c.Rewrite...)

	c.logger.Debug("configuration loaded", "path", path, "pattern", cfg.Pattern, "release", cfg.ReleasePattern)
	return cfg, nil
}

func (c *CLI) showVersion() error {
	versionInfo := map[string]string{
		"version": Version,
		"name":    "gitver",
	}

	if c.Output == "json" {
		return json.NewEncoder(c.Out).Encode(versionInfo)
	}

	fmt.Fprintf(c.Out, "gitver version %s\n", Version)
	return nil
}

func (c *CLI) convertVersion(cfg *gitver.Config) error {
	version, err := gitver.ParseStrict(strings.TrimPrefix(c.Commitish, "v"))
	if err != nil {
		return fmt.Errorf("converting version: %w", err)
	}

	if cfg.Nightly {
		version = version.IncPatch()
	}

	return c.write(report{
		Version: version.Format(cfg.Pattern),
		Release: version.Format(cfg.ReleasePattern),
		Semver:  version.Semver().String(),
	}, nil)
}

func (c *CLI) resolveVersion(repoPath string, cfg *gitver.Config) error {
	commitish := "HEAD"
	if c.Commitish != "" {
		commitish = c.Commitish
	}

	repo, err := gitver.OpenRepository(repoPath)
	if err != nil {
		if errors.Is(err, gitver.ErrNotFound) && !c.Strict {
			c.logger.Warn("no git repository, skipping version", "path", repoPath, "error", err)
			return nil
		}
		return err
	}
	repo.SetLogger(c.logger)

	// An unknown commitish is a usage error even without --strict.
	resolved, found, err := gitver.Resolve(gitver.Options{
		Repository: repo,
		Commitish:  plumbing.Revision(commitish),
		TagPattern: cfg.TagPattern,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("resolving version: %w", err)
	}
	if !found {
		if c.Strict {
			return fmt.Errorf("no version tag found in %q", repoPath)
		}
		c.logger.Warn("no version tag found", "path", repoPath)
		return nil
	}

	c.logger.Info("version resolved",
		"tag", resolved.TagName,
		"distance", resolved.Distance,
		"hash", resolved.CommitHash,
		"branch", resolved.BranchName)

	for _, path := range cfg.EnvFiles {
		changed, err := gitver.RewriteEnvFile(path, resolved, cfg)
		if err != nil {
			return fmt.Errorf("rewriting %s: %w", path, err)
		}
		c.logger.Info("environment file updated", "path", path, "lines", changed)
	}

	props := gitver.Publish(resolved, cfg)
	version := resolved.Version
	if cfg.Nightly {
		version = version.IncPatch()
	}

	return c.write(report{
		Tag:         resolved.TagName,
		Hash:        resolved.CommitHash,
		Branch:      resolved.BranchName,
		Date:        resolved.ISOTime(),
		Distance:    resolved.Distance,
		BuildNumber: resolved.BuildOrdinal,
		Version:     props[gitver.PropVersion],
		Release:     props[gitver.PropRelease],
		Semver:      version.Semver().String(),
	}, props)
}

func (c *CLI) write(r report, props gitver.Properties) error {
	if props == nil {
		props = gitver.Properties{
			gitver.PropVersion: r.Version,
			gitver.PropRelease: r.Release,
		}
	}

	switch c.Output {
	case "json":
		return json.NewEncoder(c.Out).Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(c.Out)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "properties":
		for _, k := range props.Keys() {
			fmt.Fprintf(c.Out, "%s=%s\n", k, props[k])
		}
	case "env":
		for _, k := range props.Keys() {
			fmt.Fprintf(c.Out, "%s=%s\n", gitver.EnvName(k), props[k])
		}
	case "semver":
		fmt.Fprintln(c.Out, r.Semver)
	default:
		fmt.Fprintln(c.Out, r.Version)
	}
	return nil
}

// isVersionString checks if the input looks like a version string rather than a git reference
func isVersionString(input string) bool {
	_, err := gitver.ParseStrict(strings.TrimPrefix(input, "v"))
	return err == nil
}
