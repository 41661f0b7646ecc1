package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	incerrors "github.com/includeguard/includeguard/internal/errors"
	"github.com/includeguard/includeguard/internal/types"
)

// ConfigFileName is the project configuration file searched for in the root.
const ConfigFileName = ".incguard.toml"

type Config struct {
	Project     Project     `toml:"project"`
	Scan        Scan        `toml:"scan"`
	Performance Performance `toml:"performance"`
	Estimator   Estimator   `toml:"estimator"`
	PCH         PCH         `toml:"pch"`
	Watch       Watch       `toml:"watch"`
}

type Project struct {
	Root string `toml:"root"`
	Name string `toml:"name"`
}

type Scan struct {
	// IncludePaths are additional header search directories for quoted
	// include resolution, tried in order after the including file's dir.
	IncludePaths []string `toml:"include_paths"`

	Extensions  []string `toml:"extensions"`   // file extensions to scan
	ExcludeDirs []string `toml:"exclude_dirs"` // directory names, component-equality match
	Exclude     []string `toml:"exclude"`      // doublestar glob patterns

	RespectGitignore bool `toml:"respect_gitignore"`
}

type Performance struct {
	Workers int `toml:"workers"` // 0 = auto-detect (NumCPU)
}

type Estimator struct {
	// UsageThreshold is the confidence above which an include counts as
	// likely used. Calibrated heuristic, not a law.
	UsageThreshold float64 `toml:"usage_threshold"`

	// OpportunityCostFloor is the minimum estimated cost before an unused
	// include is reported as an optimization opportunity.
	OpportunityCostFloor float64 `toml:"opportunity_cost_floor"`

	CacheSize int `toml:"cache_size"` // cost memoization LRU capacity
}

type PCH struct {
	MinUsageCount      int `toml:"min_usage_count"`
	MaxRecommendations int `toml:"max_recommendations"`
}

type Watch struct {
	Enabled    bool `toml:"enabled"`
	DebounceMs int  `toml:"debounce_ms"`
}

// Default returns the built-in configuration rooted at the current directory.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	return &Config{
		Project: Project{
			Root: cwd,
		},
		Scan: Scan{
			IncludePaths:     []string{},
			Extensions:       append([]string(nil), types.DefaultExtensions...),
			ExcludeDirs:      append([]string(nil), types.DefaultExcludeDirs...),
			Exclude:          []string{},
			RespectGitignore: true,
		},
		Performance: Performance{
			Workers: types.DefaultWorkers,
		},
		Estimator: Estimator{
			UsageThreshold:       types.DefaultUsageThreshold,
			OpportunityCostFloor: types.DefaultOpportunityCostFloor,
			CacheSize:            4096,
		},
		PCH: PCH{
			MinUsageCount:      types.DefaultPCHMinUsage,
			MaxRecommendations: types.DefaultPCHMaxResults,
		},
		Watch: Watch{
			Enabled:    false,
			DebounceMs: types.DefaultWatchDebounceMs,
		},
	}
}

// Load reads configuration for the given project root, merging an optional
// .incguard.toml over the defaults. A missing config file is not an error.
func Load(rootDir string) (*Config, error) {
	cfg := Default()
	if rootDir != "" {
		absRoot, err := filepath.Abs(rootDir)
		if err != nil {
			return nil, incerrors.NewConfigError("project.root", rootDir, err)
		}
		cfg.Project.Root = absRoot
	}

	path := filepath.Join(cfg.Project.Root, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize()
			return cfg, nil
		}
		return nil, incerrors.NewConfigError("config_file", path, err)
	}

	var fileCfg Config
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return nil, incerrors.NewConfigError("config_file", path, err)
	}

	merge(cfg, &fileCfg)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays non-zero fields from the file config onto the defaults.
// List fields replace the defaults when present, except Exclude and
// ExcludeDirs which are additive so the built-in exclusions survive.
func merge(base, file *Config) {
	if file.Project.Root != "" {
		base.Project.Root = file.Project.Root
	}
	if file.Project.Name != "" {
		base.Project.Name = file.Project.Name
	}
	if len(file.Scan.IncludePaths) > 0 {
		base.Scan.IncludePaths = file.Scan.IncludePaths
	}
	if len(file.Scan.Extensions) > 0 {
		base.Scan.Extensions = file.Scan.Extensions
	}
	if len(file.Scan.ExcludeDirs) > 0 {
		base.Scan.ExcludeDirs = dedupe(append(base.Scan.ExcludeDirs, file.Scan.ExcludeDirs...))
	}
	if len(file.Scan.Exclude) > 0 {
		base.Scan.Exclude = dedupe(append(base.Scan.Exclude, file.Scan.Exclude...))
	}
	if file.Performance.Workers > 0 {
		base.Performance.Workers = file.Performance.Workers
	}
	if file.Estimator.UsageThreshold > 0 {
		base.Estimator.UsageThreshold = file.Estimator.UsageThreshold
	}
	if file.Estimator.OpportunityCostFloor > 0 {
		base.Estimator.OpportunityCostFloor = file.Estimator.OpportunityCostFloor
	}
	if file.Estimator.CacheSize > 0 {
		base.Estimator.CacheSize = file.Estimator.CacheSize
	}
	if file.PCH.MinUsageCount > 0 {
		base.PCH.MinUsageCount = file.PCH.MinUsageCount
	}
	if file.PCH.MaxRecommendations > 0 {
		base.PCH.MaxRecommendations = file.PCH.MaxRecommendations
	}
	if file.Watch.Enabled {
		base.Watch.Enabled = true
	}
	if file.Watch.DebounceMs > 0 {
		base.Watch.DebounceMs = file.Watch.DebounceMs
	}
}

// normalize fills derived defaults after loading and merging.
func (c *Config) normalize() {
	if c.Performance.Workers <= 0 {
		c.Performance.Workers = runtime.NumCPU()
	}
	for i, p := range c.Scan.IncludePaths {
		if !filepath.IsAbs(p) {
			c.Scan.IncludePaths[i] = filepath.Join(c.Project.Root, p)
		}
	}
}

// Validate checks that tunables are within usable ranges.
func (c *Config) Validate() error {
	if c.Estimator.UsageThreshold < 0 || c.Estimator.UsageThreshold > 1 {
		return incerrors.NewConfigError("estimator.usage_threshold",
			fmt.Sprintf("%v", c.Estimator.UsageThreshold),
			fmt.Errorf("must be between 0 and 1"))
	}
	if c.Estimator.OpportunityCostFloor < 0 {
		return incerrors.NewConfigError("estimator.opportunity_cost_floor",
			fmt.Sprintf("%v", c.Estimator.OpportunityCostFloor),
			fmt.Errorf("must be non-negative"))
	}
	if c.PCH.MinUsageCount < 1 {
		return incerrors.NewConfigError("pch.min_usage_count",
			fmt.Sprintf("%d", c.PCH.MinUsageCount),
			fmt.Errorf("must be at least 1"))
	}
	return nil
}

func dedupe(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
