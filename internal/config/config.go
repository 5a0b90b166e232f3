// Package config loads application and repository configuration from YAML.
package config

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chmouel/lazystatus/internal/models"
	"github.com/chmouel/lazystatus/internal/theme"
	"gopkg.in/yaml.v3"
)

// RepoConfigFile is the per-repository override file name.
const RepoConfigFile = ".lazystatus.yaml"

// Backend names accepted for the backend key.
const (
	BackendGoGit = "gogit"
	BackendCLI   = "cli"
)

// AppConfig defines the lazystatus configuration options.
type AppConfig struct {
	RepoPath         string
	Backend          string   // "gogit" or "cli"
	Threading        []string // Work kinds run in the background: stage, unstage, status, tree, list
	OverlayDepth     int      // Depth below which tree nodes always show their status
	ShowEmptyFolders bool
	DetectRenames    models.RenameDetection
	TrackSystemFiles bool // Watch the working tree for changes (default: true)
	RefreshInterval  time.Duration
	DebugLog         string
	LogLevel         string
	MetricsAddr      string
	BuildMarkers     []string // Globs whose presence means a build is running
	ShowIcons        bool     // Render Nerd Font icons in the tree (default: true)
	Theme            string   // Theme name: see AvailableThemes in internal/theme
}

// DefaultConfig returns the default configuration values.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Backend:          BackendGoGit,
		Threading:        []string{"status", "tree", "list"},
		OverlayDepth:     2,
		ShowEmptyFolders: false,
		DetectRenames:    models.RenameAll,
		TrackSystemFiles: true,
		RefreshInterval:  100 * time.Millisecond,
		LogLevel:         "info",
		BuildMarkers:     []string{},
		ShowIcons:        true,
	}
}

// normalizeList converts a string or a YAML sequence into a list of names.
// Strings are split on commas and whitespace.
func normalizeList(value any) []string {
	if value == nil {
		return []string{}
	}

	split := func(text string) []string {
		return strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
	}

	switch v := value.(type) {
	case string:
		return split(strings.TrimSpace(v))
	case []any:
		names := []string{}
		for _, item := range v {
			if item == nil {
				continue
			}
			names = append(names, split(fmt.Sprintf("%v", item))...)
		}
		return names
	}
	return []string{}
}

func coerceBool(value any, defaultVal bool) bool {
	if value == nil {
		return defaultVal
	}

	switch v := value.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case string:
		text := strings.ToLower(strings.TrimSpace(v))
		switch text {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultVal
}

func coerceInt(value any, defaultVal int) int {
	if value == nil {
		return defaultVal
	}

	switch v := value.(type) {
	case bool:
		return defaultVal
	case int:
		return v
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return defaultVal
		}
		if i, err := strconv.Atoi(text); err == nil {
			return i
		}
	}
	return defaultVal
}

func coerceString(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func parseConfig(data map[string]any) *AppConfig {
	cfg := DefaultConfig()

	if repoPath, ok := coerceString(data["repo_path"]); ok {
		cfg.RepoPath = repoPath
	}
	if backend, ok := coerceString(data["backend"]); ok {
		backend = strings.ToLower(backend)
		if backend == BackendGoGit || backend == BackendCLI {
			cfg.Backend = backend
		}
	}
	if _, ok := data["threading"]; ok {
		cfg.Threading = normalizeList(data["threading"])
	}

	cfg.OverlayDepth = coerceInt(data["project_status_overlay_depth"], cfg.OverlayDepth)
	if cfg.OverlayDepth < 0 {
		cfg.OverlayDepth = 0
	}
	cfg.ShowEmptyFolders = coerceBool(data["show_empty_folders"], cfg.ShowEmptyFolders)
	if renames, ok := coerceString(data["detect_renames"]); ok {
		if mode, valid := models.ParseRenameDetection(renames); valid {
			cfg.DetectRenames = mode
		}
	}
	cfg.TrackSystemFiles = coerceBool(data["track_system_files"], cfg.TrackSystemFiles)

	if ms := coerceInt(data["refresh_interval_ms"], 0); ms > 0 {
		cfg.RefreshInterval = time.Duration(ms) * time.Millisecond
	}

	if debugLog, ok := coerceString(data["debug_log"]); ok {
		cfg.DebugLog = debugLog
	}
	if level, ok := coerceString(data["log_level"]); ok {
		cfg.LogLevel = strings.ToLower(level)
	}
	if addr, ok := coerceString(data["metrics_addr"]); ok {
		cfg.MetricsAddr = addr
	}
	if _, ok := data["build_markers"]; ok {
		cfg.BuildMarkers = normalizeList(data["build_markers"])
	}

	cfg.ShowIcons = coerceBool(data["show_icons"], cfg.ShowIcons)
	if themeName, ok := data["theme"].(string); ok {
		if normalized := NormalizeThemeName(themeName); normalized != "" {
			cfg.Theme = normalized
		}
	}

	return cfg
}

func readYAML(fsys fs.FS, name string) (map[string]any, error) {
	dataBytes, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	var yamlData map[string]any
	if err := yaml.Unmarshal(dataBytes, &yamlData); err != nil {
		return nil, err
	}
	if yamlData == nil {
		yamlData = map[string]any{}
	}
	return yamlData, nil
}

// LoadRepoConfig reads the raw overrides from .lazystatus.yaml in repoPath.
// A missing file yields a nil map and no error.
func LoadRepoConfig(repoPath string) (map[string]any, string, error) {
	if repoPath == "" {
		return nil, "", fmt.Errorf("empty repo path")
	}
	cleanRepoPath := filepath.Clean(repoPath)
	cfgPath := filepath.Join(cleanRepoPath, RepoConfigFile)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return nil, cfgPath, nil
	}

	if !isPathWithin(cleanRepoPath, cfgPath) {
		return nil, "", fmt.Errorf("invalid repo path %q", repoPath)
	}

	data, err := readYAML(os.DirFS(cleanRepoPath), RepoConfigFile)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("failed to read %s: %w", RepoConfigFile, err)
	}
	return data, cfgPath, nil
}

func getConfigDir() string {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// loadConfigData returns the raw YAML map of the global config file, or an
// empty map when none exists.
func loadConfigData(configPath string) (map[string]any, error) {
	configBase := filepath.Clean(filepath.Join(getConfigDir(), "lazystatus"))

	var paths []string
	if configPath != "" {
		expanded, err := ExpandPath(configPath)
		if err != nil {
			return nil, err
		}
		absPath, err := filepath.Abs(expanded)
		if err != nil {
			return nil, err
		}
		if !isPathWithin(configBase, absPath) {
			return nil, fmt.Errorf("config path must reside inside %s", configBase)
		}
		paths = []string{absPath}
	} else {
		paths = []string{
			filepath.Join(configBase, "config.yaml"),
			filepath.Join(configBase, "config.yml"),
		}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := readYAML(os.DirFS(filepath.Dir(path)), filepath.Base(path))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return data, nil
	}
	return map[string]any{}, nil
}

// LoadConfig reads the application configuration from a YAML file.
func LoadConfig(configPath string) (*AppConfig, error) {
	data, err := loadConfigData(configPath)
	if err != nil {
		return DefaultConfig(), err
	}
	cfg := parseConfig(data)
	applyThemeDefault(cfg)
	return cfg, nil
}

// LoadOptions selects the configuration sources for Load.
type LoadOptions struct {
	ConfigFile string
	// RepoPath is used for the per-repository file and local git config
	// when the config files do not name one.
	RepoPath  string
	Overrides []string
	// SkipGitConfig disables the lazystatus.* git config layers.
	SkipGitConfig bool
}

// Load merges every configuration layer, later ones winning: global YAML,
// global git config, per-repository YAML, local git config, then overrides.
func Load(opts LoadOptions) (*AppConfig, error) {
	merged, err := loadConfigData(opts.ConfigFile)
	if err != nil {
		return DefaultConfig(), err
	}

	overrides, err := parseCLIConfigOverrides(opts.Overrides)
	if err != nil {
		return DefaultConfig(), err
	}

	if !opts.SkipGitConfig {
		if global, err := loadGitConfig(true, ""); err == nil {
			maps.Copy(merged, global)
		}
	}

	repoPath := opts.RepoPath
	if repoPath == "" {
		if p, ok := coerceString(overrides["repo_path"]); ok {
			repoPath = p
		} else if p, ok := coerceString(merged["repo_path"]); ok {
			repoPath = p
		}
	}
	if repoPath != "" {
		expanded, err := ExpandPath(repoPath)
		if err != nil {
			return DefaultConfig(), err
		}
		repoPath = expanded
		repoData, _, err := LoadRepoConfig(repoPath)
		if err != nil {
			return DefaultConfig(), err
		}
		maps.Copy(merged, repoData)
		if !opts.SkipGitConfig {
			if local, err := loadGitConfig(false, repoPath); err == nil {
				maps.Copy(merged, local)
			}
		}
	}

	maps.Copy(merged, overrides)
	cfg := parseConfig(merged)
	cfg.RepoPath = repoPath
	applyThemeDefault(cfg)
	return cfg, nil
}

func applyThemeDefault(cfg *AppConfig) {
	if cfg.Theme == "" {
		cfg.Theme = theme.DetectBackground()
	}
}

// ExpandPath expands a leading ~ and environment variables in path.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return os.ExpandEnv(path), nil
}

func isPathWithin(base, target string) bool {
	base = filepath.Clean(base)
	target = filepath.Clean(target)

	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return true
}

// NormalizeThemeName returns the canonical theme name if it is supported.
func NormalizeThemeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, available := range theme.AvailableThemes() {
		if name == available {
			return name
		}
	}
	return ""
}
