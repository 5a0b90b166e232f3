package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitConfigOutput(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected map[string][]string
	}{
		{
			name: "single values",
			output: `lazystatus.backend cli
lazystatus.show-icons true
lazystatus.theme dracula`,
			expected: map[string][]string{
				"backend":    {"cli"},
				"show_icons": {"true"},
				"theme":      {"dracula"},
			},
		},
		{
			name: "multi-value keys",
			output: `lazystatus.build-markers build.lock
lazystatus.build-markers out/*.tmp
lazystatus.backend gogit`,
			expected: map[string][]string{
				"build_markers": {"build.lock", "out/*.tmp"},
				"backend":       {"gogit"},
			},
		},
		{
			name:   "values with spaces",
			output: "lazystatus.debug-log /tmp/my logs/status.log",
			expected: map[string][]string{
				"debug_log": {"/tmp/my logs/status.log"},
			},
		},
		{
			name:     "empty output",
			output:   "",
			expected: map[string][]string{},
		},
		{
			name:   "malformed line skipped",
			output: "lazystatus.backend\nlazystatus.theme nord",
			expected: map[string][]string{
				"theme": {"nord"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseGitConfigOutput(tt.output))
		})
	}
}

func TestConvertGitConfigToParseConfig(t *testing.T) {
	result := convertGitConfigToParseConfig(map[string][]string{
		"backend":       {"cli"},
		"build_markers": {"a.lock", "b.lock"},
		"empty":         {},
	})

	assert.Equal(t, map[string]any{
		"backend":       "cli",
		"build_markers": []any{"a.lock", "b.lock"},
	}, result)
}

func TestParseCLIConfigOverrides(t *testing.T) {
	tests := []struct {
		name      string
		overrides []string
		expected  map[string]any
		wantErr   string
	}{
		{
			name:      "plain keys",
			overrides: []string{"backend=cli", "show_icons=false"},
			expected:  map[string]any{"backend": "cli", "show_icons": "false"},
		},
		{
			name:      "prefixed and dashed keys",
			overrides: []string{"lazystatus.detect-renames=none"},
			expected:  map[string]any{"detect_renames": "none"},
		},
		{
			name:      "repeated keys become lists",
			overrides: []string{"threading=stage", "threading=status", "threading=tree"},
			expected:  map[string]any{"threading": []any{"stage", "status", "tree"}},
		},
		{
			name:      "value containing equals",
			overrides: []string{"debug_log=/tmp/a=b.log"},
			expected:  map[string]any{"debug_log": "/tmp/a=b.log"},
		},
		{
			name:      "missing equals",
			overrides: []string{"backend cli"},
			wantErr:   "invalid config override",
		},
		{
			name:      "empty key",
			overrides: []string{"lazystatus.=x"},
			wantErr:   "empty config key",
		},
		{
			name:      "no overrides",
			overrides: nil,
			expected:  map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseCLIConfigOverrides(tt.overrides)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadGitConfigErrorHandling(t *testing.T) {
	defer func() { gitConfigMock = nil }()

	gitConfigMock = func(args []string, repoPath string) (string, error) {
		return "", fmt.Errorf("git command failed")
	}

	result, err := loadGitConfig(true, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git command failed")
	assert.Nil(t, result)
}

func TestLoadGitConfig(t *testing.T) {
	defer func() { gitConfigMock = nil }()

	tests := []struct {
		name       string
		globalOnly bool
		repoPath   string
		mockOutput string
		expected   map[string]any
	}{
		{
			name:       "global config",
			globalOnly: true,
			mockOutput: "lazystatus.backend cli\nlazystatus.refresh-interval-ms 250\n",
			expected: map[string]any{
				"backend":             "cli",
				"refresh_interval_ms": "250",
			},
		},
		{
			name:       "local config",
			repoPath:   "/repo",
			mockOutput: "lazystatus.theme nord\n",
			expected:   map[string]any{"theme": "nord"},
		},
		{
			name:       "empty output",
			globalOnly: true,
			expected:   map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gitConfigMock = func(args []string, repoPath string) (string, error) {
				if tt.globalOnly {
					assert.Contains(t, args, "--global")
				} else {
					assert.Contains(t, args, "--local")
				}
				assert.Contains(t, args, "^lazystatus\\.")
				assert.Equal(t, tt.repoPath, repoPath)
				return tt.mockOutput, nil
			}

			result, err := loadGitConfig(tt.globalOnly, tt.repoPath)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)

			cfg := parseConfig(result)
			assert.NotNil(t, cfg)
		})
	}
}
