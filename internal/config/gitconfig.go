package config

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// GitConfigSection is the git config section holding lazystatus keys, as in
// `git config lazystatus.backend cli`.
const GitConfigSection = "lazystatus"

// gitConfigMock allows tests to mock git config output.
var gitConfigMock func(args []string, repoPath string) (string, error)

// runGitConfig executes git config command and returns raw output.
func runGitConfig(args []string, repoPath string) (string, error) {
	if gitConfigMock != nil {
		return gitConfigMock(args, repoPath)
	}

	cmd := exec.Command("git", args...)
	if repoPath != "" {
		cmd.Dir = repoPath
	}

	output, err := cmd.Output()
	if err != nil {
		// git config returns exit code 1 when no key matched
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", err
	}
	return string(output), nil
}

// configKey maps a git config variable name to the YAML key. Git forbids
// underscores in variable names, so overlay-depth style names are accepted.
func configKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "-", "_")
}

// parseGitConfigOutput parses git config output into multi-value map.
// Input format: "lazystatus.backend cli\nlazystatus.threading status\n"
func parseGitConfigOutput(output string) map[string][]string {
	configMap := make(map[string][]string)
	if output == "" {
		return configMap
	}

	for line := range strings.SplitSeq(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}

		// values may contain spaces
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}

		key := configKey(strings.TrimPrefix(parts[0], GitConfigSection+"."))
		configMap[key] = append(configMap[key], parts[1])
	}

	return configMap
}

// convertGitConfigToParseConfig converts to format expected by parseConfig().
func convertGitConfigToParseConfig(gitCfg map[string][]string) map[string]any {
	result := make(map[string]any)

	for key, values := range gitCfg {
		if len(values) == 0 {
			continue
		}

		// parseConfig expects []any for lists such as build_markers
		if len(values) > 1 {
			anySlice := make([]any, len(values))
			for i, v := range values {
				anySlice[i] = v
			}
			result[key] = anySlice
			continue
		}

		result[key] = values[0]
	}

	return result
}

// loadGitConfig reads git config values and returns map for parseConfig.
func loadGitConfig(globalOnly bool, repoPath string) (map[string]any, error) {
	args := []string{"config", "--get-regexp", "^" + GitConfigSection + "\\."}

	if globalOnly {
		args = append(args, "--global")
	} else {
		args = append(args, "--local")
	}

	output, err := runGitConfig(args, repoPath)
	if err != nil {
		return nil, err
	}

	return convertGitConfigToParseConfig(parseGitConfigOutput(output)), nil
}

// parseCLIConfigOverrides parses --config key=value pairs. The
// "lazystatus." prefix is optional. Repeated keys become lists.
func parseCLIConfigOverrides(overrides []string) (map[string]any, error) {
	result := make(map[string]any)

	for _, override := range overrides {
		fullKey, value, ok := strings.Cut(override, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config override: %q, expected format: key=value (note: use = not space)", override)
		}

		key := configKey(strings.TrimPrefix(strings.TrimSpace(fullKey), GitConfigSection+"."))
		if key == "" {
			return nil, fmt.Errorf("empty config key in override: %q", override)
		}

		switch existing := result[key].(type) {
		case nil:
			result[key] = value
		case string:
			result[key] = []any{existing, value}
		case []any:
			result[key] = append(existing, value)
		}
	}

	return result, nil
}
