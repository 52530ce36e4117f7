// Package sources provides the ingester's source-feed configuration.
//
// Feeds are listed in an optional .chronicler.yaml file; when no file is
// present the built-in archive feeds are used. This graceful degradation
// keeps the CLI zero-config for the common case.
package sources

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chronicler-io/chronicler/internal/config"
)

// Config holds the source feed list loaded from .chronicler.yaml.
type Config struct {
	// Sources lists the feed URLs to ingest, in order.
	Sources []string `yaml:"sources"`
}

// DefaultConfigPath is the default location for the sources file. Hidden
// file format following common tool conventions (.eslintrc, .prettierrc).
const DefaultConfigPath = ".chronicler.yaml"

// ConfigPathEnvVar is the environment variable for a custom config path.
const ConfigPathEnvVar = "CHRONICLER_CONFIG_PATH"

// DefaultSources are the archive meeting-summary feeds ingested when no
// sources file or --source flag is given.
var DefaultSources = []string{
	"https://raw.githubusercontent.com/SingularityNET-Archive/SingularityNET-Archive/refs/heads/main/Data/Snet-Ambassador-Program/Meeting-Summaries/2025/meeting-summaries-array.json",
	"https://raw.githubusercontent.com/SingularityNET-Archive/SingularityNET-Archive/refs/heads/main/Data/Snet-Ambassador-Program/Meeting-Summaries/2024/meeting-summaries-array.json",
	"https://raw.githubusercontent.com/SingularityNET-Archive/SingularityNET-Archive/refs/heads/main/Data/Snet-Ambassador-Program/Meeting-Summaries/2023/meeting-summaries-array.json",
	"https://raw.githubusercontent.com/SingularityNET-Archive/SingularityNET-Archive/refs/heads/main/Data/Snet-Ambassador-Program/Meeting-Summaries/2022/meeting-summaries-array.json",
}

// LoadConfig loads the source list from a YAML file at the given path.
//
// Behavior:
//   - Returns the built-in defaults (not an error) if the file doesn't exist
//   - Returns defaults + logs a warning if the YAML is invalid
//   - Returns the configured list on success
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Sources: DefaultSources}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Sources file not found, using built-in defaults",
				slog.String("path", path))

			return cfg, nil
		}

		slog.Warn("Failed to read sources file, using built-in defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(data) == 0 {
		return cfg, nil
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		slog.Warn("Failed to parse sources file, using built-in defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(parsed.Sources) > 0 {
		cfg.Sources = parsed.Sources
	}

	return cfg, nil
}

// LoadConfigFromEnv loads the sources file from CHRONICLER_CONFIG_PATH,
// falling back to ".chronicler.yaml" in the current directory.
func LoadConfigFromEnv() (*Config, error) {
	path := config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath)

	return LoadConfig(path)
}
