package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/fwdctl"
	projectConfigDir = ".fwdctl"
	configFileName   = "config.yaml"
)

// LoadConfig loads the fwdctl configuration by layering default, user, and
// project settings.
func LoadConfig() (Config, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. Determine user-specific configuration path
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// Log this error but don't fail; user config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else {
		if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
			userConfig, err := loadConfigFromFile(userConfigPath)
			if err != nil {
				return Config{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
			}
			config = mergeConfigs(config, userConfig)
		}
	}

	// 3. Determine project-specific configuration path
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		// Log this error but don't fail; project config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else {
		if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
			projectConfig, err := loadConfigFromFile(projectConfigPath)
			if err != nil {
				return Config{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
			}
			config = mergeConfigs(config, projectConfig)
		}
	}

	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads a Config from a YAML file.
func loadConfigFromFile(filePath string) (Config, error) {
	var config Config
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config.
func mergeConfigs(base, overlay Config) Config {
	mergedConfig := base

	// Merge Settings (overlay overrides base where set)
	if overlay.Settings.KubectlPath != "" {
		mergedConfig.Settings.KubectlPath = overlay.Settings.KubectlPath
	}
	if overlay.Settings.BindAddress != "" {
		mergedConfig.Settings.BindAddress = overlay.Settings.BindAddress
	}
	if overlay.Settings.ReadyTimeoutSeconds != 0 {
		mergedConfig.Settings.ReadyTimeoutSeconds = overlay.Settings.ReadyTimeoutSeconds
	}
	if overlay.Settings.Debug {
		mergedConfig.Settings.Debug = true
	}

	// Merge Forwards by name: overlay entries replace same-named base
	// entries, new ones append. Base order is preserved so the dashboard
	// lists entries stably across reloads.
	overlayByName := make(map[string]ForwardDefinition, len(overlay.Forwards))
	for _, fwd := range overlay.Forwards {
		overlayByName[fwd.Name] = fwd
	}
	merged := make([]ForwardDefinition, 0, len(base.Forwards)+len(overlay.Forwards))
	seen := make(map[string]bool, len(base.Forwards))
	for _, fwd := range base.Forwards {
		if replacement, ok := overlayByName[fwd.Name]; ok {
			merged = append(merged, replacement)
		} else {
			merged = append(merged, fwd)
		}
		seen[fwd.Name] = true
	}
	for _, fwd := range overlay.Forwards {
		if !seen[fwd.Name] {
			merged = append(merged, fwd)
		}
	}
	mergedConfig.Forwards = merged

	return mergedConfig
}
