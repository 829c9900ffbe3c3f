package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// Helper function to create a temporary config file
func createTempConfigFile(t *testing.T, dir string, filename string, content Config) string {
	t.Helper()
	tempFilePath := filepath.Join(dir, filename)
	data, err := yaml.Marshal(&content)
	assert.NoError(t, err)
	err = os.WriteFile(tempFilePath, data, 0644)
	assert.NoError(t, err)
	return tempFilePath
}

// pointPathsAt makes both config layers resolve inside dir so tests never see
// the developer's real config files.
func pointPathsAt(t *testing.T, dir string) {
	t.Helper()
	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	t.Cleanup(func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
	})
	getUserConfigPath = func() (string, error) {
		return filepath.Join(dir, userConfigDir, configFileName), nil
	}
	getProjectConfigPath = func() (string, error) {
		return filepath.Join(dir, projectConfigDir, configFileName), nil
	}
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	pointPathsAt(t, t.TempDir())

	loadedConfig, err := LoadConfig()
	assert.NoError(t, err)

	defaults := GetDefaultConfig()
	assert.Equal(t, defaults.Settings, loadedConfig.Settings)
	assert.Empty(t, loadedConfig.Forwards)
}

func TestLoadConfig_UserOverride(t *testing.T) {
	tempDir := t.TempDir()
	pointPathsAt(t, tempDir)

	userConfDir := filepath.Join(tempDir, userConfigDir)
	err := os.MkdirAll(userConfDir, 0755)
	assert.NoError(t, err)

	userOverride := Config{
		Settings: Settings{
			KubectlPath:         "/opt/bin/kubectl",
			ReadyTimeoutSeconds: 30,
		},
		Forwards: []ForwardDefinition{
			{Name: "staging-api", Namespace: "backend", Pod: "api-0", RemotePort: 8080},
		},
	}
	createTempConfigFile(t, userConfDir, configFileName, userOverride)

	loadedConfig, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "/opt/bin/kubectl", loadedConfig.Settings.KubectlPath)
	assert.Equal(t, 30, loadedConfig.Settings.ReadyTimeoutSeconds)
	require.Len(t, loadedConfig.Forwards, 1)
	assert.Equal(t, "staging-api", loadedConfig.Forwards[0].Name)
}

func TestLoadConfig_ProjectOverridesUser(t *testing.T) {
	tempDir := t.TempDir()
	pointPathsAt(t, tempDir)

	userConfDir := filepath.Join(tempDir, userConfigDir)
	require.NoError(t, os.MkdirAll(userConfDir, 0755))
	projectConfDir := filepath.Join(tempDir, projectConfigDir)
	require.NoError(t, os.MkdirAll(projectConfDir, 0755))

	createTempConfigFile(t, userConfDir, configFileName, Config{
		Settings: Settings{ReadyTimeoutSeconds: 20},
		Forwards: []ForwardDefinition{
			{Name: "api", Namespace: "backend", Pod: "api-0", RemotePort: 8080},
			{Name: "db", Namespace: "backend", Pod: "postgres-0", RemotePort: 5432},
		},
	})
	createTempConfigFile(t, projectConfDir, configFileName, Config{
		Settings: Settings{ReadyTimeoutSeconds: 5, Debug: true},
		Forwards: []ForwardDefinition{
			// Same name as the user entry: replaces it in place.
			{Name: "api", Namespace: "backend", Pod: "api-1", RemotePort: 9090},
			{Name: "cache", Namespace: "backend", Pod: "redis-0", RemotePort: 6379},
		},
	})

	loadedConfig, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, 5, loadedConfig.Settings.ReadyTimeoutSeconds)
	assert.True(t, loadedConfig.Settings.Debug)
	// kubectlPath untouched by either layer, so the default survives.
	assert.Equal(t, "kubectl", loadedConfig.Settings.KubectlPath)

	require.Len(t, loadedConfig.Forwards, 3)
	assert.Equal(t, []string{"api", "db", "cache"}, []string{
		loadedConfig.Forwards[0].Name,
		loadedConfig.Forwards[1].Name,
		loadedConfig.Forwards[2].Name,
	}, "base order preserved, new entries appended")
	assert.Equal(t, "api-1", loadedConfig.Forwards[0].Pod)
	assert.Equal(t, 9090, loadedConfig.Forwards[0].RemotePort)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	tempDir := t.TempDir()
	pointPathsAt(t, tempDir)

	userConfDir := filepath.Join(tempDir, userConfigDir)
	require.NoError(t, os.MkdirAll(userConfDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(userConfDir, configFileName),
		[]byte("settings: [not a mapping"),
		0644,
	))

	_, err := LoadConfig()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "error loading user config")
}

func TestSettingsReadyTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, Settings{ReadyTimeoutSeconds: 30}.ReadyTimeout())
	assert.Zero(t, Settings{}.ReadyTimeout())
	assert.Zero(t, Settings{ReadyTimeoutSeconds: -1}.ReadyTimeout())
}

func TestForwardDefinitionValidate(t *testing.T) {
	valid := ForwardDefinition{Name: "api", Namespace: "backend", Pod: "api-0", RemotePort: 8080}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		def  ForwardDefinition
	}{
		{"missing name", ForwardDefinition{Namespace: "backend", Pod: "api-0", RemotePort: 8080}},
		{"missing pod", ForwardDefinition{Name: "api", Namespace: "backend", RemotePort: 8080}},
		{"missing namespace", ForwardDefinition{Name: "api", Pod: "api-0", RemotePort: 8080}},
		{"zero remote port", ForwardDefinition{Name: "api", Namespace: "backend", Pod: "api-0"}},
		{"remote port too large", ForwardDefinition{Name: "api", Namespace: "backend", Pod: "api-0", RemotePort: 70000}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.def.Validate())
		})
	}
}
