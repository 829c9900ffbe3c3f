package config

// GetDefaultConfig returns the built-in defaults: kubectl from PATH, a 10
// second readiness timeout, and no declared forwards.
func GetDefaultConfig() Config {
	return Config{
		Settings: Settings{
			KubectlPath:         "kubectl",
			ReadyTimeoutSeconds: 10,
		},
		Forwards: []ForwardDefinition{},
	}
}
