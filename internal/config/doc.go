// Package config provides configuration management for fwdctl.
//
// This package implements a layered configuration system that allows users
// to customize fwdctl's behavior through YAML files. Configuration is loaded
// from multiple sources and merged in a specific order, with later sources
// overriding earlier ones.
//
// # Configuration Layers
//
// Configuration is loaded and merged in the following order:
//
//  1. Default Configuration (embedded in binary)
//     - Provides sensible defaults for all settings
//     - Ensures fwdctl works out-of-the-box
//
//  2. User Configuration (~/.config/fwdctl/config.yaml)
//     - User-specific settings that apply everywhere
//     - Useful for personal preferences and common overrides
//
//  3. Project Configuration (./.fwdctl/config.yaml)
//     - Project-specific settings in the current directory
//     - Allows teams to share forward definitions via version control
//
// # Configuration Structure
//
// The configuration file uses YAML format with the following sections:
//
//	settings:
//	  kubectlPath: "kubectl"
//	  bindAddress: "127.0.0.1"
//	  readyTimeoutSeconds: 10
//	  debug: false
//
//	forwards:
//	  - name: "staging-api"
//	    context: "staging"
//	    namespace: "backend"
//	    pod: "api-7c9f8d6b5-x2j4k"
//	    remotePort: 8080
//	    localPort: 18080
//
// # Forward Definitions
//
// Declared forwards never start on their own: the dashboard offers them in a
// picker, and the forward command starts them when invoked with no pod
// argument or with --name. Entries are merged by name across layers, so a
// project config can override a user-level entry by redeclaring it.
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, fwd := range cfg.Forwards {
//	    fmt.Printf("%s: %s/%s port %d\n", fwd.Name, fwd.Namespace, fwd.Pod, fwd.RemotePort)
//	}
package config
