// Package config provides user configuration management for mowerctl.
//
// Two files live in the OS-specific configuration directory:
//   - settings.yaml: application key, secret, timeouts and endpoints, read
//     with viper and overridable through MOWERCTL_* environment variables
//   - registry.yaml: the mowers seen on the account (name, nickname, last
//     reported state) and CLI preferences, written by the CLI
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/mowerctl or $HOME/.config/mowerctl
//   - macOS: $HOME/.config/mowerctl
//   - Windows: %LOCALAPPDATA%\mowerctl
//
// # Security
//
// The registry NEVER stores the application secret or access tokens.
//
// # Usage Example
//
//	settings, err := config.LoadSettings("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry.UpdateMowerSeen(id, "Front lawn", "450X")
//	registry.SetMowerNickname(id, "front")
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
package config
