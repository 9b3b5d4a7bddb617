// Package config loads the YAML-based configuration for the netsync-server
// and netsync-client-demo binaries. It is grounded on this repository's
// other example's yaml.v3-backed nested config struct convention; netsync's
// own structs are far smaller since the domain they describe is.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the top-level shape of netsync-server's config file.
type ServerConfig struct {
	// ListenAddr is the TCP address to accept client connections on.
	ListenAddr string `yaml:"listen_addr"`
	// Debug enables ShutDownServer; never set this in production.
	Debug bool `yaml:"debug"`
	// LogLevel is one of debug, info, warn, error, crit (log15 level names);
	// any other value falls back to info.
	LogLevel string `yaml:"log_level"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: "127.0.0.1:7777",
		Debug:      false,
		LogLevel:   "info",
	}
}

// LoadServerConfig reads and parses path, filling in defaults for any field
// absent from the file. A missing file is not an error -- the defaults
// alone are a valid configuration.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := defaultServerConfig()
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ClientConfig is the top-level shape of netsync-client-demo's config file.
type ClientConfig struct {
	// ServerAddr is the netsync-server TCP address to dial.
	ServerAddr string `yaml:"server_addr"`
	// RomName and RomFileMD5 identify the console to create or join.
	RomName    string `yaml:"rom_name"`
	RomFileMD5 string `yaml:"rom_file_md5"`
	// DelayFrames is this client's requested input delay.
	DelayFrames int32 `yaml:"delay_frames"`
	// LogLevel is one of trace, debug, info, warn, error (see package log).
	LogLevel string `yaml:"log_level"`
	// DialRetryMinMillis/DialRetryMaxMillis bound the exponential backoff
	// used while the initial connection to ServerAddr is unavailable.
	DialRetryMinMillis int `yaml:"dial_retry_min_millis"`
	DialRetryMaxMillis int `yaml:"dial_retry_max_millis"`
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerAddr:         "127.0.0.1:7777",
		DelayFrames:        2,
		LogLevel:           "info",
		DialRetryMinMillis: 500,
		DialRetryMaxMillis: 30000,
	}
}

// LoadClientConfig reads and parses path, filling in defaults for any field
// absent from the file.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := defaultClientConfig()
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
