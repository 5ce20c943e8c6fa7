package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultServerURL = "http://localhost:8080"
	DefaultFlow      = "verified"
)

type Config struct {
	ServerURL     string
	StateDir      string
	Flow          string
	MaxPhotoBytes int64
	// Path is the file the values were read from, empty when none was found.
	Path string
}

type fileConfig struct {
	ServerURL     string `toml:"server_url"`
	StateDir      string `toml:"state_dir"`
	Flow          string `toml:"flow"`
	MaxPhotoBytes int64  `toml:"max_photo_bytes"`
}

// Load reads the config file (explicit path, or the XDG location) and applies
// MEETFLOW_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ServerURL: DefaultServerURL,
		StateDir:  defaultStateDir(),
		Flow:      DefaultFlow,
	}

	if path == "" {
		path = configFilePath()
	}
	if path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			cfg.Path = path
			if fc.ServerURL != "" {
				cfg.ServerURL = fc.ServerURL
			}
			if fc.StateDir != "" {
				cfg.StateDir = expandTilde(fc.StateDir)
			}
			if fc.Flow != "" {
				cfg.Flow = fc.Flow
			}
			cfg.MaxPhotoBytes = fc.MaxPhotoBytes
		}
	}

	applyEnvOverrides(cfg)
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEETFLOW_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("MEETFLOW_STATE_DIR"); v != "" {
		cfg.StateDir = expandTilde(v)
	}
	if v := os.Getenv("MEETFLOW_FLOW"); v != "" {
		cfg.Flow = v
	}
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "meetflow")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "meetflow")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func defaultStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "meetflow")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "meetflow")
	}
	return filepath.Join(".", ".meetflow")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
