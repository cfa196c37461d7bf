package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models roadmap.yml.
type Config struct {
	Projects struct {
		MaxPerUser int `yaml:"max_per_user"`
		TitleMin   int `yaml:"title_min"`
		TitleMax   int `yaml:"title_max"`
	} `yaml:"projects"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Storage struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with roadmap init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Projects.MaxPerUser < 1 {
		return fmt.Errorf("config.projects.max_per_user must be at least 1")
	}
	if c.Projects.TitleMin < 1 {
		return fmt.Errorf("config.projects.title_min must be at least 1")
	}
	if c.Projects.TitleMax < c.Projects.TitleMin {
		return fmt.Errorf("config.projects.title_max must not be below title_min")
	}
	switch c.Storage.Driver {
	case "", "sqlite":
	case "postgres":
		// DSN may also come from ROADMAP_DATABASE_URL.
	default:
		return fmt.Errorf("config.storage.driver must be 'sqlite' or 'postgres'")
	}
	if c.Server.BasePath != "" && c.Server.BasePath[0] != '/' {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "roadmap.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from the document keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `projects:
  max_per_user: 5
  title_min: 3
  title_max: 24

server:
  addr: 127.0.0.1:8080
  base_path: /v0

storage:
  driver: sqlite
`
