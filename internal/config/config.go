package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxIncludeDepth = 16
	DefaultMaxLength       = 36
	DefaultDataDir         = "robodesc_data"
	DefaultLogLevel        = "info"
	DefaultReportFormat    = "human"
)

type Config struct {
	Strict          bool         `yaml:"strict"`
	CheckAssets     bool         `yaml:"check_assets"`
	ProbeTextures   bool         `yaml:"probe_textures"`
	MaxIncludeDepth int          `yaml:"max_include_depth"`
	MeshDir         string       `yaml:"mesh_dir"`
	TextureDir      string       `yaml:"texture_dir"`
	Workers         int          `yaml:"workers"`
	LogLevel        string       `yaml:"log_level"`
	DataDir         string       `yaml:"data_dir"`
	Report          ReportConfig `yaml:"report"`
}

type ReportConfig struct {
	Format    string `yaml:"format"`
	MaxLength int    `yaml:"max_length"`
	Dir       string `yaml:"dir"`
}

func DefaultConfig() *Config {
	return &Config{
		CheckAssets:     true,
		MaxIncludeDepth: DefaultMaxIncludeDepth,
		LogLevel:        DefaultLogLevel,
		DataDir:         DefaultDataDir,
		Report: ReportConfig{
			Format:    DefaultReportFormat,
			MaxLength: DefaultMaxLength,
		},
	}
}

// Load reads a YAML file over the defaults, so absent keys keep their
// default values.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a YAML file over a copy of base.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := *base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not debug, info, warn or error", c.LogLevel)
	}
	switch c.Report.Format {
	case "human", "json":
	default:
		return fmt.Errorf("report.format %q is not human or json", c.Report.Format)
	}
	if c.MaxIncludeDepth < 0 || c.Workers < 0 || c.Report.MaxLength < 0 {
		return fmt.Errorf("max_include_depth, workers and report.max_length must be non-negative")
	}
	return nil
}
