package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"gigline/internal/domain"
)

// Config models gigline.yml.
type Config struct {
	Marketplace struct {
		Name string `yaml:"name"`
	} `yaml:"marketplace"`
	Categories struct {
		Catalog map[string]struct {
			Description string `yaml:"description"`
		} `yaml:"catalog"`
	} `yaml:"categories"`
	Defaults struct {
		// CreateStatus is the job status applied when the client sends no
		// hint. Restricted to draft or open.
		CreateStatus string `yaml:"create_status"`
	} `yaml:"defaults"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with gig config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Marketplace.Name == "" {
		return fmt.Errorf("config.marketplace.name is required")
	}
	for name := range c.Categories.Catalog {
		if name == "" {
			return fmt.Errorf("config.categories.catalog contains an empty category name")
		}
	}
	if cs := c.Defaults.CreateStatus; cs != "" {
		if cs != domain.JobStatusDraft && cs != domain.JobStatusOpen {
			return fmt.Errorf("config.defaults.create_status must be draft or open, got %s", cs)
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// CategoryAllowed reports whether the category is acceptable for a job. An
// empty catalog allows any category.
func (c *Config) CategoryAllowed(category string) bool {
	if category == "" {
		return true
	}
	if len(c.Categories.Catalog) == 0 {
		return true
	}
	_, ok := c.Categories.Catalog[category]
	return ok
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "gigline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(name string) string {
	return fmt.Sprintf(defaultTemplate, name)
}

// Default returns the default Config struct for a marketplace.
func Default(name string) *Config {
	var cfg Config
	cfg.Marketplace.Name = name
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, name))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `marketplace:
  name: %s

categories:
  catalog:
    Web Development:
      description: "Websites, web apps and APIs"
    Mobile Development:
      description: "iOS, Android and cross-platform apps"
    Design:
      description: "UI/UX, branding and illustration"
    Writing:
      description: "Copywriting, documentation and translation"
    Marketing:
      description: "SEO, ads and growth"
    Data:
      description: "Analytics, pipelines and machine learning"

defaults:
  create_status: draft
`
