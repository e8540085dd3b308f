package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up by the CLI.
const DefaultFile = "transmailifier.yaml"

// Config represents the top-level transmailifier.yaml configuration.
type Config struct {
	Storage  StorageConfig      `yaml:"storage"`
	Mailer   MailerConfig       `yaml:"mailer"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// StorageConfig locates the dedup store.
type StorageConfig struct {
	Path string `yaml:"path"` // relative paths resolve against the config file
}

// MailerConfig holds SMTP settings for notifications.
type MailerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	From     string `yaml:"from"`
}

// ConfigError describes a malformed configuration or profile.
type ConfigError struct {
	Profile string
	Field   string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Profile == "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("profile %q: %s: %s", e.Profile, e.Field, e.Reason)
}

// Load reads and validates a config file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Path != "" && !filepath.IsAbs(cfg.Storage.Path) {
		cfg.Storage.Path = filepath.Join(filepath.Dir(path), cfg.Storage.Path)
	}
	return cfg, nil
}

// Parse decodes and validates config YAML. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Field: "file", Reason: "empty config"}
		}
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the whole config and compiles every profile.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Path) == "" {
		return &ConfigError{Field: "storage.path", Reason: "required"}
	}
	if len(c.Profiles) == 0 {
		return &ConfigError{Field: "profiles", Reason: "at least one profile required"}
	}
	for _, name := range c.ProfileNames() {
		p := c.Profiles[name]
		p.Name = name
		if err := p.Validate(); err != nil {
			return err
		}
		c.Profiles[name] = p
	}
	return nil
}

// ProfileNames returns profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile returns the named profile.
func (c *Config) Profile(name string) (Profile, bool) {
	p, ok := c.Profiles[name]
	return p, ok
}

// ResolveSecrets expands ${VAR} placeholders in the mailer settings using
// lookup. Other config values are never expanded.
func (m *MailerConfig) ResolveSecrets(lookup func(string) (string, bool)) error {
	var missing []string
	expand := func(s string) string {
		return os.Expand(s, func(key string) string {
			v, ok := lookup(key)
			if !ok {
				missing = append(missing, key)
			}
			return v
		})
	}
	m.Host = expand(m.Host)
	m.Username = expand(m.Username)
	m.Password = expand(m.Password)
	m.From = expand(m.From)
	if len(missing) > 0 {
		return &ConfigError{Field: "mailer", Reason: "unset variables: " + strings.Join(missing, ", ")}
	}
	return nil
}

// SMTPPort returns the configured port, or the submission port 587.
func (m MailerConfig) SMTPPort() int {
	if m.Port == 0 {
		return 587
	}
	return m.Port
}

// Addr returns host:port for the SMTP server.
func (m MailerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.SMTPPort())
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a starter Config with one example profile.
func Default() *Config {
	salary := "Income:Salary"
	return &Config{
		Storage: StorageConfig{Path: filepath.Join("var", "storage.sqlite")},
		Mailer: MailerConfig{
			Host:     "smtp.example.com",
			Port:     587,
			Username: "${SMTP_USERNAME}",
			Password: "${SMTP_PASSWORD}",
			From:     "ledger@example.com",
		},
		Profiles: map[string]Profile{
			"example": {
				Config: ProfileConfig{
					Currency:  "EUR",
					Validator: &Validator{Cell: "A1", Value: "Example Bank statement"},
					Matchers: []Matcher{
						{Match: "/SALARY/i", Values: MatcherValues{Category: &salary}},
					},
				},
				Data: DataConfig{
					Columns: map[string]Column{
						FieldTime:    {Column: "A", Format: "d.m.Y"},
						FieldNote:    {Column: "B"},
						FieldExpense: {Column: "C"},
						FieldIncome:  {Column: "D"},
						FieldState:   {Column: "E"},
					},
					Rows: Rows{Start: intPtr(3)},
				},
				Mails: []string{"me@example.com"},
			},
		},
	}
}

func intPtr(n int) *int { return &n }
