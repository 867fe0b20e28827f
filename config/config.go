// Package config handles configuration persistence for taglink.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"taglink/attr"
	"taglink/tag"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Namespace string         `yaml:"namespace"` // Instance namespace for topic/key isolation
	Engine    EngineConfig   `yaml:"engine"`
	Defaults  Defaults       `yaml:"defaults"`
	PollRate  time.Duration  `yaml:"poll_rate"`
	Tags      []TagConfig    `yaml:"tags"`
	Web       WebConfig      `yaml:"web"`
	MQTT      []MQTTConfig   `yaml:"mqtt"`
	Valkey    []ValkeyConfig `yaml:"valkey,omitempty"`
	Kafka     []KafkaConfig  `yaml:"kafka,omitempty"`
	UI        UIConfig       `yaml:"ui,omitempty"`

	// Guards marshalling in Save.
	dataMu sync.Mutex `yaml:"-"`
}

// EngineConfig selects the tag engine.
type EngineConfig struct {
	Kind       string `yaml:"kind"`              // native or sim
	Library    string `yaml:"library,omitempty"` // Explicit path to the native library
	DebugLevel int    `yaml:"debug_level,omitempty"`
}

// Defaults holds the timeouts applied to every tag.
type Defaults struct {
	CreateTimeout time.Duration `yaml:"create_timeout"`
	IOTimeout     time.Duration `yaml:"io_timeout"`
}

// TagConfig describes one tag handle the gateway keeps open.
type TagConfig struct {
	Name       string   `yaml:"name"`
	Attributes string   `yaml:"attributes"`
	Type       tag.Kind `yaml:"type"`
	Count      int      `yaml:"count,omitempty"` // Elements to extract; 0 = whole buffer
	Writable   bool     `yaml:"writable,omitempty"`
	Enabled    bool     `yaml:"enabled"`
}

// UIConfig stores user interface preferences.
type UIConfig struct {
	ASCIIMode bool `yaml:"ascii_mode,omitempty"` // Use ASCII characters for borders
}

// WebConfig holds REST server configuration.
type WebConfig struct {
	Enabled bool      `yaml:"enabled"`
	Host    string    `yaml:"host"`
	Port    int       `yaml:"port"`
	Users   []WebUser `yaml:"users,omitempty"`
}

// Address returns host:port for the listener.
func (w WebConfig) Address() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// WebUser represents an API user. With no users configured the API is open.
type WebUser struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
	Role         string `yaml:"role"`          // "admin" or "viewer"
}

// Web user roles
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// MQTTConfig holds MQTT publisher configuration.
type MQTTConfig struct {
	Name      string `yaml:"name"`
	Enabled   bool   `yaml:"enabled"`
	Broker    string `yaml:"broker"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	ClientID  string `yaml:"client_id"`
	Selector  string `yaml:"selector,omitempty"` // Optional sub-namespace
	UseTLS    bool   `yaml:"use_tls,omitempty"`
	Writeback bool   `yaml:"writeback,omitempty"` // Accept write requests on {ns}/write
}

// ValkeyConfig holds Valkey/Redis publisher configuration.
type ValkeyConfig struct {
	Name           string        `yaml:"name"`
	Enabled        bool          `yaml:"enabled"`
	Address        string        `yaml:"address"` // host:port format
	Password       string        `yaml:"password,omitempty"`
	Database       int           `yaml:"database"`           // Redis DB number (default 0)
	Selector       string        `yaml:"selector,omitempty"` // Optional sub-namespace
	UseTLS         bool          `yaml:"use_tls,omitempty"`
	KeyTTL         time.Duration `yaml:"key_ttl,omitempty"`         // TTL for keys (0 = no expiry)
	PublishChanges bool          `yaml:"publish_changes,omitempty"` // Publish to Pub/Sub on changes
}

// KafkaConfig holds Kafka cluster configuration for YAML persistence.
// The kafka package has its own Config with the runtime types; conversion
// happens in cmd/taglink.
type KafkaConfig struct {
	Name             string        `yaml:"name"`
	Enabled          bool          `yaml:"enabled"`
	Brokers          []string      `yaml:"brokers"`
	UseTLS           bool          `yaml:"use_tls,omitempty"`
	TLSSkipVerify    bool          `yaml:"tls_skip_verify,omitempty"`
	SASLMechanism    string        `yaml:"sasl_mechanism,omitempty"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username         string        `yaml:"username,omitempty"`
	Password         string        `yaml:"password,omitempty"`
	RequiredAcks     int           `yaml:"required_acks,omitempty"` // -1=all, 0=none, 1=leader
	MaxRetries       int           `yaml:"max_retries,omitempty"`
	RetryBackoff     time.Duration `yaml:"retry_backoff,omitempty"`
	AutoCreateTopics bool          `yaml:"auto_create_topics,omitempty"`
	Selector         string        `yaml:"selector,omitempty"`
	Topic            string        `yaml:"topic,omitempty"` // Defaults to {ns}[-{sel}]
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{Kind: "native"},
		Defaults: Defaults{
			CreateTimeout: 5 * time.Second,
			IOTimeout:     5 * time.Second,
		},
		PollRate: time.Second,
		Tags:     []TagConfig{},
		Web: WebConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		MQTT:   []MQTTConfig{},
		Valkey: []ValkeyConfig{},
		Kafka:  []KafkaConfig{},
	}
}

// DefaultPath returns the default configuration file path (~/.taglink/config.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".taglink", "config.yaml")
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Zero values written explicitly fall back to the defaults.
	if cfg.PollRate <= 0 {
		cfg.PollRate = time.Second
	}
	if cfg.Defaults.CreateTimeout <= 0 {
		cfg.Defaults.CreateTimeout = 5 * time.Second
	}
	if cfg.Defaults.IOTimeout <= 0 {
		cfg.Defaults.IOTimeout = 5 * time.Second
	}
	if cfg.Engine.Kind == "" {
		cfg.Engine.Kind = "native"
	}
	return cfg, nil
}

// Save marshals the config and writes it through a temp file in the
// same directory, so readers never see a partial file.
func (c *Config) Save(path string) error {
	c.dataMu.Lock()
	data, err := yaml.Marshal(c)
	c.dataMu.Unlock() // Release lock after marshal, before I/O
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// FindTag returns the tag config with the given name, or nil if not found.
func (c *Config) FindTag(name string) *TagConfig {
	for i := range c.Tags {
		if c.Tags[i].Name == name {
			return &c.Tags[i]
		}
	}
	return nil
}

// AddTag adds a new tag configuration.
func (c *Config) AddTag(t TagConfig) {
	c.Tags = append(c.Tags, t)
}

// RemoveTag removes a tag by name.
func (c *Config) RemoveTag(name string) bool {
	for i, t := range c.Tags {
		if t.Name == name {
			c.Tags = append(c.Tags[:i], c.Tags[i+1:]...)
			return true
		}
	}
	return false
}

// EnabledTags returns the tags that should be polled.
func (c *Config) EnabledTags() []TagConfig {
	var out []TagConfig
	for _, t := range c.Tags {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// FindMQTT returns the MQTT config with the given name, or nil if not found.
func (c *Config) FindMQTT(name string) *MQTTConfig {
	for i := range c.MQTT {
		if c.MQTT[i].Name == name {
			return &c.MQTT[i]
		}
	}
	return nil
}

// FindValkey returns the Valkey config with the given name, or nil if not found.
func (c *Config) FindValkey(name string) *ValkeyConfig {
	for i := range c.Valkey {
		if c.Valkey[i].Name == name {
			return &c.Valkey[i]
		}
	}
	return nil
}

// FindKafka returns the Kafka config with the given name, or nil if not found.
func (c *Config) FindKafka(name string) *KafkaConfig {
	for i := range c.Kafka {
		if c.Kafka[i].Name == name {
			return &c.Kafka[i]
		}
	}
	return nil
}

// FindWebUser returns the web user with the given username, or nil if not found.
func (c *Config) FindWebUser(username string) *WebUser {
	for i := range c.Web.Users {
		if c.Web.Users[i].Username == username {
			return &c.Web.Users[i]
		}
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Namespace != "" && !IsValidNamespace(c.Namespace) {
		return fmt.Errorf("invalid namespace: must contain only alphanumeric characters, hyphens, underscores, and dots")
	}

	switch strings.ToLower(c.Engine.Kind) {
	case "", "native", "sim":
	default:
		return fmt.Errorf("engine: unknown kind %q", c.Engine.Kind)
	}
	if c.Engine.DebugLevel < 0 || c.Engine.DebugLevel > 5 {
		return fmt.Errorf("engine: debug_level %d out of range 0-5", c.Engine.DebugLevel)
	}

	seen := make(map[string]bool, len(c.Tags))
	for i, t := range c.Tags {
		if t.Name == "" {
			return fmt.Errorf("tags[%d]: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("tag %s: duplicate name", t.Name)
		}
		seen[t.Name] = true

		if t.Type == tag.Invalid {
			return fmt.Errorf("tag %s: type is required", t.Name)
		}
		if t.Count < 0 {
			return fmt.Errorf("tag %s: count must not be negative", t.Name)
		}
		if _, err := attr.Parse(t.Attributes); err != nil {
			return fmt.Errorf("tag %s: %w", t.Name, err)
		}
	}

	for _, u := range c.Web.Users {
		if u.Role != "" && u.Role != RoleAdmin && u.Role != RoleViewer {
			return fmt.Errorf("web user %s: unknown role %q", u.Username, u.Role)
		}
	}
	return nil
}

// IsValidNamespace returns true if the namespace is valid.
// Valid namespaces contain only alphanumeric characters, hyphens, underscores, and dots.
func IsValidNamespace(ns string) bool {
	if ns == "" {
		return false
	}
	for _, r := range ns {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return false
		}
	}
	return true
}
