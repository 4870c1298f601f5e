package appconfig

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override, e.g.
// USER_ADMIN_SERVER_LIST_DELAY=1s.
const EnvPrefix = "USER_ADMIN"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all configuration details
type Config struct {
	Host     string         `yaml:"host"`
	BasePath string         `yaml:"basePath" split_words:"true"`
	DocsPath string         `yaml:"docsPath" split_words:"true"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Pulsar   PulsarConfig   `yaml:"pulsar"`
	AWS      AWSConfig      `yaml:"aws"`
	Client   ClientConfig   `yaml:"client"`
}

// ServerConfig defines the behaviour of the users API
type ServerConfig struct {
	ListDelay    time.Duration `yaml:"listDelay" split_words:"true"`
	UpdateDelay  time.Duration `yaml:"updateDelay" split_words:"true"`
	SeedUsers    int           `yaml:"seedUsers" split_words:"true"`
	Seed         int64         `yaml:"seed"`
	Store        string        `yaml:"store"`
	RequireAdmin bool          `yaml:"requireAdmin" split_words:"true"`
}

// DatabaseConfig defines the database connection details. When SecretName
// is set the connection string is read from AWS Secrets Manager.
type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	Source     string `yaml:"source"`
	SecretName string `yaml:"secretName" split_words:"true"`
}

// PulsarConfig defines the messaging system connection details
type PulsarConfig struct {
	URL           string `yaml:"url"`
	TopicProducer string `yaml:"topicProducer" split_words:"true"`
	TopicConsumer string `yaml:"topicConsumer" split_words:"true"`
	Subscription  string `yaml:"subscription"`
}

type AWSConfig struct {
	Region string `yaml:"region"`
}

// ClientConfig configures the console's connection to the users API
type ClientConfig struct {
	BaseURL  string        `yaml:"baseURL" split_words:"true"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
	PageSize int           `yaml:"pageSize" split_words:"true"`
	Debounce time.Duration `yaml:"debounce"`
	Token    string        `yaml:"token"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Host:     "localhost:8080",
		BasePath: "/api",
		DocsPath: "/api/docs",
		Server: ServerConfig{
			ListDelay:   500 * time.Millisecond,
			UpdateDelay: 300 * time.Millisecond,
			SeedUsers:   100,
			Seed:        1,
			Store:       StoreMemory,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
		},
		Pulsar: PulsarConfig{
			TopicProducer: "user-status",
			TopicConsumer: "user-status",
			Subscription:  "user-admin",
		},
		AWS: AWSConfig{
			Region: "eu-west-2",
		},
		Client: ClientConfig{
			BaseURL:  "http://localhost:8080/api",
			Timeout:  10 * time.Second,
			Retries:  1,
			PageSize: 10,
			Debounce: 300 * time.Millisecond,
		},
	}
}

// LoadConfig loads and parses the configuration from a given file path.
// The file is rendered as a template over the environment first, then
// USER_ADMIN_* variables override individual fields. An empty path starts
// from Default.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		// Parse the template file
		tmpl, err := template.ParseFiles(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("error parsing config file template")
			return nil, fmt.Errorf("parse config template: %w", err)
		}

		// Execute the template with environment variables
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, loadEnvVars()); err != nil {
			log.Error().Err(err).Msg("error executing config file template")
			return nil, fmt.Errorf("execute config template: %w", err)
		}

		if err := yaml.Unmarshal(buf.Bytes(), config); err != nil {
			log.Error().Err(err).Msg("failed to unmarshal config YAML")
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	switch c.Server.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("server.store must be %q or %q, got %q", StoreMemory, StorePostgres, c.Server.Store)
	}
	if c.Server.ListDelay < 0 || c.Server.UpdateDelay < 0 {
		return fmt.Errorf("server delays must not be negative")
	}
	if c.Server.SeedUsers < 0 {
		return fmt.Errorf("server.seedUsers must not be negative")
	}
	if c.Client.PageSize < 1 {
		return fmt.Errorf("client.pageSize must be >= 1")
	}
	if c.Client.Retries < 0 {
		return fmt.Errorf("client.retries must not be negative")
	}
	if !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("basePath must start with /")
	}
	return nil
}

// loadEnvVars loads environment variables into a map
func loadEnvVars() map[string]string {
	envVars := make(map[string]string)
	for _, env := range os.Environ() {
		kv := strings.SplitN(env, "=", 2)
		if len(kv) == 2 {
			envVars[kv[0]] = kv[1]
		}
	}
	return envVars
}
