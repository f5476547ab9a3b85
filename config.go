package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	backendMongo    = "mongo"
	backendDynamoDB = "dynamodb"
	backendMemory   = "memory"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Sentry SentryConfig `yaml:"sentry"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	StaticDir   string `yaml:"static_dir,omitempty"`
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"`
	Mongo    MongoConfig    `yaml:"mongo"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

type MongoConfig struct {
	URI        string `yaml:"uri,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
	Endpoint   string `yaml:"endpoint,omitempty"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type DynamoDBConfig struct {
	Table    string `yaml:"table"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn,omitempty"`
	Environment string `yaml:"environment,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080", MetricsAddr: ":8081"},
		Store: StoreConfig{
			Backend:  backendMongo,
			Mongo:    MongoConfig{Endpoint: "localhost:27017", Database: "todos", Collection: "todos"},
			DynamoDB: DynamoDBConfig{Table: "todotable"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides config from environment variables.
func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.Addr, "TODO_ADDR")
	set(&cfg.Server.MetricsAddr, "TODO_METRICS_ADDR")
	set(&cfg.Server.StaticDir, "TODO_STATIC_DIR")
	set(&cfg.Store.Backend, "TODO_STORE")
	set(&cfg.Store.Mongo.URI, "MONGODB_URI")
	set(&cfg.Store.Mongo.Username, "MONGODB_USERNAME")
	set(&cfg.Store.Mongo.Password, "MONGODB_PASSWORD")
	set(&cfg.Store.Mongo.Endpoint, "MONGODB_ENDPOINT")
	set(&cfg.Store.DynamoDB.Table, "DYNAMODB_TABLE")
	set(&cfg.Store.DynamoDB.Endpoint, "DYNAMODB_ENDPOINT")
	set(&cfg.Store.DynamoDB.Region, "AWS_REGION")
	set(&cfg.Sentry.DSN, "SENTRY_DSN")
	set(&cfg.Sentry.Environment, "SENTRY_ENVIRONMENT")
	set(&cfg.Log.Level, "LOG_LEVEL")
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case backendMongo:
		if c.Store.Mongo.URI == "" && c.Store.Mongo.Endpoint == "" {
			return fmt.Errorf("mongo store needs a uri or an endpoint")
		}
		if c.Store.Mongo.Database == "" || c.Store.Mongo.Collection == "" {
			return fmt.Errorf("mongo store needs a database and a collection")
		}
	case backendDynamoDB:
		if c.Store.DynamoDB.Table == "" {
			return fmt.Errorf("dynamodb store needs a table")
		}
	case backendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is empty")
	}
	return nil
}
