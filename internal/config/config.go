package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Name     string `yaml:"name" envconfig:"APP_NAME"`
	Port     string `yaml:"port" envconfig:"APP_PORT"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" envconfig:"LOG_JSON"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host" envconfig:"DB_HOST"`
	Port            string        `yaml:"port" envconfig:"DB_PORT"`
	User            string        `yaml:"user" envconfig:"DB_USER"`
	Password        string        `yaml:"password" envconfig:"DB_PASSWORD"`
	DBName          string        `yaml:"dbname" envconfig:"DB_NAME"`
	SSLMode         string        `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	Schema          string        `yaml:"schema" envconfig:"DB_SCHEMA"`
	MaxConns        int32         `yaml:"max_conns" envconfig:"DB_MAX_CONNS"`
	MinConns        int32         `yaml:"min_conns" envconfig:"DB_MIN_CONNS"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" envconfig:"DB_MAX_CONN_LIFETIME"`
	MigrationsPath  string        `yaml:"migrations_path" envconfig:"DB_MIGRATIONS_PATH"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" envconfig:"JWT_TOKEN_TTL"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" envconfig:"REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" envconfig:"REDIS_TTL"`
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	Postgres PostgresConfig `yaml:"postgres"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
}

func defaults() Config {
	return Config{
		App: AppConfig{
			Name:     "shop-service",
			Port:     "8080",
			LogLevel: "info",
		},
		Postgres: PostgresConfig{
			Port:            "5432",
			SSLMode:         "disable",
			Schema:          "shop",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MigrationsPath:  "migrations",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
	}
}

// NewConfig builds the configuration in layers: built-in defaults, then the
// optional YAML file at path, then a .env file, then process environment.
func NewConfig(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Postgres.Host == "":
		return errors.New("config: DB_HOST is required")
	case c.Postgres.User == "":
		return errors.New("config: DB_USER is required")
	case c.Postgres.DBName == "":
		return errors.New("config: DB_NAME is required")
	case c.Auth.JWTSecret == "":
		return errors.New("config: JWT_SECRET is required")
	}
	return nil
}

// DSN returns the key/value connection string understood by pgx.
func (p PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
	if p.Schema != "" {
		dsn += " search_path=" + p.Schema
	}
	return dsn
}

// MigrateURL returns the URL form used by golang-migrate's pgx/v5 driver.
func (p PostgresConfig) MigrateURL() string {
	url := fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
	if p.Schema != "" {
		url += "&search_path=" + p.Schema + "&x-migrations-table=schema_migrations"
	}
	return url
}
