package config

import (
	"fmt"     // Error formatting
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // Durations

	"github.com/joho/godotenv" // For loading .env files
	"gopkg.in/yaml.v3"         // For the optional config file
)

// Config holds the application configuration
type Config struct {
	AppPort      string        `yaml:"app_port"`      // Application port
	DBDriver     string        `yaml:"db_driver"`     // Database driver: mysql or sqlite
	DBUser       string        `yaml:"db_user"`       // Database user
	DBPassword   string        `yaml:"db_password"`   // Database password
	DBHost       string        `yaml:"db_host"`       // Database host
	DBPort       string        `yaml:"db_port"`       // Database port
	DBName       string        `yaml:"db_name"`       // Database name
	SQLitePath   string        `yaml:"sqlite_path"`   // SQLite file when DBDriver is sqlite
	JWTSecret    string        `yaml:"jwt_secret"`    // JWT secret key
	RedisAddr    string        `yaml:"redis_addr"`    // Redis server address, empty disables caching
	RedisPass    string        `yaml:"redis_pass"`    // Redis password
	RedisDB      int           `yaml:"redis_db"`      // Redis database number
	CacheTTL     time.Duration `yaml:"cache_ttl"`     // Lifetime of cached reads
	AMQPURL      string        `yaml:"amqp_url"`      // RabbitMQ URL, empty disables ledger events
	AMQPExchange string        `yaml:"amqp_exchange"` // Exchange ledger events are published to
	IsProd       bool          `yaml:"is_prod"`       // Is production environment
}

// LoadConfig loads configuration from the optional YAML file named by
// CONFIG_FILE, then from environment variables, which take precedence.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present
	cfg := &Config{
		AppPort:      "8080",           // Default port
		DBDriver:     "mysql",          // Default driver
		SQLitePath:   "fund_ledger.db", // Default SQLite file
		CacheTTL:     60 * time.Second, // Default cache lifetime
		AMQPExchange: "fund_ledger",    // Default exchange
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	setString(&cfg.AppPort, "APP_PORT")
	setString(&cfg.DBDriver, "DB_DRIVER")
	setString(&cfg.DBUser, "DB_USER")
	setString(&cfg.DBPassword, "DB_PASSWORD")
	setString(&cfg.DBHost, "DB_HOST")
	setString(&cfg.DBPort, "DB_PORT")
	setString(&cfg.DBName, "DB_NAME")
	setString(&cfg.SQLitePath, "SQLITE_PATH")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPass, "REDIS_PASS")
	setString(&cfg.AMQPURL, "AMQP_URL")
	setString(&cfg.AMQPExchange, "AMQP_EXCHANGE")
	if v := os.Getenv("REDIS_DB"); v != "" {
		redisDB, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		cfg.RedisDB = redisDB
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_TTL %q: %w", v, err)
		}
		cfg.CacheTTL = ttl
	}
	if v := os.Getenv("IS_PROD"); v != "" {
		cfg.IsProd = v == "true" // Is production environment
	}
	return cfg, nil
}

// setString overrides *dst with the environment variable key when it is set
func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that the configuration can start a server
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.AppPort)
	if err != nil {
		return fmt.Errorf("invalid port '%s': must be a number", c.AppPort)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	switch c.DBDriver {
	case "mysql":
		if c.DBHost == "" || c.DBName == "" {
			return fmt.Errorf("mysql driver requires DB_HOST and DB_NAME")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite driver requires SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB driver '%s'", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("invalid cache TTL %s: must be positive", c.CacheTTL)
	}
	return nil
}
