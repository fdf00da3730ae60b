package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBDriver   string `mapstructure:"DB_DRIVER"`
	Host       string `mapstructure:"DB_HOST"`
	User       string `mapstructure:"DB_USER"`
	Password   string `mapstructure:"DB_PASSWORD"`
	Name       string `mapstructure:"DB_NAME"`
	DBPort     string `mapstructure:"DB_PORT"`
	SSLMode    string `mapstructure:"DB_SSLMODE"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	ServerPort      string        `mapstructure:"SERVER_PORT"`
	Environment     string        `mapstructure:"ENVIRONMENT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	AllowedOrigins  []string      `mapstructure:"ALLOWED_ORIGINS"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	JWTKey string `mapstructure:"JWT_KEY"`

	WSSendBuffer     int `mapstructure:"WS_SEND_BUFFER"`
	WSHistoryReplay  int `mapstructure:"WS_HISTORY_REPLAY"`
	HistoryCacheSize int `mapstructure:"HISTORY_CACHE_SIZE"`
}

var defaults = map[string]any{
	"DB_DRIVER":          "postgres",
	"DB_HOST":            "",
	"DB_USER":            "",
	"DB_PASSWORD":        "",
	"DB_NAME":            "",
	"DB_PORT":            "5432",
	"DB_SSLMODE":         "disable",
	"SQLITE_PATH":        "schoolconnect_chat.db",
	"SERVER_PORT":        "8080",
	"ENVIRONMENT":        "production",
	"LOG_LEVEL":          "info",
	"ALLOWED_ORIGINS":    "http://localhost:3000,http://localhost:8080",
	"SHUTDOWN_TIMEOUT":   "30s",
	"REDIS_ADDR":         "",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"JWT_KEY":            "",
	"WS_SEND_BUFFER":     256,
	"WS_HISTORY_REPLAY":  50,
	"HISTORY_CACHE_SIZE": 200,
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	return LoadFrom(".env")
}

func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		// .env не обязателен, всё можно передать через окружение
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
		if c.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if c.DBPort == "" {
			return fmt.Errorf("DB_PORT is required")
		}
		if c.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.JWTKey == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_KEY is required")
		}
		c.JWTKey = "insecure-development-key-change-me"
	}

	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive")
	}
	if c.WSHistoryReplay < 0 {
		return fmt.Errorf("WS_HISTORY_REPLAY cannot be negative")
	}

	return nil
}

// DSN строка подключения к Postgres
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.DBPort, c.SSLMode)
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}
