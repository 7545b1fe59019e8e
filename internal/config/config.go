package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the full runtime configuration. Values come from, in
// increasing priority: built-in defaults, configs/config.<APP_ENV>.yaml,
// environment variables.
type Config struct {
	App struct {
		Env  string `yaml:"env"`
		Port int    `yaml:"port"`
	} `yaml:"app"`

	Database struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		User            string `yaml:"user"`
		Password        string `yaml:"password"`
		Name            string `yaml:"name"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
	} `yaml:"database"`

	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	JWT struct {
		Secret    string `yaml:"secret"`
		ExpiresIn int    `yaml:"expires_in"` // minutes
	} `yaml:"jwt"`

	Upload struct {
		Dir string `yaml:"dir"`
	} `yaml:"upload"`

	CORS struct {
		AllowOrigins string `yaml:"allow_origins"`
	} `yaml:"cors"`
}

// IsDevelopment reports whether the environment tolerates degraded
// dependencies. Outside development a missing Redis is fatal: mutating
// routes would otherwise run without CSRF protection.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "local" || c.App.Env == "development"
}

// GetDSN builds the MySQL DSN for the configured database.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Database.User, c.Database.Password,
		c.Database.Host, c.Database.Port, c.Database.Name)
}

// Load reads the yaml config at path (optional) and applies environment
// overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.App.Env = "local"
	cfg.App.Port = 8085
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = 3306
	cfg.Database.User = "pronote"
	cfg.Database.Name = "pronote"
	cfg.Database.MaxIdleConns = 10
	cfg.Database.MaxOpenConns = 100
	cfg.Database.ConnMaxLifetime = 3600
	cfg.Redis.Host = "127.0.0.1"
	cfg.Redis.Port = 6379
	cfg.Redis.PoolSize = 10
	cfg.JWT.ExpiresIn = 120
	cfg.Upload.Dir = "uploads/messagerie"
	cfg.CORS.AllowOrigins = "http://localhost:3000"

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("lecture du fichier de configuration %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET manquant")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envStr("APP_ENV", &cfg.App.Env)
	envInt("APP_PORT", &cfg.App.Port)
	envStr("DB_HOST", &cfg.Database.Host)
	envInt("DB_PORT", &cfg.Database.Port)
	envStr("DB_USER", &cfg.Database.User)
	envStr("DB_PASSWORD", &cfg.Database.Password)
	envStr("DB_NAME", &cfg.Database.Name)
	envStr("REDIS_HOST", &cfg.Redis.Host)
	envInt("REDIS_PORT", &cfg.Redis.Port)
	envStr("REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("REDIS_DB", &cfg.Redis.DB)
	envStr("JWT_SECRET", &cfg.JWT.Secret)
	envInt("JWT_EXPIRES_IN", &cfg.JWT.ExpiresIn)
	envStr("UPLOAD_DIR", &cfg.Upload.Dir)
	envStr("CORS_ALLOW_ORIGINS", &cfg.CORS.AllowOrigins)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
