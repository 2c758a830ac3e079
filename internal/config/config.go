// Package config loads server settings.
//
// Sources, lowest precedence first:
//
//	1. Defaults()
//	2. YAML file named by CONFIG_FILE (optional)
//	3. .env file in the working directory (optional, never overrides real env)
//	4. Environment variables
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sakif/foodbridge/internal/scheduler"
)

const MinSecretLength = 16

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type Config struct {
	Port           int           `yaml:"port"`
	DBPath         string        `yaml:"db_path"`
	JWTSecret      string        `yaml:"jwt_secret"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	CookieSecure   bool          `yaml:"cookie_secure"`
	BcryptCost     int           `yaml:"bcrypt_cost"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`
	SweepSchedule  string        `yaml:"sweep_schedule"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	SMTP           SMTP          `yaml:"smtp"`

	// SecretGenerated is set when no JWT secret was configured and a random
	// one was created. Sessions will not survive a restart.
	SecretGenerated bool `yaml:"-"`
}

func Defaults() Config {
	return Config{
		Port:           8080,
		DBPath:         "data/foodbridge.db",
		SessionTTL:     24 * time.Hour,
		BcryptCost:     12,
		LogLevel:       "info",
		SweepSchedule:  scheduler.DefaultSchedule,
		RateLimitRPS:   5,
		RateLimitBurst: 10,
		SMTP:           SMTP{Port: 587},
	}
}

// Load reads configuration from every source. envFile is the dotenv file
// to read; a missing file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", envFile, err)
		}
	}
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()

	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.JWTSecret = secret
		cfg.SecretGenerated = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a number", key, v))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}

	integer("PORT", &cfg.Port)
	str("DB_PATH", &cfg.DBPath)
	str("JWT_SECRET", &cfg.JWTSecret)
	duration("SESSION_TTL", &cfg.SessionTTL)
	boolean("COOKIE_SECURE", &cfg.CookieSecure)
	integer("BCRYPT_COST", &cfg.BcryptCost)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)
	float("RATE_LIMIT_RPS", &cfg.RateLimitRPS)
	integer("RATE_LIMIT_BURST", &cfg.RateLimitBurst)
	str("SMTP_HOST", &cfg.SMTP.Host)
	integer("SMTP_PORT", &cfg.SMTP.Port)
	str("SMTP_USER", &cfg.SMTP.User)
	str("SMTP_PASSWORD", &cfg.SMTP.Password)
	str("SMTP_FROM", &cfg.SMTP.From)

	// An explicitly empty SWEEP_SCHEDULE disables the sweeper, so presence
	// matters here, not just a non-empty value.
	if v, ok := lookup("SWEEP_SCHEDULE"); ok {
		cfg.SweepSchedule = strings.TrimSpace(v)
	}

	return errors.Join(errs...)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("config: port %d out of range", c.Port)
	case c.DBPath == "":
		return errors.New("config: db path is required")
	case len(c.JWTSecret) < MinSecretLength:
		return fmt.Errorf("config: jwt secret must be at least %d characters", MinSecretLength)
	case c.SessionTTL <= 0:
		return errors.New("config: session ttl must be positive")
	case c.RateLimitRPS <= 0:
		return errors.New("config: rate limit rps must be positive")
	case c.RateLimitBurst < 1:
		return errors.New("config: rate limit burst must be at least 1")
	case c.SMTP.Host != "" && (c.SMTP.Port < 1 || c.SMTP.Port > 65535):
		return fmt.Errorf("config: smtp port %d out of range", c.SMTP.Port)
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("config: generating jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
