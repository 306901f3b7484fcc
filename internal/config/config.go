package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort             = 4000
	defaultDBPort           = 5432
	defaultDBUser           = "postgres"
	defaultDBName           = "notedly"
	defaultTokenTTL         = 24 * time.Hour
	defaultConcurrencyLimit = 8
)

// Config holds all configuration required by the API process.
// All values come from env (a .env file may be loaded by main first).
// No resolver or handler should read raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Metrics MetricsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// DBConfig describes the Postgres target. Host may be a complete
// connection string (URL or key=value DSN), in which case the remaining
// fields are ignored.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. An empty Addr disables the /api concurrency cap.
type RedisConfig struct {
	Addr             string
	ConcurrencyLimit int
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration
}

// MetricsConfig is optional. An empty Addr disables the metrics listener.
type MetricsConfig struct {
	Addr string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error
	intVar := func(dst *int, key string) {
		n, err := optionalInt(key)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		*dst = n
	}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	intVar(&c.App.Port, "PORT")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	intVar(&c.DB.Port, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	intVar(&c.Redis.ConcurrencyLimit, "API_CONCURRENCY_LIMIT")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	if d, err := optionalDuration("JWT_TTL"); err != nil {
		parseErrs = append(parseErrs, err)
	} else {
		c.Auth.TokenTTL = d
	}

	c.Metrics.Addr = strings.TrimSpace(os.Getenv("METRICS_ADDR"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate applies defaults in place and reports every invalid value.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		c.App.Env = "local"
	}
	if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port == 0 {
		c.App.Port = defaultPort
	}
	if c.App.Port < 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port == 0 {
		c.DB.Port = defaultDBPort
	}
	if c.DB.Port < 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		c.DB.User = defaultDBUser
	}
	if c.DB.Name == "" {
		c.DB.Name = defaultDBName
	}
	if c.DB.SSLMode == "" && !c.DB.isConnString() {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.ConcurrencyLimit == 0 {
		c.Redis.ConcurrencyLimit = defaultConcurrencyLimit
	}
	if c.Redis.ConcurrencyLimit < 0 {
		errs = append(errs, fmt.Errorf("API_CONCURRENCY_LIMIT must be positive, got %d", c.Redis.ConcurrencyLimit))
	}

	// Without JWT_SECRET every presented credential fails verification;
	// anonymous traffic still works.
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = defaultTokenTTL
	}
	if c.Auth.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("JWT_TTL must be positive, got %s", c.Auth.TokenTTL))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// PostgresDSN returns the connection string for the pgx driver.
// Avoid logging this string; it contains secrets.
func (c Config) PostgresDSN() string {
	if c.DB.isConnString() {
		return c.DB.Host
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// DBTarget is a log-safe description of the database target.
func (c Config) DBTarget() string {
	if c.DB.isConnString() {
		if u, err := url.Parse(c.DB.Host); err == nil && u.Host != "" {
			return u.Host
		}
		return "dsn"
	}
	return fmt.Sprintf("%s:%d/%s", c.DB.Host, c.DB.Port, c.DB.Name)
}

func (d DBConfig) isConnString() bool {
	return strings.Contains(d.Host, "://") || strings.Contains(d.Host, "=")
}

func optionalInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
