package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the console process needs.
// Values come from defaults, an optional config file, then CONSOLE_* environment variables.
type Config struct {
	App      AppConfig
	Services ServicesConfig
	HTTP     HTTPConfig
	Store    StoreConfig
	DB       DBConfig
	Redis    RedisConfig
	Callback CallbackConfig
}

type AppConfig struct {
	Env string
}

// ServicesConfig holds the base URLs of the backing services.
type ServicesConfig struct {
	AuthURL     string
	TenantsURL  string
	MembersURL  string
	ProjectsURL string
}

type HTTPConfig struct {
	Timeout time.Duration
}

// StoreKind selects where the credential pair is persisted.
type StoreKind string

const (
	StoreMemory   StoreKind = "memory"
	StoreSQLite   StoreKind = "sqlite"
	StoreRedis    StoreKind = "redis"
	StorePostgres StoreKind = "postgres"
)

type StoreConfig struct {
	Kind      StoreKind
	Namespace string
	// SQLitePath is only used by the sqlite store.
	SQLitePath string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CallbackConfig struct {
	Port int
	// OAuthStartURL is opened by `console login --oauth`; the provider redirects back to the callback.
	OAuthStartURL string
	Timeout       time.Duration
}

// Load reads configuration. path may be empty.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	c := Config{
		App: AppConfig{Env: strings.TrimSpace(v.GetString("app.env"))},
		Services: ServicesConfig{
			AuthURL:     strings.TrimSpace(v.GetString("services.auth_url")),
			TenantsURL:  strings.TrimSpace(v.GetString("services.tenants_url")),
			MembersURL:  strings.TrimSpace(v.GetString("services.members_url")),
			ProjectsURL: strings.TrimSpace(v.GetString("services.projects_url")),
		},
		HTTP: HTTPConfig{Timeout: v.GetDuration("http.timeout")},
		Store: StoreConfig{
			Kind:       StoreKind(strings.ToLower(strings.TrimSpace(v.GetString("store.kind")))),
			Namespace:  strings.TrimSpace(v.GetString("store.namespace")),
			SQLitePath: strings.TrimSpace(v.GetString("store.sqlite_path")),
		},
		DB: DBConfig{
			Host:     strings.TrimSpace(v.GetString("db.host")),
			Port:     v.GetInt("db.port"),
			User:     strings.TrimSpace(v.GetString("db.user")),
			Password: v.GetString("db.password"),
			Name:     strings.TrimSpace(v.GetString("db.name")),
			SSLMode:  strings.TrimSpace(v.GetString("db.sslmode")),
		},
		Redis: RedisConfig{
			Host:     strings.TrimSpace(v.GetString("redis.host")),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Callback: CallbackConfig{
			Port:          v.GetInt("callback.port"),
			OAuthStartURL: strings.TrimSpace(v.GetString("callback.oauth_start_url")),
			Timeout:       v.GetDuration("callback.timeout"),
		},
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "local")
	v.SetDefault("services.auth_url", "http://localhost:8081")
	v.SetDefault("services.tenants_url", "http://localhost:8082")
	v.SetDefault("services.members_url", "http://localhost:8083")
	v.SetDefault("services.projects_url", "http://localhost:8084")
	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("store.kind", string(StoreSQLite))
	v.SetDefault("store.namespace", "console")
	v.SetDefault("store.sqlite_path", defaultSQLitePath())
	v.SetDefault("db.host", "")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "")
	v.SetDefault("db.sslmode", "")
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("callback.port", 8085)
	v.SetDefault("callback.oauth_start_url", "http://localhost:8081/oauth2/authorization/google")
	v.SetDefault("callback.timeout", 5*time.Minute)
}

func defaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "console-credentials.db"
	}
	return filepath.Join(dir, "tenant-console", "credentials.db")
}

// Validate reports every problem at once. It fills in safe defaults for optional fields.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("app.env is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("app.env must be one of local, dev, staging, production, got %q", c.App.Env))
	}

	for name, raw := range map[string]string{
		"services.auth_url":     c.Services.AuthURL,
		"services.tenants_url":  c.Services.TenantsURL,
		"services.members_url":  c.Services.MembersURL,
		"services.projects_url": c.Services.ProjectsURL,
	} {
		if err := c.checkServiceURL(name, raw); err != nil {
			errs = append(errs, err)
		}
	}

	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 15 * time.Second
	}
	if c.Store.Namespace == "" {
		c.Store.Namespace = "console"
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite store"))
		}
	case StoreRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("redis.host is required for the redis store"))
		}
		if !isValidPort(c.Redis.Port) {
			errs = append(errs, fmt.Errorf("redis.port must be a valid port, got %d", c.Redis.Port))
		}
	case StorePostgres:
		if c.DB.Host == "" {
			errs = append(errs, errors.New("db.host is required for the postgres store"))
		}
		if !isValidPort(c.DB.Port) {
			errs = append(errs, fmt.Errorf("db.port must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("db.user is required for the postgres store"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("db.name is required for the postgres store"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("db.sslmode is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("db.sslmode must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	default:
		errs = append(errs, fmt.Errorf("store.kind must be one of memory, sqlite, redis, postgres, got %q", c.Store.Kind))
	}

	if !isValidPort(c.Callback.Port) {
		errs = append(errs, fmt.Errorf("callback.port must be a valid port, got %d", c.Callback.Port))
	}
	if c.Callback.Timeout <= 0 {
		c.Callback.Timeout = 5 * time.Minute
	}

	return errors.Join(errs...)
}

func (c Config) checkServiceURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if c.IsProduction() {
			return fmt.Errorf("%s must use https in production", name)
		}
	default:
		return fmt.Errorf("%s must be http or https, got %q", name, u.Scheme)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) CallbackAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Callback.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
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

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func isValidPort(p int) bool {
	return p > 0 && p <= 65535
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
