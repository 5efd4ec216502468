package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/thequtt/qutt-client/pkg/enums"
)

type Config struct {
	App     AppConfig
	API     APIConfig
	Auth    AuthConfig
	Storage StorageConfig
	Redis   RedisConfig
	Cart    CartConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if err := c.API.validate(); err != nil {
		return err
	}
	if err := c.Auth.validate(); err != nil {
		return err
	}
	return c.Storage.validate(c.Redis)
}

type AppConfig struct {
	Env          string `envconfig:"QUTT_APP_ENV" default:"development"`
	LogLevel     string `envconfig:"QUTT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"QUTT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type APIConfig struct {
	BaseURL   string        `envconfig:"QUTT_API_BASE_URL" default:"https://thequtt-9nuq.onrender.com"`
	Timeout   time.Duration `envconfig:"QUTT_API_TIMEOUT" default:"30s"`
	UserAgent string        `envconfig:"QUTT_API_USER_AGENT" default:"qutt-client"`
}

func (a APIConfig) validate() error {
	u, err := url.Parse(strings.TrimSpace(a.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvAPIBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an absolute http(s) url", EnvAPIBaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", EnvAPIBaseURL)
	}
	return nil
}

// AuthConfig holds the token refresh tuning. The defaults mirror what the
// mobile clients shipped with; none of them are protocol constants.
type AuthConfig struct {
	RefreshCooldown time.Duration `envconfig:"QUTT_AUTH_REFRESH_COOLDOWN" default:"30s"`
	RefreshLeadTime time.Duration `envconfig:"QUTT_AUTH_REFRESH_LEAD_TIME" default:"5m"`
	RefreshMinDelay time.Duration `envconfig:"QUTT_AUTH_REFRESH_MIN_DELAY" default:"1m"`
	StoreTimeout    time.Duration `envconfig:"QUTT_AUTH_STORE_TIMEOUT" default:"5s"`
}

func (a AuthConfig) validate() error {
	if a.RefreshCooldown < 0 || a.RefreshLeadTime < 0 || a.RefreshMinDelay < 0 {
		return fmt.Errorf("auth refresh durations must be non-negative")
	}
	return nil
}

type StorageConfig struct {
	Driver        string `envconfig:"QUTT_STORAGE_DRIVER" default:"sqlite"`
	SQLitePath    string `envconfig:"QUTT_STORAGE_SQLITE_PATH" default:"qutt.db"`
	EncryptionKey string `envconfig:"QUTT_STORAGE_ENCRYPTION_KEY"`
}

// DriverKind returns the parsed storage driver.
func (s StorageConfig) DriverKind() (enums.StorageDriver, error) {
	return enums.ParseStorageDriver(strings.ToLower(strings.TrimSpace(s.Driver)))
}

// Key decodes the base64 encryption key. A nil key means values are stored
// in the clear.
func (s StorageConfig) Key() (*[32]byte, error) {
	raw := strings.TrimSpace(s.EncryptionKey)
	if raw == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", EnvStorageEncryptionKey, err)
	}
	if len(decoded) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", EnvStorageEncryptionKey, len(decoded))
	}
	var key [32]byte
	copy(key[:], decoded)
	return &key, nil
}

func (s StorageConfig) validate(redis RedisConfig) error {
	driver, err := s.DriverKind()
	if err != nil {
		return err
	}
	switch driver {
	case enums.StorageDriverSQLite:
		if strings.TrimSpace(s.SQLitePath) == "" {
			return fmt.Errorf("%s is required for the sqlite driver", EnvStorageSQLitePath)
		}
	case enums.StorageDriverRedis:
		if redis.URL == "" && redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis driver", EnvRedisURL, EnvRedisAddr)
		}
	}
	if _, err := s.Key(); err != nil {
		return err
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"QUTT_REDIS_URL"`
	Address      string        `envconfig:"QUTT_REDIS_ADDR"`
	Password     string        `envconfig:"QUTT_REDIS_PASSWORD"`
	DB           int           `envconfig:"QUTT_REDIS_DB" default:"0"`
	Namespace    string        `envconfig:"QUTT_REDIS_NAMESPACE" default:"qutt"`
	PoolSize     int           `envconfig:"QUTT_REDIS_POOL_SIZE" default:"4"`
	DialTimeout  time.Duration `envconfig:"QUTT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"QUTT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"QUTT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CartConfig struct {
	PersistTimeout time.Duration `envconfig:"QUTT_CART_PERSIST_TIMEOUT" default:"5s"`
}
