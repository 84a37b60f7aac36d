package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port        int `mapstructure:"port"`
	MaxSessions int `mapstructure:"max_sessions"` // cached users; <= 0 means unbounded
}

type StorageConfig struct {
	Backend    string `mapstructure:"backend"` // csv or sqlite
	Dir        string `mapstructure:"dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type LedgerConfig struct {
	User              string `mapstructure:"user"`
	RollbackOnFailure bool   `mapstructure:"rollback_on_failure"`
}

type ImportConfig struct {
	PreviewLimit int `mapstructure:"preview_limit"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Log     LogConfig     `mapstructure:"log"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Import  ImportConfig  `mapstructure:"import"`
}

const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// EnvPrefix namespaces environment overrides, e.g. LEDGER_SERVER_PORT=9000.
const EnvPrefix = "LEDGER"

var ErrInvalidConfig = errors.New("invalid config")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_sessions", 256)
	v.SetDefault("storage.backend", BackendCSV)
	v.SetDefault("storage.dir", "./data")
	v.SetDefault("storage.sqlite_path", "./data/ledger.db")
	v.SetDefault("audit.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("ledger.user", "default")
	v.SetDefault("ledger.rollback_on_failure", true)
	v.SetDefault("import.preview_limit", 50)
}

// Load reads configuration from path (YAML). With an empty path it looks for
// ledger.yaml in the working directory and runs on defaults when there is
// none. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("ledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendCSV, BackendSQLite:
	default:
		return fmt.Errorf("%w: storage.backend %q (want csv or sqlite)", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalidConfig, c.Server.Port)
	}
	if strings.TrimSpace(c.Ledger.User) == "" {
		return fmt.Errorf("%w: ledger.user is empty", ErrInvalidConfig)
	}
	if c.Import.PreviewLimit < 0 {
		return fmt.Errorf("%w: import.preview_limit %d", ErrInvalidConfig, c.Import.PreviewLimit)
	}
	return nil
}
