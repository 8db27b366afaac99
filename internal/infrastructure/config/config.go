package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	portsout "ledgerdesk/internal/application/ports/out"
	apperrors "ledgerdesk/internal/shared_kernel/errors"
)

const (
	envPrefix      = "LEDGERDESK"
	configName     = "ledgerdesk"
	configType     = "yaml"
	appDirName     = "ledgerdesk"
	defaultConnKey = "default"
)

type ConfigError struct {
	Code     string
	Message  string
	Metadata map[string]string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

type Config struct {
	ConnectionStrings map[string]string `mapstructure:"connection_strings"`
	Database          DatabaseConfig    `mapstructure:"database"`
	Logging           LoggingConfig     `mapstructure:"logging"`
	UI                UIConfig          `mapstructure:"ui"`
	Diagnostics       DiagnosticsConfig `mapstructure:"diagnostics"`
}

type DatabaseConfig struct {
	Provider       string        `mapstructure:"provider"`
	ConnectionName string        `mapstructure:"connection_name"`
	Pooled         bool          `mapstructure:"pooled"`
	Pool           PoolConfig    `mapstructure:"pool"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	StageTimeout   time.Duration `mapstructure:"stage_timeout"`
}

type PoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Directory  string `mapstructure:"directory"`
	FileName   string `mapstructure:"file_name"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

type UIConfig struct {
	// Locale is a BCP 47 tag. Empty means detect from the environment.
	Locale string `mapstructure:"locale"`
	Title  string `mapstructure:"title"`
}

type DiagnosticsConfig struct {
	MetricsFile string `mapstructure:"metrics_file"`
}

// Source owns the viper instance behind the loaded Config and serves
// connection strings to the persistence layer.
type Source struct {
	v *viper.Viper

	mu       sync.RWMutex
	config   Config
	onReload []func(Config)
	logger   portsout.LoggerSink
}

var _ portsout.ConfigurationSource = (*Source)(nil)

func setDefaults(v *viper.Viper) {
	v.SetDefault("connection_strings."+defaultConnKey, filepath.Join("data", "ledgerdesk.db"))

	v.SetDefault("database.provider", "sqlite")
	v.SetDefault("database.connection_name", defaultConnKey)
	v.SetDefault("database.pooled", true)
	v.SetDefault("database.pool.max_open_conns", 20)
	v.SetDefault("database.pool.max_idle_conns", 20)
	v.SetDefault("database.pool.conn_max_idle_time", "5m")
	v.SetDefault("database.pool.conn_max_lifetime", "30m")
	v.SetDefault("database.probe_timeout", "10s")
	v.SetDefault("database.stage_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.file_name", "ledgerdesk.log")
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.max_backups", 0)
	v.SetDefault("logging.compress", false)
	v.SetDefault("logging.console", true)

	v.SetDefault("ui.locale", "")
	v.SetDefault("ui.title", "LedgerDesk")

	v.SetDefault("diagnostics.metrics_file", "")
}

// Load reads configuration from path, or from the first ledgerdesk.yaml found
// on the search path when path is empty. Environment variables prefixed with
// LEDGERDESK_ override file values.
func Load(path string) (*Source, *ConfigError) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, appDirName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, &ConfigError{
				Code:     "CONFIG_FILE_READ_FAILED",
				Message:  "failed to read configuration file: " + err.Error(),
				Metadata: map[string]string{"path": path},
			}
		}
	}

	cfg, cfgErr := decode(v)
	if cfgErr != nil {
		return nil, cfgErr
	}

	return &Source{v: v, config: cfg}, nil
}

func decode(v *viper.Viper) (Config, *ConfigError) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &ConfigError{
			Code:    "CONFIG_DECODE_FAILED",
			Message: "failed to decode configuration: " + err.Error(),
		}
	}

	cfg.Database.Provider = strings.ToLower(strings.TrimSpace(cfg.Database.Provider))
	cfg.Database.ConnectionName = strings.ToLower(strings.TrimSpace(cfg.Database.ConnectionName))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))

	if err := cfg.Validate(); err != nil {
		return Config{}, &ConfigError{
			Code:    "CONFIG_INVALID",
			Message: err.Error(),
		}
	}

	return cfg, nil
}

func (s *Source) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.config
}

// ConfigFileUsed is empty when no file was found and defaults apply.
func (s *Source) ConfigFileUsed() string {
	return s.v.ConfigFileUsed()
}

func (s *Source) ConnectionString(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	s.mu.RLock()
	value := strings.TrimSpace(s.config.ConnectionStrings[key])
	s.mu.RUnlock()

	if key == "" || value == "" {
		return "", apperrors.NewConfiguration(
			"CONFIG_CONNECTION_STRING_MISSING",
			"connection string is not configured",
			map[string]any{"name": name},
		)
	}

	return value, nil
}

// OnReload registers fn to run with the effective configuration after a
// reloadable key changed on disk.
func (s *Source) OnReload(fn func(Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onReload = append(s.onReload, fn)
}

// Watch starts watching the configuration file. It is a no-op when defaults
// are in use.
func (s *Source) Watch(logger portsout.LoggerSink) {
	if s.ConfigFileUsed() == "" {
		return
	}

	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()

	s.v.OnConfigChange(s.handleChange)
	s.v.WatchConfig()
}

func (s *Source) handleChange(event fsnotify.Event) {
	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()

	next, cfgErr := decode(s.v)
	if cfgErr != nil {
		if logger != nil {
			logger.Error("configuration reload rejected", cfgErr, "file", event.Name)
		}
		return
	}

	s.mu.Lock()
	current := s.config
	applied := false
	for _, key := range diffConfig(current, next) {
		if !IsReloadable(key) {
			if logger != nil {
				logger.Info("configuration change requires restart", "key", key, "reason", getRestartReason(key))
			}
			continue
		}

		applyReloadable(&current, next, key)
		applied = true
		if logger != nil {
			logger.Info("configuration reloaded", "key", key)
		}
	}
	s.config = current
	callbacks := slices.Clone(s.onReload)
	s.mu.Unlock()

	if !applied {
		return
	}
	for _, fn := range callbacks {
		fn(current)
	}
}

func applyReloadable(cfg *Config, next Config, key string) {
	switch key {
	case "logging.level":
		cfg.Logging.Level = next.Logging.Level
	case "diagnostics.metrics_file":
		cfg.Diagnostics.MetricsFile = next.Diagnostics.MetricsFile
	}
}

// diffConfig lists the keys whose values differ between a and b.
func diffConfig(a, b Config) []string {
	var changed []string
	add := func(key string, differs bool) {
		if differs {
			changed = append(changed, key)
		}
	}

	add("connection_strings", !equalStrings(a.ConnectionStrings, b.ConnectionStrings))
	add("database.provider", a.Database.Provider != b.Database.Provider)
	add("database.connection_name", a.Database.ConnectionName != b.Database.ConnectionName)
	add("database.pooled", a.Database.Pooled != b.Database.Pooled)
	add("database.pool", a.Database.Pool != b.Database.Pool)
	add("database.probe_timeout", a.Database.ProbeTimeout != b.Database.ProbeTimeout)
	add("database.stage_timeout", a.Database.StageTimeout != b.Database.StageTimeout)
	add("logging.level", a.Logging.Level != b.Logging.Level)
	add("logging.output", a.Logging.Directory != b.Logging.Directory ||
		a.Logging.FileName != b.Logging.FileName ||
		a.Logging.MaxAgeDays != b.Logging.MaxAgeDays ||
		a.Logging.MaxBackups != b.Logging.MaxBackups ||
		a.Logging.Compress != b.Logging.Compress ||
		a.Logging.Console != b.Logging.Console)
	add("ui", a.UI != b.UI)
	add("diagnostics.metrics_file", a.Diagnostics.MetricsFile != b.Diagnostics.MetricsFile)

	return changed
}

func equalStrings(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		other, ok := b[key]
		if !ok || other != value {
			return false
		}
	}

	return true
}
