package config

import (
	"fmt"
	"strings"
	"time"
)

// reloadableKeys can change while the process runs.
var reloadableKeys = map[string]bool{
	"logging.level":            true,
	"diagnostics.metrics_file": true,
}

// staticKeys only take effect on the next start.
var staticKeys = map[string]string{
	"connection_strings":       "database connection recreation required",
	"database.provider":        "persistence provider initialization required",
	"database.connection_name": "database connection recreation required",
	"database.pooled":          "persistence factory recreation required",
	"database.pool":            "database connection pool recreation required",
	"database.probe_timeout":   "bootstrap already configured",
	"database.stage_timeout":   "bootstrap already configured",
	"logging.output":           "log writer recreation required",
	"ui":                       "main window recreation required",
}

func IsReloadable(key string) bool {
	return reloadableKeys[key]
}

func getRestartReason(key string) string {
	if reason, ok := staticKeys[key]; ok {
		return reason
	}
	return "unknown configuration requires restart"
}

// ValidateLogLevel checks if the log level is valid.
func ValidateLogLevel(level string) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}
	return nil
}

func ValidateNonEmpty(value string, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

func ValidateDuration(duration time.Duration, fieldName string) error {
	if duration <= 0 {
		return fmt.Errorf("%s must be greater than 0", fieldName)
	}
	return nil
}

func ValidateNonNegative(value int, fieldName string) error {
	if value < 0 {
		return fmt.Errorf("%s must not be negative, got %d", fieldName, value)
	}
	return nil
}

// Validate collects every problem in the configuration into one error.
// Connection strings are checked when they are requested.
func (c *Config) Validate() error {
	var errs []string
	check := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	// Unknown providers are rejected by the runtime host.
	check(ValidateNonEmpty(c.Database.Provider, "database.provider"))
	check(ValidateNonEmpty(c.Database.ConnectionName, "database.connection_name"))
	check(ValidateDuration(c.Database.ProbeTimeout, "database.probe_timeout"))
	check(ValidateDuration(c.Database.StageTimeout, "database.stage_timeout"))

	if c.Database.Pooled {
		check(ValidateNonNegative(c.Database.Pool.MaxOpenConns, "database.pool.max_open_conns"))
		check(ValidateNonNegative(c.Database.Pool.MaxIdleConns, "database.pool.max_idle_conns"))
		if c.Database.Pool.MaxOpenConns > 0 && c.Database.Pool.MaxIdleConns > c.Database.Pool.MaxOpenConns {
			errs = append(errs, "database.pool.max_idle_conns must not exceed database.pool.max_open_conns")
		}
	}

	check(ValidateLogLevel(c.Logging.Level))
	check(ValidateNonNegative(c.Logging.MaxAgeDays, "logging.max_age_days"))
	check(ValidateNonNegative(c.Logging.MaxBackups, "logging.max_backups"))
	if !c.Logging.Console && strings.TrimSpace(c.Logging.Directory) == "" {
		errs = append(errs, "logging.directory cannot be empty when logging.console is false")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
