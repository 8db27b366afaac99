package shared

import (
	"database/sql"
	"time"
)

type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func DefaultPoolSettings() PoolSettings {
	return PoolSettings{
		MaxOpenConns:    20,
		MaxIdleConns:    20,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

func (s PoolSettings) withDefaults() PoolSettings {
	defaults := DefaultPoolSettings()
	if s.MaxOpenConns <= 0 {
		s.MaxOpenConns = defaults.MaxOpenConns
	}
	if s.MaxIdleConns <= 0 || s.MaxIdleConns > s.MaxOpenConns {
		s.MaxIdleConns = s.MaxOpenConns
	}
	if s.ConnMaxIdleTime <= 0 {
		s.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if s.ConnMaxLifetime <= 0 {
		s.ConnMaxLifetime = defaults.ConnMaxLifetime
	}

	return s
}

func ConfigurePool(db *sql.DB, settings PoolSettings) {
	settings = settings.withDefaults()

	db.SetMaxOpenConns(settings.MaxOpenConns)
	db.SetMaxIdleConns(settings.MaxIdleConns)
	db.SetConnMaxIdleTime(settings.ConnMaxIdleTime)
	db.SetConnMaxLifetime(settings.ConnMaxLifetime)
}

// ConfigureSingleConnection limits db to the one connection a non-pooled
// handle uses.
func ConfigureSingleConnection(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
}
