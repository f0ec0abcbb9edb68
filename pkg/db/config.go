package db

import (
	"time"

	"github.com/smallbiznis/creatorpay/internal/config"
)

// PoolConfig is the connection pool slice of the process configuration.
type PoolConfig struct {
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func poolConfigFrom(cfg config.Config) PoolConfig {
	pc := PoolConfig{
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
	}
	if pc.MaxIdleConn <= 0 {
		pc.MaxIdleConn = 10
	}
	if pc.MaxOpenConn <= 0 {
		pc.MaxOpenConn = 50
	}
	// sqlite serialises writers; a single connection avoids SQLITE_BUSY.
	if cfg.DBType == "sqlite" {
		pc.MaxOpenConn = 1
		pc.MaxIdleConn = 1
	}
	return pc
}
