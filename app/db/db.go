package db

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	dbMu   sync.Mutex
	dbConn *gorm.DB
	config *Config
)

type Config struct {
	Connection  string
	Debug       bool
	PoolSize    int
	IdleTimeout int
}

func dialectorFor(connection string) (gorm.Dialector, error) {
	uri, err := url.Parse(connection)
	if err != nil {
		return nil, err
	}

	switch uri.Scheme {
	case "sqlite":
		// sqlite://:memory: and sqlite:///path/to.db are both accepted
		path := strings.TrimPrefix(strings.TrimPrefix(connection, "sqlite://"), "/")
		if path == ":memory:" {
			path = "file::memory:?cache=shared"
		} else {
			path = "/" + path
		}
		return sqlite.Open(path), nil
	case "mysql":
		connStr := fmt.Sprintf("%s@tcp(%s)%s?%s", uri.User.String(), uri.Host, uri.Path, uri.RawQuery)
		return mysql.Open(connStr), nil
	}
	return nil, errors.New(fmt.Sprintf("dialector '%s' is not supported", connection))
}

func Init(cfg *Config) error {
	dbMu.Lock()
	defer dbMu.Unlock()

	if dbConn != nil {
		return nil
	}

	if cfg.PoolSize == 0 {
		cfg.PoolSize = 5
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 3600
	}

	dialector, err := dialectorFor(cfg.Connection)
	if err != nil {
		return err
	}

	dbConn, err = gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return err
	}
	if cfg.Debug {
		dbConn = dbConn.Debug()
	}

	sqlDB, err := dbConn.DB()
	if err != nil {
		return nil
	}

	sqlDB.SetMaxOpenConns(cfg.PoolSize)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.IdleTimeout) * time.Second)
	config = cfg
	return nil
}

func GetDBConnection() *gorm.DB {
	return dbConn
}

// Reset drops the cached connection so tests can re-Init against a fresh
// database.
func Reset() {
	dbMu.Lock()
	defer dbMu.Unlock()
	if dbConn != nil {
		if sqlDB, err := dbConn.DB(); err == nil {
			sqlDB.Close()
		}
	}
	dbConn = nil
	config = nil
}
