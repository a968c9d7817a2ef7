package db

import (
	"fmt"

	"github.com/zulandar/handoff/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteDSN builds a sqlite DSN with foreign keys enabled, which the
// audit_log cascade delete depends on.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_fk=1", path)
}

// MySQLDSN builds a DSN for connecting to a MySQL-compatible server.
func MySQLDSN(user, host string, port int, database string) string {
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", user, host, port, database)
}

// Connect opens a GORM connection to the configured store backend.
func Connect(cfg config.StoreConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch cfg.Backend {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(SQLiteDSN(cfg.Path)), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect sqlite %s: %w", cfg.Path, err)
		}
		return db, nil
	case "mysql":
		dsn := MySQLDSN(cfg.User, cfg.Host, cfg.Port, cfg.Database)
		db, err := gorm.Open(mysql.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("db: unknown backend %q", cfg.Backend)
	}
}
