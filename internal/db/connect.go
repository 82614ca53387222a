package db

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/workbay/garagedesk/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLDSN builds a MySQL DSN for a shared session database.
func MySQLDSN(c config.MySQLConfig) string {
	dsn := gomysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dsn.DBName = c.Database
	dsn.ParseTime = true
	return dsn.FormatDSN()
}

// Open connects to the session database selected by cfg. The memory driver
// returns an error; callers use session.MemoryStore for it instead.
func Open(cfg config.SessionConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "mysql":
		return OpenMySQL(cfg.MySQL)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// OpenSQLite opens (creating if needed) a local sqlite session file.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("db: create dir for %s: %w", path, err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	return db, nil
}

// OpenMySQL opens a GORM connection to a MySQL session database.
func OpenMySQL(c config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(MySQLDSN(c)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", c.Host, c.Port, c.Database, err)
	}
	return db, nil
}
