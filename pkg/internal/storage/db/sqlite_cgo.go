//go:build !no_sqlite && cgo

package db

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/papervault/pkg/configs"
)

// openSQLite 使用 mattn/go-sqlite3，参数名为下划线前缀形式.
func openSQLite(dsn string) gorm.Dialector {
	return sqlite.Open(appendQuery(dsn, "_foreign_keys=1&_busy_timeout=5000&_journal_mode=WAL"))
}

func init() {
	registerDialect(openSQLite, configs.SQLite)
}
