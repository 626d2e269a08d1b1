//go:build !no_sqlite && !cgo

package db

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/papervault/pkg/configs"
)

// openSQLite 使用纯 Go 驱动，PRAGMA 通过 _pragma 参数传入.
func openSQLite(dsn string) gorm.Dialector {
	return sqlite.Open(appendQuery(dsn, "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"))
}

func init() {
	registerDialect(openSQLite, configs.SQLite)
}
