//go:build !no_mysql

package db

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/yeisme/papervault/pkg/configs"
)

// paperStringSize 未指定长度的字符串列宽度，需容纳最长标题.
const paperStringSize = 512

func openMySQL(dsn string) gorm.Dialector {
	return mysql.New(mysql.Config{
		DSN:               dsn,
		DefaultStringSize: paperStringSize,
	})
}

func init() {
	registerDialect(openMySQL, configs.MySQL, configs.MariaDB)
}
