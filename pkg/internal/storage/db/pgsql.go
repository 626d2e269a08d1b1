//go:build !no_postgres

package db

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yeisme/papervault/pkg/configs"
)

// openPostgres 附带 application_name，便于在 pg_stat_activity 中识别连接.
func openPostgres(dsn string) gorm.Dialector {
	return postgres.New(postgres.Config{
		DSN: dsn + " application_name=" + configs.AppName,
	})
}

func init() {
	registerDialect(openPostgres, configs.PostgreSQL, configs.Postgres, configs.Pg)
}
