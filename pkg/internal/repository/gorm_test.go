package repository

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/yeisme/papervault/pkg/internal/model"
)

func filterSQL(t *testing.T, dialector gorm.Dialector, f model.Filter) string {
	t.Helper()

	db, err := gorm.Open(dialector, &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	r := NewGormRepository(db)

	return db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return r.applyFilter(tx.Model(&model.Paper{}), f).Find(&[]model.Paper{})
	})
}

func TestMemberFilterIsBinaryOnMySQL(t *testing.T) {
	my := mysql.New(mysql.Config{DSN: "papervault:secret@tcp(127.0.0.1:3306)/papervault", SkipInitializeWithVersion: true})

	got := filterSQL(t, my, model.Filter{Text: "Ada", Scope: model.ScopeAuthors})
	assert.Contains(t, got, "BINARY pa.name = 'Ada'")

	got = filterSQL(t, my, model.Filter{Text: "GAN", Scope: model.ScopeKeywords})
	assert.Contains(t, got, "BINARY pk.value = 'GAN'")

	got = filterSQL(t, my, model.Filter{Text: "Ada", Scope: model.ScopeAll})
	assert.Contains(t, got, "BINARY pa.name = 'Ada'")
	assert.Contains(t, got, "BINARY pk.value = 'Ada'")
}

func TestMemberFilterOnSQLite(t *testing.T) {
	got := filterSQL(t, sqlite.Open("file:member_filter?mode=memory"), model.Filter{Text: "Ada", Scope: model.ScopeAll})

	assert.Contains(t, got, "pa.name = ")
	assert.NotContains(t, got, "BINARY")
}
