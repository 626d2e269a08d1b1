package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/storage/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the paper metadata database",
}

var dbTypesCmd = &cobra.Command{
	Use:     "types",
	Short:   "List compiled-in database drivers",
	Aliases: []string{"list", "ls"},
	Run: func(cmd *cobra.Command, _ []string) {
		current := configs.GetConfig().DB.Type

		for _, t := range db.GetRegisteredDBTypes() {
			mark := " "
			if t == current {
				mark = "*"
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, t)
		}
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the paper tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd.Context(), func(client *db.Client, cfg configs.DBConfig) error {
			if err := client.Migrate(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database %q\n", cfg.GetDBType(), cfg.Database)

			return nil
		})
	},
}

var dbPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the database is reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd.Context(), func(client *db.Client, cfg configs.DBConfig) error {
			start := time.Now()
			if err := client.HealthCheck(cmd.Context()); err != nil {
				return fmt.Errorf("ping %s: %w", cfg.GetDBType(), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s ok (%s)\n", cfg.GetDBType(), time.Since(start).Round(time.Millisecond))

			return nil
		})
	},
}

// withDB 打开数据库但不自动迁移，fn 返回后关闭连接.
func withDB(ctx context.Context, fn func(*db.Client, configs.DBConfig) error) error {
	cfg := configs.GetConfig().DB
	cfg.AutoMigrate = false

	client, err := db.New(ctx, &cfg, false)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(client, cfg)
}

func registerDBCommands() {
	dbCmd.AddCommand(dbTypesCmd, dbMigrateCmd, dbPingCmd)
	rootCmd.AddCommand(dbCmd)
}
