package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/papervault/pkg/cache"
	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/service"
	kv "github.com/yeisme/papervault/pkg/internal/storage/kv"
)

var kvCmd = &cobra.Command{
	Use:     "kv",
	Short:   "Inspect the search cache backend",
	Aliases: []string{"cache"},
}

var kvTypesCmd = &cobra.Command{
	Use:     "types",
	Short:   "List compiled-in kv backends",
	Aliases: []string{"list", "ls"},
	Run: func(cmd *cobra.Command, _ []string) {
		current := configs.GetConfig().KV.GetKVType()

		for _, t := range kv.GetRegisteredKVTypes() {
			mark := " "
			if string(t) == current {
				mark = "*"
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, t)
		}
	},
}

var kvStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the search cache generation and key count",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(cmd, func(client *kv.Client, c *cache.Cache, prefix string) error {
			gen, err := c.Generation(cmd.Context(), service.SearchCacheNamespace)
			if err != nil {
				return fmt.Errorf("read generation: %w", err)
			}

			keys, err := client.Keys(cmd.Context(), prefix+"*")
			if err != nil {
				return fmt.Errorf("scan keys: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "backend:    %s\n", client.Type())
			fmt.Fprintf(w, "prefix:     %s\n", prefix)
			fmt.Fprintf(w, "generation: %d\n", gen)
			fmt.Fprintf(w, "keys:       %d\n", len(keys))

			return nil
		})
	},
}

var kvClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached search result under the configured prefix",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(cmd, func(client *kv.Client, c *cache.Cache, _ string) error {
			if err := c.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear search cache: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "search cache cleared on %s\n", client.Type())

			return nil
		})
	},
}

// withCache 按当前配置连接 KV 并在 fn 返回后关闭.
func withCache(cmd *cobra.Command, fn func(*kv.Client, *cache.Cache, string) error) error {
	cfg := configs.GetConfig().KV

	client, err := kv.New(cmd.Context(), &cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(client, cache.New(client, cfg.Prefix), cfg.Prefix)
}

func registerKVCommands() {
	kvClearCmd.Aliases = []string{"clear-cache"}

	kvCmd.AddCommand(kvTypesCmd, kvStatsCmd, kvClearCmd)
	rootCmd.AddCommand(kvCmd)
}
