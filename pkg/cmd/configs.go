package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/rule"
)

// redacted 替换敏感字段的占位符.
const redacted = "******"

var showSecrets bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and bootstrap configuration",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	RunE: func(cmd *cobra.Command, _ []string) error {
		v := configs.GetViper()
		if v == nil {
			return errors.New("config not loaded")
		}

		if used := v.ConfigFileUsed(); used != "" {
			fmt.Fprintln(cmd.OutOrStdout(), used)
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), "(none) defaults and PAPERVAULT_* environment only")

		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"debug"},
	Short:   "Print the effective configuration as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if debug {
			if v := configs.GetViper(); v != nil {
				v.Debug()
			}
		}

		out, err := renderConfig(configs.GetConfig(), !showSecrets)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), out)

		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration against its rules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := rule.ValidateStruct(configs.GetConfig()); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "config ok")

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a config file populated with defaults",
	Args:  cobra.MaximumNArgs(1),
	// 不依赖已有配置
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "config.yaml"
		if len(args) == 1 {
			target = args[0]
		}

		if err := configs.WriteDefault(target); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)

		return nil
	},
}

// renderConfig 以缩进 JSON 输出配置，redact 为真时遮盖口令与密钥.
func renderConfig(cfg *configs.AppConfig, redact bool) (string, error) {
	raw, err := sonic.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	var tree map[string]any
	if err := sonic.Unmarshal(raw, &tree); err != nil {
		return "", fmt.Errorf("decode config: %w", err)
	}

	if redact {
		redactTree(tree)
	}

	b, err := sonic.ConfigStd.MarshalIndent(tree, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	return string(b), nil
}

func redactTree(node map[string]any) {
	for k, v := range node {
		switch val := v.(type) {
		case map[string]any:
			redactTree(val)
		case string:
			if val != "" && isSecretKey(k) {
				node[k] = redacted
			}
		}
	}
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)

	return strings.Contains(k, "password") || strings.Contains(k, "secret") || strings.Contains(k, "token")
}

func registerConfigsCommands() {
	configShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print passwords and secret keys verbatim")

	configCmd.AddCommand(configPathCmd, configShowCmd, configValidateCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
