package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/papervault/pkg/app"
	"github.com/yeisme/papervault/pkg/configs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the http server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd)
	},
}

func serve(cmd *cobra.Command) error {
	a, err := app.NewApp(cmd.Context(), configs.GetConfig())
	if err != nil {
		return err
	}

	return a.Run()
}

// registerServeCommands 注册 serve 命令.
func registerServeCommands() {
	rootCmd.AddCommand(serveCmd)
}
