package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/papervault/pkg/app"
	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/storage"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "remove stored objects that no paper references",
	Long: "Scan the object store prefix once and delete objects older than paper.reconcile_grace\n" +
		"that no paper record references. The same pass runs on the server's cron schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.GetConfig()

		mgr, err := storage.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer mgr.Close()

		report, err := app.NewPaperService(mgr, cfg).Reconcile(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "scanned %d objects, %d past the grace period\n", report.Scanned, report.Candidates)

		for _, key := range report.Removed {
			fmt.Fprintln(out, "   removed "+key)
		}

		for _, key := range report.Failed {
			fmt.Fprintln(out, "   failed  "+key)
		}

		if len(report.Failed) > 0 {
			return fmt.Errorf("%d objects could not be removed", len(report.Failed))
		}

		return nil
	},
}

// registerReconcileCommands 注册 reconcile 命令.
func registerReconcileCommands() {
	rootCmd.AddCommand(reconcileCmd)
}
