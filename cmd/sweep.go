package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// sweepCmd 执行一次过期清理,用于外部定时任务
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Release stale claims and expire overdue tasks once",
	Long: `Run a single sweep over the ledger:
- Release claims whose claim window has passed
- Expire active tasks whose deadline has passed and refund the unused escrow

Useful when the sweeper is driven by an external scheduler such as cron.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctr, err := openContainer(cmd)
		if err != nil {
			return err
		}
		defer ctr.Close()

		result, err := ctr.Sweeper().RunOnce(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		// 把清理产生的事件一并投递
		if _, err := ctr.Dispatcher().DispatchPending(cmd.Context()); err != nil {
			ctr.Logger().WithError(err).Warn("Failed to dispatch events")
		}

		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
