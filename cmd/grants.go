package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/mautops/bounty-gin/internal/authz"
	"github.com/mautops/bounty-gin/internal/container"
	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/spf13/cobra"
)

// grantsCmd 管理组件间授权
var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "Manage component authorization grants",
}

var grantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List current grants",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctr, err := openContainer(cmd)
		if err != nil {
			return err
		}
		defer ctr.Close()

		grants, err := ctr.System().Grants(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CALLER\tOPERATION\tGRANTED BY")
		for _, g := range grants {
			fmt.Fprintf(w, "%s\t%s\t%s\n", g.Caller, g.Operation, g.GrantedBy)
		}
		return w.Flush()
	},
}

var grantsApplyCmd = &cobra.Command{
	Use:   "apply <policy.yaml>",
	Short: "Apply grants from a YAML policy file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := authz.LoadPolicy(args[0])
		if err != nil {
			return err
		}

		ctr, err := openContainer(cmd)
		if err != nil {
			return err
		}
		defer ctr.Close()

		system := ctr.System()
		applied, err := system.ApplyPolicy(cmd.Context(), system.Params.Owner, policy)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d grants\n", applied)
		return nil
	},
}

var grantsDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the default component policy as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := ledger.DefaultPolicy().Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// openContainer 加载配置并创建容器,不启动后台任务
func openContainer(cmd *cobra.Command) (*container.Container, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	ctr, err := container.NewContainer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}
	return ctr, nil
}

func init() {
	grantsCmd.AddCommand(grantsListCmd, grantsApplyCmd, grantsDefaultsCmd)
	rootCmd.AddCommand(grantsCmd)
}
