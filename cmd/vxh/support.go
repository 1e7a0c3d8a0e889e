package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vxkit/vxh/internal/vxrail"
)

var supportCmd = &cobra.Command{
	Use:   "support",
	Short: "Show the support account status",
	RunE:  runSupport,
}

func init() {
	rootCmd.AddCommand(supportCmd)
}

func runSupport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := mustLoadConfig(cmd)
	logger := newLogger(cfg)
	defer logger.Sync()

	client := mustConnect(ctx, cfg, logger, nil)

	var account vxrail.SupportAccount
	if err := client.GetJSON(ctx, vxrail.PathSupportAccount, &account); err != nil {
		if vxrail.IsNotFound(err) {
			exitWithError(ExitError, "no support account endpoint on this VxRail Manager version")
		}
		exitOnError(fmt.Errorf("fetching support account: %w", err))
	}

	output(account, func() {
		outputHuman("Support account: %s\n", orNA(account.Username))
		outputHuman("Status:          %s\n", orNA(account.Status))
	})
	return nil
}
