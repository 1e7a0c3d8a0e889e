package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vxkit/vxh/internal/vxrail"
)

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Show VxRail system information",
	Long:  `Fetch /v3/system and show version, health, cluster and network details.`,
	RunE:  runSystem,
}

func init() {
	rootCmd.AddCommand(systemCmd)
}

func runSystem(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := mustLoadConfig(cmd)
	logger := newLogger(cfg)
	defer logger.Sync()

	client := mustConnect(ctx, cfg, logger, nil)

	var info vxrail.SystemInfo
	if err := client.GetJSON(ctx, vxrail.PathSystem, &info); err != nil {
		exitOnError(fmt.Errorf("fetching system info: %w", err))
	}

	output(info, func() { printSystemHuman(info) })
	return nil
}

func printSystemHuman(info vxrail.SystemInfo) {
	fmt.Printf("Version:            %s\n", orNA(info.Version))
	fmt.Printf("Health:             %s\n", orNA(info.Health))
	fmt.Printf("Operational status: %s\n", orNA(info.OperationalStatus))
	if c := info.ClusterInfo; c != nil {
		fmt.Printf("Cluster:            %s\n", orNA(c.ClusterName))
		fmt.Printf("Datacenter:         %s\n", orNA(c.DatacenterName))
		fmt.Printf("vCenter version:    %s\n", orNA(c.VCVersion))
	}
	if n := info.Network; n != nil {
		fmt.Printf("Network mode:       %s\n", orNA(n.Mode))
	}
	if len(info.HealthComponents) > 0 {
		fmt.Println("\nComponents:")
		for _, hc := range info.HealthComponents {
			fmt.Printf("  %-24s %s\n", hc.Name, orNA(hc.Health))
		}
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
