package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vxkit/vxh/internal/inventory"
	"github.com/vxkit/vxh/internal/sink"
)

var inventoryNoSave bool

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Collect the hardware inventory",
	Long: `Collect hosts, chassis and disks from VxRail Manager and save them as
vxrail_inventory_YYYYMMDD_HHMMSS.json in output_dir. Payloads are saved as
returned. --human lists every host and chassis, then a summary of disk types
and raw capacity.`,
	RunE: runInventory,
}

func init() {
	inventoryCmd.Flags().BoolVar(&inventoryNoSave, "no-save", false, "Print only, do not write the inventory file")
	rootCmd.AddCommand(inventoryCmd)
}

// InventoryResponse is the JSON output of the inventory command.
type InventoryResponse struct {
	Path    string            `json:"path,omitempty"`
	Summary inventory.Summary `json:"summary"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func runInventory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := mustLoadConfig(cmd)
	logger := newLogger(cfg)
	defer logger.Sync()

	client := mustConnect(ctx, cfg, logger, nil)

	inv, err := inventory.NewCollector(client, logger).Collect(ctx, client.Host())
	if err != nil {
		exitOnError(err)
	}

	resp := InventoryResponse{Summary: inv.Summary, Errors: inv.Errors}
	if !inventoryNoSave {
		path, err := sink.WriteJSONFile(cfg.OutputDir, inventory.FilePrefix, inv.CollectedAt, inv)
		if err != nil {
			exitWithError(ExitError, "saving inventory: %v", err)
		}
		resp.Path = path
	}

	output(resp, func() {
		fmt.Print(inventory.Format(inv))
		if resp.Path != "" {
			outputHuman("\nInventory saved to %s\n", resp.Path)
		}
	})
	return nil
}
