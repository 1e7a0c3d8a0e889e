package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vxkit/vxh/internal/config"
	"github.com/vxkit/vxh/internal/health"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set values in the config file (~/.config/vxh/config.yml or --config).
Environment variables and flags are not applied here.

Usage:
  vxh config                         # Show all config
  vxh config host                    # Get specific value
  vxh config host vxm.example.net    # Set value
  vxh config max-wait 15m            # Dashes and underscores both work

The password cannot be stored; use VXRAIL_PASSWORD or the prompt.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		exitWithError(exitCodeFor(err), "loading config: %v", err)
	}

	// No args: show all config
	if len(args) == 0 {
		values := make(map[string]string)
		for _, key := range config.Keys() {
			values[key], _ = cfg.Get(key)
		}
		output(values, func() {
			for _, key := range config.Keys() {
				outputHuman("%-16s %s\n", key+":", values[key])
			}
		})
		return nil
	}

	key := config.NormalizeKey(args[0])

	// One arg: get specific value
	if len(args) == 1 {
		value, err := cfg.Get(key)
		if err != nil {
			exitOnError(err)
		}
		output(map[string]string{key: value}, func() { fmt.Println(value) })
		return nil
	}

	// Two args: set value
	if err := setConfigValue(cfg, key, args[1]); err != nil {
		exitOnError(err)
	}
	if err := cfg.Save(path); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	value, _ := cfg.Get(key)
	output(map[string]string{key: value}, func() {
		outputHuman("%s = %s (saved to %s)\n", key, value, path)
	})
	return nil
}

// setConfigValue sets key and checks that the config is still valid.
func setConfigValue(cfg *config.Config, key, value string) error {
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if key == "kinds" {
		if _, err := health.ParseKinds(cfg.Kinds...); err != nil {
			return err
		}
	}
	return cfg.Validate()
}
