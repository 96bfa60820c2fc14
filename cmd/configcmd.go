package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fpshield/database"
	"fpshield/logger"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspects or resets the stored protection configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the stored protection configuration as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := database.ConfigStore{}.LoadConfig()
		if err != nil {
			logger.Error("Config Show: failed to load configuration: %v", err)
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Resets the protection configuration to the shipped defaults",
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := database.ResetConfig(); err != nil {
			logger.Error("Config Reset: failed: %v", err)
			fmt.Fprintf(os.Stderr, "Error resetting configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration reset to defaults.")
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configResetCmd)
	rootCmd.AddCommand(configCmd)
}
