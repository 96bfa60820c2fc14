package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fpshield/config"
	"fpshield/core"
	"fpshield/database"
	"fpshield/logger"
)

var (
	cfgFile          string
	dbPath           string
	appLogPathFlag   string
	proxyLogPathFlag string
	logLevelFlag     string
)

func expandTildeCmd(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

var rootCmd = &cobra.Command{
	Use:   "fpshield",
	Short: "Orchestrator daemon for the fingerprint-protection extension",
	Long: `fpshield is the long-lived orchestrator behind the browser extension's
fingerprinting protections. It owns the authoritative configuration, the
challenge-bypass state machine and the per-tab feature ledger, serves the
message API the page and UI contexts talk to, and runs the forward proxy
that enforces the allowlist-aware egress policy.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(cfgFile, appLogPathFlag, proxyLogPathFlag, logLevelFlag); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		finalDBPath := dbPath
		if finalDBPath == "" {
			finalDBPath = config.AppConfig.Database.Path
		}
		expandedPath, err := expandTildeCmd(finalDBPath)
		if err != nil {
			logger.Error("Error expanding tilde in database path '%s': %v. Using original.", finalDBPath, err)
		} else {
			finalDBPath = expandedPath
		}
		if finalDBPath == "" {
			logger.Error("Database path is empty after checking flag and config! Falling back to 'fpshield.db' in CWD.")
			finalDBPath = "fpshield.db"
		}

		if err := database.InitDB(finalDBPath); err != nil {
			return fmt.Errorf("failed to initialize database at %s: %w", finalDBPath, err)
		}

		isSuppressedCmd := cmd.Name() == "completion" ||
			cmd.Name() == cobra.ShellCompRequestCmd ||
			cmd.Name() == cobra.ShellCompNoDescRequestCmd ||
			cmd.Name() == "start"
		if !isSuppressedCmd {
			logger.Info("Database initialized at: %s", finalDBPath)
		}
		return nil
	},
}

// newState assembles the orchestrator from the bootstrap config. Shared by
// the server, proxy and start commands.
func newState() *core.State {
	return core.NewState(database.ConfigStore{}, core.StateOptions{
		BypassTTL:     time.Duration(config.AppConfig.Bypass.TTLSeconds) * time.Second,
		ReloadDelay:   time.Duration(config.AppConfig.Bypass.ReloadDelayMS) * time.Millisecond,
		RefreshTTL:    time.Duration(config.AppConfig.Cache.RefreshTTLSeconds) * time.Second,
		GeoPrimaryURL: config.AppConfig.Geo.PrimaryURL,
		GeoSecondary:  config.AppConfig.Geo.SecondaryURL,
		GeoTimeout:    time.Duration(config.AppConfig.Geo.TimeoutSeconds) * time.Second,
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/fpshield/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "dbpath", "", "path to SQLite database file (overrides config/default)")
	rootCmd.PersistentFlags().StringVar(&appLogPathFlag, "app-log", "", "path for the application log file (overrides config/default)")
	rootCmd.PersistentFlags().StringVar(&proxyLogPathFlag, "proxy-log", "", "path for the proxy log file (overrides config/default)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: DEBUG, INFO, ERROR (overrides config/default)")
}
