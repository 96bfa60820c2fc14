package cmd

import (
	"github.com/spf13/cobra"

	"fpshield/config"
	"fpshield/core"
	"fpshield/logger"
)

var standaloneProxyPort string

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Manages the egress proxy (can be run standalone or as part of 'start')",
}

var proxyStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the egress proxy",
	Long: `Starts the forward proxy that enforces the allowlist-aware egress policy.
Point the browser (or the extension's proxy setting) at it; per-destination
routing, allowlist bypassing and the User-Agent rewrite follow the saved
configuration.`,
	Run: func(cmd *cobra.Command, args []string) {
		portToUse := standaloneProxyPort
		if !cmd.Flags().Changed("port") {
			portToUse = config.AppConfig.Proxy.Port
			logger.Debug("Using proxy port from config: %s", portToUse)
		}
		if portToUse == "" {
			portToUse = "8779"
		}

		st := newState()
		if err := st.Hub.Refresh(); err != nil {
			logger.ProxyError("Proxy Command: initial config load failed, applying defaults: %v", err)
		}
		cfg := st.Config()
		st.Egress.Apply(cfg, core.ComputeEgressMode(&cfg))

		logger.ProxyInfo("Attempting to start egress proxy on port %s...", portToUse)
		if err := st.Egress.Start(portToUse); err != nil {
			logger.ProxyError("Error starting proxy: %v", err)
		}
	},
}

func init() {
	proxyStartCmd.Flags().StringVarP(&standaloneProxyPort, "port", "p", "8779", "Port for the egress proxy to listen on (overrides config)")
	proxyCmd.AddCommand(proxyStartCmd)
	rootCmd.AddCommand(proxyCmd)
}
