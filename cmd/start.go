package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fpshield/config"
	"fpshield/core"
	"fpshield/logger"
)

var (
	startServerPort string
	startProxyPort  string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts all fpshield services (API server and egress proxy)",
	Long: `Starts both the message API server and the egress proxy concurrently.
Press Ctrl+C to gracefully shut down all services.`,
	Run: func(cmd *cobra.Command, args []string) {
		actualServerPort := startServerPort
		if !cmd.Flags().Changed("server-port") {
			actualServerPort = config.AppConfig.Server.Port
		}
		if actualServerPort == "" {
			actualServerPort = "8780"
		}

		actualProxyPort := startProxyPort
		if !cmd.Flags().Changed("proxy-port") {
			actualProxyPort = config.AppConfig.Proxy.Port
		}
		if actualProxyPort == "" {
			actualProxyPort = "8779"
		}

		logger.Info("Start Command: ports determined - Server: %s, Proxy: %s", actualServerPort, actualProxyPort)

		st := newState()
		if err := st.Hub.Refresh(); err != nil {
			logger.Error("Start Command: initial config load failed, serving defaults: %v", err)
		}
		cfg := st.Config()
		st.Egress.Apply(cfg, core.ComputeEgressMode(&cfg))

		var wg sync.WaitGroup
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		wg.Add(1)
		go func(parentCtx context.Context) {
			defer wg.Done()

			server := &http.Server{
				Addr:    ":" + actualServerPort,
				Handler: buildServerMux(st),
			}

			go func() {
				<-parentCtx.Done()
				logger.Info("Start Command Goroutine(API): Shutdown signal received...")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("Start Command Goroutine(API): Graceful shutdown failed: %v", err)
				} else {
					logger.Info("Start Command Goroutine(API): Gracefully stopped.")
				}
			}()

			logger.Info("Start Command Goroutine(API): Listening on :%s", actualServerPort)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Start Command Goroutine(API): ListenAndServe error: %v", err)
				cancel()
			}
		}(ctx)

		wg.Add(1)
		go func(parentCtx context.Context) {
			defer wg.Done()
			logger.ProxyInfo("Start Command Goroutine(Proxy): Starting egress proxy on port %s...", actualProxyPort)

			proxyErrChan := make(chan error, 1)
			go func() {
				proxyErrChan <- st.Egress.Start(actualProxyPort)
			}()

			select {
			case err := <-proxyErrChan:
				if err != nil && err != http.ErrServerClosed {
					logger.ProxyError("Start Command Goroutine(Proxy): proxy exited: %v", err)
					cancel()
				}
			case <-parentCtx.Done():
				logger.ProxyInfo("Start Command Goroutine(Proxy): Shutdown signal received...")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := st.Egress.Shutdown(shutdownCtx); err != nil {
					logger.ProxyError("Start Command Goroutine(Proxy): Graceful shutdown failed: %v", err)
				} else {
					logger.ProxyInfo("Start Command Goroutine(Proxy): Gracefully stopped.")
				}
			}
			logger.ProxyInfo("Start Command Goroutine(Proxy): Finished.")
		}(ctx)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			logger.Info("Start Command: Received signal %v, shutting down...", sig)
		case <-ctx.Done():
			logger.Info("Start Command: Context cancelled (likely due to a service error). Initiating shutdown...")
		}
		cancel()

		shutdownComplete := make(chan struct{})
		go func() {
			wg.Wait()
			close(shutdownComplete)
		}()
		select {
		case <-shutdownComplete:
			logger.Info("Start Command: All services stopped.")
		case <-time.After(10 * time.Second):
			logger.Error("Start Command: Shutdown timed out. Forcing exit.")
		}
	},
}

func init() {
	startCmd.Flags().StringVar(&startServerPort, "server-port", "8780", "Port for the API server")
	startCmd.Flags().StringVar(&startProxyPort, "proxy-port", "8779", "Port for the egress proxy")
	rootCmd.AddCommand(startCmd)
}
