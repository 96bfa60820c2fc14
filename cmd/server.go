package cmd

import (
	"net/http"

	"github.com/spf13/cobra"

	"fpshield/api"
	"fpshield/core"
	"fpshield/logger"
)

var standaloneServerPort string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the message API server (can be run standalone or as part of 'start')",
	Run: func(cmd *cobra.Command, args []string) {
		portToUse := standaloneServerPort
		if portToUse == "" {
			portToUse = "8780"
		}

		st := newState()
		if err := st.Hub.Refresh(); err != nil {
			logger.Error("Server Command: initial config load failed, serving defaults: %v", err)
		}
		cfg := st.Config()
		st.Egress.Apply(cfg, core.ComputeEgressMode(&cfg))

		mainMux := buildServerMux(st)
		logger.Info("Server Command: Listening on :%s", portToUse)
		if err := http.ListenAndServe(":"+portToUse, mainMux); err != nil {
			logger.Fatal("Could not start server: %v", err)
		}
	},
}

func buildServerMux(st *core.State) *http.ServeMux {
	apiRouter := api.NewRouter(st)
	mainMux := http.NewServeMux()
	mainMux.Handle("/api/", http.StripPrefix("/api", apiRouter))
	mainMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return mainMux
}

func init() {
	serverCmd.Flags().StringVarP(&standaloneServerPort, "port", "p", "8780", "Port for the API server to listen on (if run standalone)")
	rootCmd.AddCommand(serverCmd)
}
