package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/markup/internal/services"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the development server with live reload",
	Long: `Start the development server. Pages are rendered on request, static
files are served with content hashes, and the browser reloads whenever a
template, the data file or a static file changes.

Examples:
  markup serve                     # Serve on localhost:8080
  markup serve -p 3000             # Serve on another port
  markup serve --live-reload=false # Serve without reloading the browser`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("live-reload", true, "Reload the browser when files change")
	serveCmd.Flags().Bool("gzip", true, "Compress responses")

	bindFlags(serveCmd.Flags(), map[string]string{
		"port":        "server.port",
		"host":        "server.host",
		"live-reload": "development.live_reload",
		"gzip":        "server.gzip",
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	return services.NewServeService(cfg, logger).Serve(cmd.Context())
}
