package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/tagdoc/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the preview server with live reload",
	Long: `Serve templates over HTTP and notify browsers when they change.

Routes:
  GET /render/<vendor>/<path>/<name>?ph.<placeholder>=<value>
  GET /ws        live reload notifications
  GET /healthz   health and cache statistics

Examples:
  tagdoc serve
  tagdoc serve --port 3000 --no-watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("no-watch", false, "Disable live reload")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, eng, err := setup(cmd)
	if err != nil {
		return err
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		cfg.Watch.Enabled = false
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, eng, server.WithLogger(logger))
	logger.Info(ctx, "Starting preview server", "address", cfg.Address(), "watch", cfg.Watch.Enabled)
	return srv.Start(ctx)
}
