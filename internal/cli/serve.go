package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crimestats/internal/dashboard"
	"github.com/ppiankov/crimestats/internal/model"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve combined data through the dashboard API",
	Long: `Serve loads the combined city,year,count files and exposes filter and
aggregate endpoints:
  GET /healthz
  GET /api/options
  GET /api/metrics      ?city=&type=&from=&to=
  GET /api/trend
  GET /api/composition
  GET /api/heatmap
  GET /api/records

city and type accept several values separated by ";" or "|".

Example:
  crimestats combine && crimestats serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Dashboard.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := dashboard.Load(ctx, cfg.CombinedPath(), cfg.Dashboard.Files)
	if err != nil {
		return fmt.Errorf("load combined data: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d records from %s\n", len(data.Records), cfg.CombinedPath())
	fmt.Fprintf(os.Stderr, "  Listening on %s\n\n", cfg.Dashboard.Addr)

	shutdown := model.DurationOr(cfg.Dashboard.ShutdownTimeout, 10*time.Second)
	return dashboard.NewServer(data).Run(ctx, cfg.Dashboard.Addr, shutdown)
}
