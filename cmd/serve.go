package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/estimate-insight/internal/logging"
	"github.com/KaramelBytes/estimate-insight/internal/server"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

var (
	serveAddr     string
	serveProvider string
	serveModel    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI and JSON API",
	Long:  `Serves the upload form at / and the JSON API under /api. Prometheus metrics are exposed at /metrics.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		if debug {
			level = slog.LevelDebug
		}
		log := logging.New(logging.Config{Level: level, Format: cfg.LogFormat, Writer: os.Stderr})
		logger = log

		policy, err := variance.ParseDuplicatePolicy(cfg.DuplicatePolicy)
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		a, err := newAnalyzer(store, serveProvider, serveModel)
		if err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.ServerAddr
		}
		srv, err := server.New(server.Options{
			Addr:           addr,
			Version:        version,
			MaxUploadBytes: cfg.MaxUploadBytes(),
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
			Duplicates:     policy,
			StrictNumbers:  cfg.StrictNumbers,
			Analyzer:       a,
			Store:          store,
			Logger:         log,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Listening on %s (memory: %s)\n", addr, cfg.MemoryBackend)
		return srv.ListenAndServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config server_addr)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "narrative provider (default from config)")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "narrative model (default from config)")
}
