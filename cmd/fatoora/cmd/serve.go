package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/config"
	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/server"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for emitting invoices.

The API provides endpoints for:
  - POST /api/v1/invoices          - Emit and submit an invoice
  - POST /api/v1/invoices/preview  - Draft without signing or submitting
  - POST /api/v1/validate          - Run the document structure gate
  - POST /api/v1/qr                - Build a TLV payload from fields
  - POST /api/v1/qr/decode         - Decode a TLV payload
  - GET  /api/v1/sequences/:tenant/:unit - Committed chain state
  - GET  /health                   - Health check`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (default from config)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 5*time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	em, cleanup, err := buildEmitter(ctx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	defer cleanup()

	address := serverAddr
	if address == "" {
		address = cfg.ListenAddress
	}

	srv := server.NewServer(&server.Config{
		Address:      address,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug,
	}, em, log)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		cleanup()
		os.Exit(0)
	}()

	log.Infow("starting server", "address", address, "environment", cfg.Environment)
	return srv.Run()
}
