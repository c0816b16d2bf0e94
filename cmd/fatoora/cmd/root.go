package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/config"
	"github.com/rezonia/fatoora/internal/emitter"
	"github.com/rezonia/fatoora/internal/ledger"
	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/signing"
	"github.com/rezonia/fatoora/internal/submit"
)

var (
	version = "1.0.0"

	// Global flags
	verbose  bool
	fakeSign bool
)

var rootCmd = &cobra.Command{
	Use:   "fatoora",
	Short: "Emit compliant simplified tax invoices (QR, XML, hash chain, submission)",
	Long: `Fatoora emits government-compliant simplified tax invoices from
completed sales: TLV QR payload, canonical signed XML, hash-chain
linkage and authority submission.

Configuration is read from FATOORA_* environment variables (a .env
file in the working directory is honored). See each command's help
for its inputs.

Examples:
  # Emit an invoice from a sale file
  fatoora emit sale.json --tenant shop-1 --unit pos-7

  # Encode and render a QR payload
  fatoora qr encode --seller "Acme" --vat 300000000000003 \
    --timestamp 2026-08-30T10:00:00Z --total 57.50 --tax 7.50

  # Validate an invoice document
  fatoora validate invoice.xml

  # Start the HTTP API
  fatoora serve --address :8080`,
	Version: version,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&fakeSign, "fake-sign", false,
		"Use the deterministic test signer (sandbox only)")
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// buildEmitter wires the pipeline from the resolved configuration
func buildEmitter(ctx context.Context, cfg *config.Config, log *logger.Logger) (*emitter.Emitter, func(), error) {
	var led ledger.Ledger
	cleanup := func() {}
	if cfg.PostgresDSN != "" {
		pg, err := ledger.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect sequence store: %w", err)
		}
		led = pg
		cleanup = pg.Close
	} else {
		led = ledger.NewMemoryLedger()
		printVerbose("using in-memory sequence ledger\n")
	}

	signer, err := buildSigner(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	client := submit.NewClient(cfg.BaseURL,
		append(cfg.SubmitOptions(), submit.WithLogger(log))...)

	return emitter.New(led, signer, client, emitter.WithLogger(log)), cleanup, nil
}

func buildSigner(cfg *config.Config) (signing.Signer, error) {
	if fakeSign {
		if cfg.Environment == submit.EnvProduction {
			return nil, fmt.Errorf("--fake-sign is not allowed against the production authority")
		}
		return signing.NewFakeSigner(), nil
	}
	if cfg.CertPath == "" || cfg.KeyPath == "" {
		return nil, fmt.Errorf("signing certificate not configured (FATOORA_CERT_PATH, FATOORA_KEY_PATH)")
	}
	ks, err := signing.LoadKeyStore(cfg.CertPath, cfg.KeyPath, signing.WithPassword(cfg.KeyPassword))
	if err != nil {
		return nil, err
	}
	return signing.NewXAdESSigner(ks), nil
}
