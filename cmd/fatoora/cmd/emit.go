package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/config"
	"github.com/rezonia/fatoora/internal/emitter"
	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/qr"
)

var (
	emitTenant string
	emitUnit   string
	emitOutDir string
)

var emitCmd = &cobra.Command{
	Use:   "emit <sale.json>",
	Short: "Emit an invoice from a sale file and submit it to the authority",
	Long: `Emit reads a sale description (seller, lines, totals) from a JSON
file, runs the full emission pipeline and writes the artifacts next to
the input: <uuid>.xml (final signed document) and <uuid>.png (QR code).

The sale file matches the POST /api/v1/invoices request body. The
tenant and unit flags identify the sequence key; passing a uuid in the
file replays a previously drafted invoice after a transient failure.`,
	Args: cobra.ExactArgs(1),
	RunE: runEmit,
}

func init() {
	rootCmd.AddCommand(emitCmd)

	emitCmd.Flags().StringVar(&emitTenant, "tenant", "", "Tenant identifier (required)")
	emitCmd.Flags().StringVar(&emitUnit, "unit", "", "Emission unit / device identifier (required)")
	emitCmd.Flags().StringVarP(&emitOutDir, "out", "o", "", "Output directory (default: input file directory)")
	_ = emitCmd.MarkFlagRequired("tenant")
	_ = emitCmd.MarkFlagRequired("unit")
}

func runEmit(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read sale file: %w", err)
	}

	var input emitter.Input
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to parse sale file: %w", err)
	}
	input.Key.TenantID = emitTenant
	input.Key.UnitID = emitUnit

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Nop()
	if verbose {
		log = logger.NewDevelopment()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	em, cleanup, err := buildEmitter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	result := em.Emit(ctx, &input)

	outDir := emitOutDir
	if outDir == "" {
		outDir = filepath.Dir(args[0])
	}
	if result.Invoice != nil && len(result.XML) > 0 {
		xmlPath := filepath.Join(outDir, result.Invoice.UUID+".xml")
		if err := os.WriteFile(xmlPath, result.XML, 0o644); err != nil {
			return fmt.Errorf("failed to write invoice XML: %w", err)
		}
		printVerbose("wrote %s\n", xmlPath)

		if result.Invoice.QRPayload != "" {
			if png, err := qr.RenderPNG(result.Invoice.QRPayload, 0); err == nil {
				pngPath := filepath.Join(outDir, result.Invoice.UUID+".png")
				if err := os.WriteFile(pngPath, png, 0o644); err != nil {
					return fmt.Errorf("failed to write QR image: %w", err)
				}
				printVerbose("wrote %s\n", pngPath)
			}
		}
	}

	summary := map[string]interface{}{
		"status": result.Status,
	}
	if result.Invoice != nil {
		summary["uuid"] = result.Invoice.UUID
		summary["counter"] = result.Invoice.CounterValue
	}
	if result.Stage != "" {
		summary["stage"] = result.Stage
	}
	if result.Reason != "" {
		summary["reason"] = result.Reason
	}
	if result.Err != nil {
		summary["error"] = result.Err.Error()
		summary["retryable"] = result.Retryable()
	}
	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if result.Status != emitter.StatusAccepted {
		return fmt.Errorf("emission did not complete: %s", result.Status)
	}
	return nil
}
