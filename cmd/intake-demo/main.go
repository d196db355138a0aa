// Demo program that runs the built-in presets through a full intake.
// Reports are written to a temporary directory and notifications are
// logged instead of emailed, so no SMTP credentials are needed.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/dispatch"
	"github.com/ppiankov/intake/internal/intake"
	"github.com/ppiankov/intake/internal/notify"
	"github.com/ppiankov/intake/internal/report"
	"github.com/ppiankov/intake/internal/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("=== SHS Intake Demo ===")
	fmt.Println()

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	outDir, err := os.MkdirTemp("", "intake-demo-")
	if err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	generator, err := report.NewGenerator(outDir, report.FormatHTML)
	if err != nil {
		return err
	}
	dispatcher := dispatch.NewDispatcher(generator, notify.NewLogNotifier(logger), 10*time.Second, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	presets := intake.NewPresetBook()
	for _, key := range presets.Keys() {
		fmt.Printf("Client: %s\n", key)
		fmt.Println(strings.Repeat("-", 60))

		surface := tools.NewSurface(intake.NewSession(intake.WithPresets(presets)), nil, dispatcher, logger)
		for _, op := range []struct {
			op  tools.Operation
			arg string
		}{
			{tools.OpLoadPreset, key},
			{tools.OpAssess, ""},
			// A second assess shows the report is not sent twice
			{tools.OpAssess, ""},
		} {
			reply, err := surface.Invoke(ctx, op.op, op.arg)
			fmt.Printf("> %s %s\n%s\n", op.op, op.arg, reply)
			if err != nil {
				fmt.Printf("  error: %v\n", err)
			}
			fmt.Println()
		}
	}

	fmt.Println("=== Demo Complete ===")
	fmt.Printf("\nReports written to %s\n", outDir)
	return nil
}
