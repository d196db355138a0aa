package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ppiankov/intake/internal/worker"
)

var batchTimeout time.Duration

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Assess many clients from a YAML or JSON file in parallel",
	Long: `Batch runs a complete intake for every client in a file:
- Each client gets its own session
- Clients are processed in parallel with a configurable worker count
- Each client is either a preset key or the five answers

File format (YAML; JSON with the same keys also works):
  - preset: test_client_1
  - id: walk-in-7
    name: Sarah Wilson
    age: 67
    medicaid_status: yes
    disability_type: ""
    housing_status: at risk

Example:
  intake batch clients.yaml
  intake batch clients.yaml --workers 8 --notify log`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindDispatchFlags(cmd, args); err != nil {
			return err
		}
		return bindFlags(cmd, map[string]string{"batch.workers": "workers"})
	},
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("workers", 0, "number of concurrent workers (overrides batch.workers)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	addDispatchFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	a, err := loadApp()
	if err != nil {
		return err
	}

	workers := a.cfg.Batch.Workers
	if workers <= 0 {
		workers = 1
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  SHS Intake Batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", a.cfg.Report.OutputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(a.newSurface, workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	printBatchResults(cmd.OutOrStdout(), results)
	return nil
}

// batchSummary counts batch outcomes
type batchSummary struct {
	Total      int
	Eligible   int
	Ineligible int
	Incomplete int
	Failed     int
}

// printBatchResults prints one line per client and the totals
func printBatchResults(out io.Writer, results []*worker.IntakeResult) batchSummary {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	sum := batchSummary{Total: len(results)}
	for _, res := range results {
		label := res.Entry.Label()
		switch {
		case res.Assessed() && res.Error != nil:
			// Assessed, but the report could not be generated
			sum.Failed++
			_, _ = red.Fprintf(out, "✗ %s: score %d, %v\n", label, *res.Record.EligibilityScore, res.Error)
		case res.Error != nil:
			sum.Failed++
			_, _ = red.Fprintf(out, "✗ %s: %v\n", label, res.Error)
		case !res.Assessed():
			sum.Incomplete++
			_, _ = yellow.Fprintf(out, "? %s: %s\n", label, lastRejection(res))
		case *res.Record.Eligible:
			sum.Eligible++
			_, _ = green.Fprintf(out, "✓ %s: eligible (score %d)\n", label, *res.Record.EligibilityScore)
		default:
			sum.Ineligible++
			fmt.Fprintf(out, "- %s: not eligible (score %d)\n", label, *res.Record.EligibilityScore)
		}
	}

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "  Total:       %d clients\n", sum.Total)
	fmt.Fprintf(out, "  Eligible:    %d\n", sum.Eligible)
	fmt.Fprintf(out, "  Ineligible:  %d\n", sum.Ineligible)
	fmt.Fprintf(out, "  Incomplete:  %d\n", sum.Incomplete)
	fmt.Fprintf(out, "  Failures:    %d\n", sum.Failed)
	fmt.Fprintf(out, "\n")

	return sum
}

// lastRejection returns the validation prompt that kept an entry incomplete
func lastRejection(res *worker.IntakeResult) string {
	for i := len(res.Replies) - 1; i >= 0; i-- {
		if r := res.Replies[i]; strings.HasPrefix(r, "Please ") {
			return r
		}
	}
	return res.Assessment
}
