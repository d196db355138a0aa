package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intake/internal/worker"
)

// ErrIncomplete is returned when one-shot answers are missing or rejected
var ErrIncomplete = errors.New("intake incomplete")

var assessEntry worker.ClientEntry

// assessCmd represents the assess command
var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess one client from flags or a preset",
	Long: `Assess runs a complete intake for one client without an interview.
Answers go through the same validation as in chat; the first assessment
generates the report and emails it to staff.

Example:
  intake assess --preset test_client_1
  intake assess --name "Sarah Wilson" --age 67 --medicaid yes --housing "at risk"
  intake assess --preset test_client_2 --notify log --output-dir ./reports`,
	Args:    cobra.NoArgs,
	PreRunE: bindDispatchFlags,
	RunE:    runAssess,
}

func init() {
	rootCmd.AddCommand(assessCmd)

	assessCmd.Flags().StringVar(&assessEntry.Preset, "preset", "", "pre-built client key (see 'intake presets')")
	assessCmd.Flags().StringVar(&assessEntry.Name, "name", "", "client's full name")
	assessCmd.Flags().StringVar(&assessEntry.Age, "age", "", "client's age")
	assessCmd.Flags().StringVar(&assessEntry.MedicaidStatus, "medicaid", "", "has Medicaid (yes/no)")
	assessCmd.Flags().StringVar(&assessEntry.DisabilityType, "disability", "", "disability type (empty for none)")
	assessCmd.Flags().StringVar(&assessEntry.HousingStatus, "housing", "", "current housing status")
	assessCmd.MarkFlagsMutuallyExclusive("preset", "name")

	addDispatchFlags(assessCmd)
}

func runAssess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}

	processor := worker.NewBatchProcessor(a.newSurface, 1)
	results := processor.ProcessEntries(ctx, []worker.ClientEntry{assessEntry})
	if len(results) == 0 {
		return worker.ErrNotRun
	}
	return printAssessResult(cmd.OutOrStdout(), results[0])
}

// printAssessResult prints the replies of a one-shot intake and maps its
// outcome to the command error
func printAssessResult(out io.Writer, res *worker.IntakeResult) error {
	for _, reply := range res.Replies {
		fmt.Fprintln(out, reply)
	}
	if res.Assessment != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, res.Assessment)
	}

	if err := res.GetError(); err != nil {
		return err
	}
	if !res.Assessed() {
		return ErrIncomplete
	}
	return nil
}
