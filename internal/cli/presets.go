package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/intake/internal/intake"
)

// presetsCmd represents the presets command
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List pre-built test clients",
	Long: `List the pre-built clients that load-preset and --preset accept,
including any defined in intake.presets_file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		book := intake.NewPresetBook()
		if cfg.Intake.PresetsFile != "" {
			if err := book.LoadFile(cfg.Intake.PresetsFile); err != nil {
				return fmt.Errorf("load presets: %w", err)
			}
		}

		printPresets(cmd.OutOrStdout(), book)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}

func printPresets(out io.Writer, book *intake.PresetBook) {
	bold := color.New(color.Bold)
	for _, p := range book.All() {
		_, _ = bold.Fprintf(out, "%s\n", p.Key)
		medicaid := "No"
		if p.MedicaidStatus {
			medicaid = "Yes"
		}
		disability := p.DisabilityType
		if disability == "" {
			disability = "None"
		}
		fmt.Fprintf(out, "  %s, %d, Medicaid: %s, Disability: %s, Housing: %s\n",
			p.Name, p.Age, medicaid, disability, p.HousingStatus)
		if p.Description != "" {
			fmt.Fprintf(out, "  %s\n", p.Description)
		}
	}
}
