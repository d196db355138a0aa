package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/dispatch"
	"github.com/ppiankov/intake/internal/intake"
	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/notify"
	"github.com/ppiankov/intake/internal/report"
	"github.com/ppiankov/intake/internal/tools"
)

// app holds the components shared by every session of one process
type app struct {
	cfg        *model.Config
	logger     *zap.Logger
	presets    *intake.PresetBook
	dispatcher *dispatch.Dispatcher
}

// newApp wires the report generator, notifier and dispatcher from cfg
func newApp(cfg *model.Config, logger *zap.Logger) (*app, error) {
	presets := intake.NewPresetBook()
	if cfg.Intake.PresetsFile != "" {
		if err := presets.LoadFile(cfg.Intake.PresetsFile); err != nil {
			return nil, fmt.Errorf("load presets: %w", err)
		}
	}

	generator, err := report.NewGenerator(cfg.Report.OutputDir, cfg.Report.Format)
	if err != nil {
		return nil, fmt.Errorf("create report generator: %w", err)
	}

	notifier, err := notify.New(cfg.Notify, logger)
	if err != nil {
		return nil, fmt.Errorf("create notifier: %w", err)
	}
	if smtp, ok := notifier.(*notify.SMTPNotifier); ok && !smtp.Configured() {
		logger.Warn("SMTP is not configured; reports will be generated but not emailed",
			zap.String("hint", "set SMTP_EMAIL, SMTP_PASSWORD and EMAIL_TO, or notify.mode: log"))
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		presets:    presets,
		dispatcher: dispatch.NewDispatcher(generator, notifier, cfg.Notify.Timeout, logger),
	}, nil
}

// loadApp reads the effective configuration and wires the app
func loadApp() (*app, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return newApp(cfg, logger)
}

// newSurface creates a tool surface over a fresh session
func (a *app) newSurface() *tools.Surface {
	sess := intake.NewSession(intake.WithPresets(a.presets), intake.WithLogger(a.logger))
	return tools.NewSurface(sess, nil, a.dispatcher, a.logger)
}

// addDispatchFlags adds the report and notification overrides
func addDispatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-dir", "", "report output directory (overrides report.output_dir)")
	cmd.Flags().String("format", "", "primary report format: html, markdown or json (overrides report.format)")
	cmd.Flags().String("notify", "", "notification mode: smtp or log (overrides notify.mode)")
}

func bindDispatchFlags(cmd *cobra.Command, _ []string) error {
	return bindFlags(cmd, map[string]string{
		"report.output_dir": "output-dir",
		"report.format":     "format",
		"notify.mode":       "notify",
	})
}

// bindFlags binds config keys to the running command's flags. Binding at
// run time lets several commands share a key.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}
