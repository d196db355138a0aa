package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ppiankov/intake/internal/llm"
	"github.com/ppiankov/intake/internal/tools"
)

var (
	chatProvider string
	chatModel    string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:         "chat",
	Annotations: map[string]string{annotationInteractive: "true"},
	Short:       "Run an interactive intake session",
	Long: `Chat runs one intake session in the terminal.

Without --llm, each line is an operation and its argument:
  set-name John Smith
  set-age 45
  next-question
  assess

With --llm, free text is sent to the language model, which asks the
questions and records answers through the same operations.

Type 'help' for the operation list and 'quit' to leave.

Example:
  intake chat
  intake chat --llm openai --model gpt-4o-mini
  intake chat --llm ollama --model llama3.1:8b`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"llm.provider": "llm",
			"llm.model":    "model",
		})
	},
	RunE: runChatCmd,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatProvider, "llm", "", "LLM provider (openai, anthropic, ollama); empty for operation mode")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "LLM model name")
}

func runChatCmd(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}
	surface := a.newSurface()

	driver, err := llm.NewDriver(llm.ConfigFromModel(a.cfg.LLM), surface, a.logger)
	if err != nil {
		return fmt.Errorf("create llm driver: %w", err)
	}
	if driver != nil && !driver.IsAvailable(ctx) {
		return fmt.Errorf("LLM provider %s is not available (check API key or base URL)", driver.Name())
	}

	return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), surface, driver)
}

// runChat reads lines from in until EOF or quit. A nil driver means
// operation mode.
func runChat(ctx context.Context, in io.Reader, out io.Writer, surface *tools.Surface, driver llm.Driver) error {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	red := color.New(color.FgRed)

	_, _ = bold.Fprintln(out, "SHS Intake Screener")
	if driver != nil {
		_, _ = fmt.Fprintf(out, "Talking to %s. Type 'quit' to exit.\n\n", driver.Name())
	} else {
		_, _ = fmt.Fprintln(out, "Enter an operation and its argument. Type 'help' for the list, 'quit' to exit.")
		_, _ = fmt.Fprintln(out)
	}

	scanner := bufio.NewScanner(in)
	for {
		_, _ = cyan.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			_, _ = fmt.Fprintln(out, "Goodbye!")
			return nil
		case "help":
			printOperations(out)
			continue
		}

		var reply string
		var err error
		if driver != nil {
			reply, err = driver.Respond(ctx, line)
		} else {
			reply, err = invokeLine(ctx, surface, line)
		}

		if reply != "" {
			_, _ = fmt.Fprintln(out, reply)
		}
		if err != nil {
			switch {
			case errors.Is(err, tools.ErrUnknownOperation):
				_, _ = red.Fprintf(out, "Unknown operation. Type 'help' for the list.\n")
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				_, _ = red.Fprintf(out, "Error: %v\n", err)
			}
		}
		_, _ = fmt.Fprintln(out)
	}

	return scanner.Err()
}

// invokeLine runs "<operation> [argument]" against the surface
func invokeLine(ctx context.Context, surface *tools.Surface, line string) (string, error) {
	name, arg, _ := strings.Cut(line, " ")
	return surface.InvokeByName(ctx, name, strings.TrimSpace(arg))
}

func printOperations(out io.Writer) {
	bold := color.New(color.Bold)
	for _, spec := range tools.Catalog() {
		usage := string(spec.Op)
		if spec.HasArgument() {
			usage += " <" + spec.Argument + ">"
		}
		_, _ = bold.Fprintf(out, "  %-28s", usage)
		_, _ = fmt.Fprintln(out, spec.Description)
	}
	_, _ = fmt.Fprintln(out)
}
