package terminal

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/de-tools/compliance-engine/pkg/runtime/terminal/commands"
	"github.com/de-tools/compliance-engine/pkg/runtime/terminal/export"
)

// CLI represents the command-line interface
type CLI struct {
	open       func(ctx context.Context, configPath string) (*commands.Runtime, error)
	configPath string
	reporter   *export.Reporter
	writer     *export.RecordWriter
	rootCmd    *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	// Open builds the runtime from the configuration file given with --config.
	Open   func(ctx context.Context, configPath string) (*commands.Runtime, error)
	Output io.Writer
}

func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	cli := &CLI{
		open:     opts.Open,
		reporter: export.NewReporter(opts.Output),
		writer:   export.NewRecordWriter(opts.Output),
	}

	cli.rootCmd = cli.newRootCmd(opts.Output)
	return cli
}

func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

func (cli *CLI) ExecuteContext(ctx context.Context, args ...string) error {
	if args != nil {
		cli.rootCmd.SetArgs(args)
	}
	return cli.rootCmd.ExecuteContext(ctx)
}

func (cli *CLI) newRootCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "compliance",
		Short:         "Compliance rule evaluation and drift audit tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "Path to the configuration file")

	open := func(ctx context.Context) (*commands.Runtime, error) {
		return cli.open(ctx, cli.configPath)
	}

	cmd.AddCommand(commands.NewEvaluateCmd(open, cli.reporter))
	cmd.AddCommand(commands.NewRulesCmd(open))
	cmd.AddCommand(commands.NewEventsCmd(open, cli.writer))
	cmd.AddCommand(commands.NewAuditsCmd(open, cli.writer))
	cmd.AddCommand(commands.NewMirrorCmd(open))

	return cmd
}
