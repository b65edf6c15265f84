package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/de-tools/compliance-engine/pkg/runtime/terminal/export"
)

type AuditsCmd struct {
	accounts []string
	limit    int
	open     Opener
	writer   *export.RecordWriter
}

func NewAuditsCmd(open Opener, writer *export.RecordWriter) *cobra.Command {
	ac := &AuditsCmd{open: open, writer: writer}
	cmd := &cobra.Command{
		Use:   "audits",
		Short: "List recorded drift audit runs",
		RunE:  ac.run,
	}

	cmd.Flags().StringSliceVar(&ac.accounts, "account", nil, "Account ids to include")
	cmd.Flags().IntVar(&ac.limit, "limit", 20, "Maximum number of runs")

	return cmd
}

func (ac *AuditsCmd) run(cmd *cobra.Command, _ []string) error {
	rt, err := ac.open(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	runs, err := rt.Audits.ListRuns(cmd.Context(), ac.accounts, ac.limit)
	if err != nil {
		return fmt.Errorf("failed to list audit runs: %w", err)
	}
	return ac.writer.Audits(runs)
}
