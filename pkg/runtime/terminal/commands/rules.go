package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type RulesCmd struct {
	open Opener
}

func NewRulesCmd(open Opener) *cobra.Command {
	rc := &RulesCmd{open: open}
	return &cobra.Command{
		Use:   "rules",
		Short: "List registered rules",
		RunE:  rc.run,
	}
}

func (rc *RulesCmd) run(cmd *cobra.Command, _ []string) error {
	rt, err := rc.open(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	names := rt.Engine.Rules()
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No rules registered")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered rules:\n%s\n", strings.Join(names, "\n"))
	return nil
}
