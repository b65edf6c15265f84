package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/runtime/terminal/export"
	"github.com/de-tools/compliance-engine/pkg/services/submit"
)

type EvaluateCmd struct {
	rule      string
	eventPath string
	testMode  bool
	open      Opener
	reporter  *export.Reporter
}

func NewEvaluateCmd(open Opener, reporter *export.Reporter) *cobra.Command {
	ec := &EvaluateCmd{open: open, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one rule against a trigger event",
		RunE:  ec.run,
	}

	cmd.Flags().StringVar(&ec.rule, "rule", "", "Registered rule name")
	cmd.Flags().StringVar(&ec.eventPath, "event", "-", "Path to the trigger event JSON, - for stdin")
	cmd.Flags().BoolVar(&ec.testMode, "test-mode", false, "Evaluate without submitting results")

	_ = cmd.MarkFlagRequired("rule")

	return cmd
}

func (ec *EvaluateCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	event, err := ec.readEvent(cmd.InOrStdin())
	if err != nil {
		return err
	}
	if ec.testMode {
		event.ResultToken = submit.TestModeToken
	}

	rt, err := ec.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.Engine.Invoke(ctx, ec.rule, event)
	if err != nil {
		return fmt.Errorf("failed to invoke %s: %w", ec.rule, err)
	}
	if err := ec.reporter.Handle(resp.Report(ec.rule, event.AccountID, time.Now().UTC())); err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %s", resp.Error.CustomerErrorCode, resp.Error.CustomerErrorMessage)
	}
	return nil
}

func (ec *EvaluateCmd) readEvent(stdin io.Reader) (domain.TriggerEvent, error) {
	var event domain.TriggerEvent
	r := stdin
	if ec.eventPath != "-" {
		f, err := os.Open(ec.eventPath)
		if err != nil {
			return event, fmt.Errorf("failed to open trigger event: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&event); err != nil {
		return event, fmt.Errorf("failed to decode trigger event: %w", err)
	}
	return event, nil
}
