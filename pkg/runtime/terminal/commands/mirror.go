package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/de-tools/compliance-engine/pkg/services/mirror"
)

type MirrorSyncCmd struct {
	target mirror.Target
	open   Opener
}

func NewMirrorCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Mirror compliance history of other accounts",
	}
	cmd.AddCommand(newMirrorSyncCmd(open))
	return cmd
}

func newMirrorSyncCmd(open Opener) *cobra.Command {
	mc := &MirrorSyncCmd{open: open}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy an account's compliance history into the local event store",
		RunE:  mc.run,
	}

	cmd.Flags().StringVar(&mc.target.AccountID, "account", "", "Account to mirror")
	cmd.Flags().StringVar(&mc.target.RoleARN, "role", "", "Role assumed to read the account")
	cmd.Flags().StringVar(&mc.target.Region, "region", "", "Region of the account's rules")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}

func (mc *MirrorSyncCmd) run(cmd *cobra.Command, _ []string) error {
	rt, err := mc.open(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.Mirror == nil {
		return errors.New("mirroring is not available")
	}
	progress, err := rt.Mirror(cmd.Context(), mc.target)
	if err != nil {
		return fmt.Errorf("failed to mirror %s: %w", mc.target.AccountID, err)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Mirrored %d rules: %d records, %d new\n",
		progress.Rules, progress.Records, progress.Inserted)
	return err
}
