package cli

import (
	"fmt"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/engine"
	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the current match in the stored state",
		Long: `Clear the current match pointer in the configured store. Match history,
teams and players are kept.

Run it while the primary server is stopped: a running server keeps its own
copy of the state and overwrites the store on its next write.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, cleanup, err := openStore(ctx, rootOpts.Config)
			if err != nil {
				return err
			}
			defer cleanup()

			eng := engine.New(st, nil)
			eng.Load(ctx)

			match, err := eng.ResetMatch(ctx)
			if engine.IsCode(err, engine.ErrCodeNoActiveMatch) {
				fmt.Fprintln(cmd.OutOrStdout(), "no current match")
				return nil
			}
			if err != nil {
				return WrapExitError(ExitFailure, "failed to reset match", err)
			}

			// Save failures are absorbed by the engine; confirm the write landed
			stored, err := st.Load(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to verify reset", err)
			}
			if stored.CurrentMatch != nil {
				return WrapExitError(ExitFailure, "failed to reset match", fmt.Errorf("store still holds match %s", stored.CurrentMatch.ID))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "cleared current match %s\n", match.ID)
			return nil
		},
	}
}
