package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	"github.com/spf13/cobra"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	Format string // "json" | "text"
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the stored state",
		Long: `Read the state from the configured store and print it.

Examples:
  livescore snapshot
  STORE_BACKEND=sqlite livescore snapshot --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return WrapExitError(ExitCommandError, "invalid format", fmt.Errorf("%q: must be text or json", opts.Format))
			}

			st, cleanup, err := openStore(cmd.Context(), opts.Config)
			if err != nil {
				return err
			}
			defer cleanup()

			state, err := st.Load(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to load state", err)
			}

			if opts.Format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(state)
			}
			writeSummary(cmd.OutOrStdout(), state)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	return cmd
}

// writeSummary prints a human readable overview of the state
func writeSummary(w io.Writer, state *models.State) {
	fmt.Fprintf(w, "teams:   %d\n", len(state.Teams))
	fmt.Fprintf(w, "players: %d\n", len(state.Players))
	fmt.Fprintf(w, "matches: %d\n", len(state.Matches))

	m := state.CurrentMatch
	if m == nil {
		fmt.Fprintln(w, "current: none")
		return
	}

	batting := "-"
	if m.Innings.BattingTeam != nil {
		batting = teamLabel(state, *m.Innings.BattingTeam)
	}
	fmt.Fprintf(w, "current: %s vs %s (%d overs) [%s]\n",
		teamLabel(state, m.TeamAID), teamLabel(state, m.TeamBID), m.Overs, m.Status)
	fmt.Fprintf(w, "batting: %s %d/%d (%d.%d)\n",
		batting, m.Innings.Runs, m.Innings.Wickets, m.Innings.Overs, m.Innings.Balls)
}

func teamLabel(state *models.State, id string) string {
	if t := state.FindTeam(id); t != nil {
		if t.Short != "" {
			return t.Short
		}
		return t.Name
	}
	return id
}
