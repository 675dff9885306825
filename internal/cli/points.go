package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/oom/internal/domain/points"
)

// NewPointsCommand creates the points command.
func NewPointsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "points",
		Short: "Print the position-to-points table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			legend := points.Legend()
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), legend)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "POSITION\tPOINTS")
			for _, e := range legend {
				fmt.Fprintf(tw, "%d\t%g\n", e.Position, e.Points)
			}
			fmt.Fprintf(tw, "%d+\t0\n", points.MaxScoringPosition+1)
			return tw.Flush()
		},
	}
}
