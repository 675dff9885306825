package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/oom/internal/adapters/repository"
	service "github.com/okian/oom/internal/app"
	"github.com/okian/oom/internal/domain/reconcile"
	"github.com/okian/oom/internal/simulate"
	"github.com/okian/oom/pkg/logger"
)

// StandingsOptions holds flags for the standings command.
type StandingsOptions struct {
	File    string
	Season  int
	OOMOnly bool
	All     bool
	Mode    string
}

// NewStandingsCommand creates the standings command.
func NewStandingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StandingsOptions{}
	cmd := &cobra.Command{
		Use:   "standings",
		Short: "Compute season standings from a fixture file",
		Long: `Load a season fixture into an in-memory store, publish its published
events and print the society's standings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := simulate.LoadFixture(opts.File)
			if err != nil {
				return err
			}
			if opts.Season == 0 {
				opts.Season = f.Season
			}
			return runStandings(cmd.Context(), cmd.OutOrStdout(), rootOpts, f, service.StandingsQuery{
				SocietyID:   f.Society,
				Season:      opts.Season,
				OOMOnly:     opts.OOMOnly,
				IncludeZero: opts.All,
			}, opts.Mode)
		},
	}
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "season fixture (YAML)")
	cmd.Flags().IntVar(&opts.Season, "season", 0, "season year (default: the fixture's season)")
	cmd.Flags().BoolVar(&opts.OOMOnly, "oom-only", false, "count only oom-classified events")
	cmd.Flags().BoolVar(&opts.All, "all", false, "include members without points")
	cmd.Flags().StringVar(&opts.Mode, "mode", string(reconcile.ModePerEvent), "reconcile mode (per_event|per_query|log_only|fallback_only)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runStandings(ctx context.Context, w io.Writer, rootOpts *RootOptions, f *simulate.Fixture, q service.StandingsQuery, mode string) error {
	m, err := reconcile.ParseMode(mode)
	if err != nil {
		return err
	}
	svc := service.New(
		service.WithStore(repository.NewMemoryStore()),
		service.WithReconcileMode(m),
		service.WithLogger(logger.Get()),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	if _, err := simulate.Run(ctx, svc, f, simulate.RunOptions{Logger: logger.Get()}); err != nil {
		return err
	}
	report, err := svc.SeasonStandings(ctx, q)
	if err != nil {
		return err
	}
	if rootOpts.Format == "json" {
		return writeJSON(w, report)
	}
	return printReport(w, report)
}

func printReport(w io.Writer, report reconcile.Report) error {
	fmt.Fprintf(w, "%s %d (mode %s", report.SocietyID, report.SeasonYear, report.Mode)
	if report.OOMOnly {
		fmt.Fprint(w, ", oom events only")
	}
	fmt.Fprintln(w, ")")

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tMEMBER\tNAME\tPOINTS\tWINS\tPLAYED")
	for _, s := range report.Standings {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%g\t%d\t%d\n", s.Rank, s.MemberID, s.DisplayName, s.TotalPoints, s.Wins, s.EventsPlayed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts := map[reconcile.Source]int{}
	for _, e := range report.Events {
		counts[e.Source]++
	}
	fmt.Fprintf(w, "events: %d from log, %d inline, %d without results, %d excluded\n",
		counts[reconcile.SourceLog], counts[reconcile.SourceInline], counts[reconcile.SourceNone], len(report.Excluded))
	return nil
}
