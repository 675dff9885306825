package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/oom/internal/adapters/repository"
	service "github.com/okian/oom/internal/app"
	"github.com/okian/oom/internal/domain/season"
	"github.com/okian/oom/internal/simulate"
	"github.com/okian/oom/pkg/logger"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	simulate.GenerateOptions
	Output string
}

// SimulateResult is the JSON output of the simulate command.
type SimulateResult struct {
	Stats        simulate.Stats        `json:"stats"`
	Verification simulate.Verification `json:"verification"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a random season, play it and verify both result sources agree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f := simulate.Generate(opts.GenerateOptions)
			if opts.Output != "" {
				if err := simulate.WriteFixture(opts.Output, f); err != nil {
					return err
				}
			}

			store := repository.NewMemoryStore()
			svc := service.New(service.WithStore(store), service.WithLogger(logger.Get()))
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			stats, err := simulate.Run(ctx, svc, f, simulate.RunOptions{Logger: logger.Get()})
			if err != nil {
				return err
			}
			v, err := simulate.VerifySourceEquivalence(ctx, store, season.Query{SocietyID: f.Society, SeasonYear: f.Season})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if err := writeJSON(out, SimulateResult{Stats: stats, Verification: v}); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "members %d, events %d (%d drafted, %d published, %d imported) in %s\n",
					stats.Members, stats.Events, stats.Drafts, stats.Published, stats.Imported, stats.Duration.Round(time.Millisecond))
				fmt.Fprintf(out, "compared %d logged events, skipped %d legacy events\n", v.Compared, v.Skipped)
				for _, d := range v.Differences {
					fmt.Fprintln(out, "  mismatch", d)
				}
			}
			if !v.OK() {
				return fmt.Errorf("log and inline standings differ for %d member(s)", len(v.Differences))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Society, "society", "sim", "society ID")
	cmd.Flags().IntVar(&opts.Season, "season", time.Now().Year(), "season year")
	cmd.Flags().IntVar(&opts.Members, "members", 40, "roster size")
	cmd.Flags().IntVar(&opts.Events, "events", 20, "events in the season")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().Float64Var(&opts.LegacyRatio, "legacy-ratio", 0.25, "share of published events imported inline only")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "also write the generated fixture to this file")
	return cmd
}
