package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"pricetrack/internal/chrono"
	"pricetrack/internal/fetcher"
	"pricetrack/internal/history"
	"pricetrack/internal/pipeline"
	"pricetrack/internal/record"
	"pricetrack/internal/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runDate string

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "Stamp records with this date (YYYY-MM-DD) instead of today.")
	rootCmd.AddCommand(runCmd)
}

func runClock(timezone string) (chrono.TimeAPI, error) {
	clock, err := chrono.LoadStandardTime(timezone)
	if err != nil {
		return nil, err
	}
	if runDate == "" {
		return clock, nil
	}
	date, err := record.ParseDate(runDate)
	if err != nil {
		return nil, fmt.Errorf("--date: %w", err)
	}
	return chrono.Fixed(time.Date(date.Year, date.Month, date.Day, 12, 0, 0, 0, clock.Location())), nil
}

var runCmd = &cobra.Command{
	Use:   "run [source...]",
	Short: "Runs the pipeline once for the given sources, or for every configured source.",
	Long: "Runs the pipeline once for the given sources, or for every configured source.\n" +
		"Exits with 1 if any run failed, 2 if any run produced no usable records.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		config, err := loadConfig()
		if err != nil {
			return err
		}
		for _, dir := range config.Dirs() {
			err := os.MkdirAll(dir, 0755)
			if err != nil {
				return err
			}
		}

		tel := telemetry.NewSlogAPI(slog.Default())
		clock, err := runClock(config.Timezone)
		if err != nil {
			return err
		}

		opts := config.FetcherOptions()
		if verbose {
			dump, err := telemetry.NewFilesystemOutput(".dev/resty")
			if err != nil {
				return err
			}
			opts.Dump = dump
		}
		client := fetcher.New(opts, clock, tel)
		retrying := fetcher.NewRetrying(client, config.RetryPolicy(), telemetry.NewScopedAPI("fetcher", tel))

		jobs, res, err := config.Jobs(ctx, args)
		if err != nil {
			return err
		}
		defer res.Close()

		stopPerf := telemetry.InstrumentPerfStats(ctx, 10*time.Second, telemetry.NewScopedAPI("perf", tel))
		runner := pipeline.NewRunner(retrying, clock, tel, history.NewLocker())
		outcomes := runner.RunAll(ctx, jobs, config.Parallelism)
		stopPerf()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Source", "Date", "Outcome", "Stage", "Records", "Rejected", "Added", "Replaced", "Detail"})
		for _, o := range outcomes {
			detail := o.Reason
			if o.Kind == pipeline.Success && o.SnapshotPath != "" {
				detail = o.SnapshotPath
			}
			t.AppendRow(table.Row{
				o.Source,
				o.RunDate.String(),
				o.Kind.String(),
				o.Stage.String(),
				o.Records,
				len(o.Rejected),
				o.Merge.Added,
				o.Merge.Replaced,
				detail,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		code := pipeline.ExitCode(outcomes)
		if code != 0 {
			return exitError{code: code}
		}
		return nil
	},
}

