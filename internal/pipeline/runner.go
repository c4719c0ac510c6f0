// Package pipeline runs sources through fetch, locate, normalize and merge
// and reports exactly one Outcome per run.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"pricetrack/internal/assert"
	"pricetrack/internal/chrono"
	"pricetrack/internal/fetcher"
	"pricetrack/internal/history"
	"pricetrack/internal/locator"
	"pricetrack/internal/normalizer"
	"pricetrack/internal/record"
	"pricetrack/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_pipeline_stage   = "pipeline.stage"
	report_pipeline_partial = "pipeline.partial"
	report_pipeline_failed  = "pipeline.failed"
	report_pipeline_row     = "pipeline.rejected_row"
	report_pipeline_records = "pipeline.records"
	report_pipeline_metrics = "pipeline.metrics"
)

// Job is everything needed to run one source.
type Job struct {
	Name          string
	Request       fetcher.Request
	Discriminator locator.Discriminator
	Schema        normalizer.Schema
	Store         history.Store
	// Snapshots is optional.
	Snapshots *history.SnapshotWriter
}

type Runner struct {
	fetcher fetcher.Doer
	time    chrono.TimeAPI
	tel     telemetry.API
	locks   *history.Locker

	tracer   trace.Tracer
	runs     metric.Int64Counter
	produced metric.Int64Counter
}

func NewRunner(doer fetcher.Doer, time chrono.TimeAPI, tel telemetry.API, locks *history.Locker) *Runner {
	assert.NotNil(doer)
	assert.NotNil(time)
	assert.NotNil(tel)
	assert.NotNil(locks)

	meter := otel.Meter("pricetrack/pipeline")
	runs, err := meter.Int64Counter(
		"pricetrack.runs",
		metric.WithDescription("Runs by source and outcome."),
	)
	if err != nil {
		tel.ReportBroken(report_pipeline_metrics, err)
	}
	produced, err := meter.Int64Counter(
		"pricetrack.records",
		metric.WithDescription("Records produced by source."),
	)
	if err != nil {
		tel.ReportBroken(report_pipeline_metrics, err)
	}

	return &Runner{
		fetcher:  doer,
		time:     time,
		tel:      tel,
		locks:    locks,
		tracer:   otel.Tracer("pricetrack/pipeline"),
		runs:     runs,
		produced: produced,
	}
}

// stopErr ends a run early, partial marks a PartialFailure instead of a
// failure.
type stopErr struct {
	partial bool
	reason  string
	err     error
}

func (e *stopErr) Error() string {
	if e.err == nil {
		return e.reason
	}
	return fmt.Sprintf("%s: %v", e.reason, e.err)
}

func (e *stopErr) Unwrap() error {
	return e.err
}

func failure(reason string, err error) *stopErr {
	return &stopErr{reason: reason, err: err}
}

func partialFailure(reason string, err error) *stopErr {
	return &stopErr{partial: true, reason: reason, err: err}
}

// Run executes one attempt of the job. It never panics on source errors and
// never returns without an Outcome.
func (r *Runner) Run(ctx context.Context, job Job) Outcome {
	out := Outcome{
		Source:  job.Name,
		Stage:   StageIdle,
		RunDate: record.DateOf(r.time.Now()),
	}

	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("source", job.Name),
		attribute.String("run_date", out.RunDate.String()),
	))
	defer span.End()

	var (
		doc    fetcher.RawDocument
		table  locator.TableCandidate
		result normalizer.Result
	)

	stages := []struct {
		stage Stage
		fn    func(ctx context.Context) (string, error)
	}{
		{StageFetching, func(ctx context.Context) (string, error) {
			var err error
			doc, err = r.fetcher.Fetch(ctx, job.Request)
			out.Attempts = doc.Attempts
			if err != nil {
				var retryErr *fetcher.RetryError
				if errors.As(err, &retryErr) {
					out.Attempts = retryErr.Attempts
				}
				return "", failure("fetch", err)
			}
			return fmt.Sprintf("%d bytes, status %d", len(doc.Body), doc.StatusCode), nil
		}},
		{StageLocating, func(ctx context.Context) (string, error) {
			var err error
			table, err = locator.Locate(doc, job.Discriminator)
			if errors.Is(err, locator.ErrNotFound) || errors.Is(err, locator.ErrMalformed) {
				return "", partialFailure("locate table", err)
			}
			if err != nil {
				return "", failure("locate table", err)
			}
			return fmt.Sprintf("%d rows", table.Len()), nil
		}},
		{StageNormalizing, func(ctx context.Context) (string, error) {
			result = normalizer.Normalize(table, job.Schema, out.RunDate)
			out.Records = len(result.Records)
			out.Rejected = result.Rejected
			out.Skipped = result.Skipped
			for _, rowErr := range result.Rejected {
				r.tel.ReportWarning(
					report_pipeline_row,
					telemetry.KV{Key: "source", Value: job.Name},
					telemetry.KV{Key: "row", Value: rowErr.Row},
					telemetry.KV{Key: "field", Value: rowErr.Field},
					telemetry.KV{Key: "reason", Value: rowErr.Reason},
				)
			}
			detail := fmt.Sprintf(
				"%d records, %d rejected, %d skipped",
				len(result.Records), len(result.Rejected), result.Skipped,
			)
			if len(result.Records) == 0 {
				return detail, partialFailure("no usable records", nil)
			}
			return detail, nil
		}},
		{StageMerging, func(ctx context.Context) (string, error) {
			merger := history.NewMerger(job.Name, job.Schema.Layout(), job.Store, job.Snapshots, r.locks, r.tel)
			res, err := merger.Commit(ctx, out.RunDate, result.Records)
			out.SnapshotPath = res.SnapshotPath
			if err != nil {
				return "", failure("merge history", err)
			}
			out.Merge = res.Stats
			out.HistorySize = res.Total
			return fmt.Sprintf(
				"%d added, %d replaced, %d unchanged",
				res.Stats.Added, res.Stats.Replaced, res.Stats.Unchanged,
			), nil
		}},
	}

	for _, s := range stages {
		out.Stage = s.stage
		if err := ctx.Err(); err != nil {
			r.finish(ctx, &out, failure("cancelled", err), "")
			return out
		}

		detail, err := r.runStage(ctx, job.Name, s.stage, s.fn)
		if err != nil {
			var stop *stopErr
			if !errors.As(err, &stop) {
				stop = failure(s.stage.String(), err)
			}
			r.finish(ctx, &out, stop, detail)
			if stop.partial {
				span.SetStatus(codes.Error, stop.Error())
			} else {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return out
		}
	}

	out.Stage = StageDone
	r.finish(ctx, &out, nil, "")
	return out
}

func (r *Runner) runStage(ctx context.Context, source string, stage Stage, fn func(ctx context.Context) (string, error)) (string, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline."+stage.String())
	defer span.End()

	detail, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return detail, err
	}
	r.tel.ReportDebug(
		report_pipeline_stage,
		telemetry.KV{Key: "source", Value: source},
		telemetry.KV{Key: "stage", Value: stage.String()},
		telemetry.KV{Key: "outcome", Value: "ok"},
		telemetry.KV{Key: "detail", Value: detail},
	)
	return detail, nil
}

func (r *Runner) finish(ctx context.Context, out *Outcome, stop *stopErr, detail string) {
	switch {
	case stop == nil:
		out.Kind = Success
	case stop.partial:
		out.Kind = PartialFailure
	default:
		out.Kind = Failed
	}
	if stop != nil {
		out.Reason = stop.Error()
		out.Err = stop.err
		if detail != "" {
			out.Reason = fmt.Sprintf("%s (%s)", out.Reason, detail)
		}
	}

	params := []any{
		telemetry.KV{Key: "source", Value: out.Source},
		telemetry.KV{Key: "stage", Value: out.Stage.String()},
		telemetry.KV{Key: "outcome", Value: out.Kind.String()},
		telemetry.KV{Key: "detail", Value: out.Reason},
	}
	switch out.Kind {
	case Success:
		r.tel.ReportDebug("run complete", params...)
		r.tel.ReportCount(report_pipeline_records, int64(out.Records))
	case PartialFailure:
		r.tel.ReportWarning(report_pipeline_partial, params...)
	case Failed:
		r.tel.ReportBroken(report_pipeline_failed, params...)
	}

	attrs := metric.WithAttributes(
		attribute.String("source", out.Source),
		attribute.String("outcome", out.Kind.String()),
	)
	if r.runs != nil {
		r.runs.Add(ctx, 1, attrs)
	}
	if r.produced != nil && out.Records > 0 {
		r.produced.Add(ctx, int64(out.Records), metric.WithAttributes(attribute.String("source", out.Source)))
	}
}
