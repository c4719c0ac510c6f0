package pipeline

import (
	"fmt"

	"pricetrack/internal/history"
	"pricetrack/internal/normalizer"
	"pricetrack/internal/record"
)

type Stage int

const (
	StageIdle Stage = iota
	StageFetching
	StageLocating
	StageNormalizing
	StageMerging
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageFetching:
		return "fetching"
	case StageLocating:
		return "locating"
	case StageNormalizing:
		return "normalizing"
	case StageMerging:
		return "merging"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

type OutcomeKind int

const (
	// Success means the batch was merged into the history.
	Success OutcomeKind = iota
	// PartialFailure means the source answered but produced no usable
	// records, usually because the page layout drifted.
	PartialFailure
	// Failed covers fetch errors, cancellation, persistence errors and
	// corrupt history.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case PartialFailure:
		return "partial_failure"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// Outcome is the single result of one run of one source.
type Outcome struct {
	Source string
	Kind   OutcomeKind
	// Stage is StageDone on success and the stage that stopped the run
	// otherwise.
	Stage   Stage
	Reason  string
	Err     error
	RunDate record.Date

	Attempts     int
	Records      int
	Rejected     []normalizer.RowError
	Skipped      int
	Merge        history.MergeStats
	SnapshotPath string
	HistorySize  int
}

func (o Outcome) String() string {
	if o.Kind == Success {
		return fmt.Sprintf(
			"%s: %s (%d records, %d added, %d replaced, %d unchanged)",
			o.Source, o.Kind, o.Records, o.Merge.Added, o.Merge.Replaced, o.Merge.Unchanged,
		)
	}
	return fmt.Sprintf("%s: %s at %s: %s", o.Source, o.Kind, o.Stage, o.Reason)
}

// ExitCode maps outcomes onto a process exit code: 1 if any run failed, 2 if
// any run partially failed, 0 otherwise.
func ExitCode(outcomes []Outcome) int {
	code := 0
	for _, o := range outcomes {
		switch o.Kind {
		case Failed:
			return 1
		case PartialFailure:
			code = 2
		}
	}
	return code
}
