package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pricetrack/internal/chrono"
	"pricetrack/internal/fetcher"
	"pricetrack/internal/history"
	"pricetrack/internal/locator"
	"pricetrack/internal/normalizer"
	"pricetrack/internal/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeDoer struct {
	mutex sync.Mutex
	calls int
	fetch func(call int) (fetcher.RawDocument, error)
}

func (f *fakeDoer) Fetch(ctx context.Context, req fetcher.Request) (fetcher.RawDocument, error) {
	f.mutex.Lock()
	f.calls++
	call := f.calls
	f.mutex.Unlock()
	if err := ctx.Err(); err != nil {
		return fetcher.RawDocument{}, &fetcher.FetchError{Kind: fetcher.ErrNetwork, URL: req.URL, Err: err}
	}
	return f.fetch(call)
}

func serve(body string) *fakeDoer {
	return &fakeDoer{fetch: func(int) (fetcher.RawDocument, error) {
		return fetcher.RawDocument{
			URL:        "https://prices.test",
			StatusCode: 200,
			Body:       []byte(body),
			Attempts:   1,
		}, nil
	}}
}

func priceTable(rows ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><table><tr><th>Item</th><th>Price</th></tr>")
	for _, r := range rows {
		name, price, _ := strings.Cut(r, "=")
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td></tr>", name, price)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

var priceSchema = normalizer.Schema{
	Key: normalizer.Column{Field: "item", Index: 0},
	Columns: []normalizer.Column{
		{Field: "price", Index: 1, Coerce: normalizer.CoerceDecimalGrouped, Required: true},
	},
	HeaderTokens: []string{"item"},
}

func day(d int) chrono.Fixed {
	return chrono.Fixed(time.Date(2024, time.May, d, 9, 30, 0, 0, time.UTC))
}

func newJob(dir string) Job {
	snapshots := history.NewSnapshotWriter(dir)
	return Job{
		Name:          "test",
		Request:       fetcher.Request{URL: "https://prices.test"},
		Discriminator: locator.AtIndex(0),
		Schema:        priceSchema,
		Store:         history.NewCSVStore(filepath.Join(dir, "historical_test.csv"), priceSchema.Layout()),
		Snapshots:     &snapshots,
	}
}

func readHistory(t *testing.T, dir string) string {
	contents, err := os.ReadFile(filepath.Join(dir, "historical_test.csv"))
	if err != nil {
		t.Fatal(err)
	}
	return string(contents)
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	job := newJob(dir)
	locks := history.NewLocker()
	tel := telemetry.NewRecorder()

	out := NewRunner(serve(priceTable("A=10", "B=20")), day(1), tel, locks).Run(ctx, job)
	require.Equal(t, Success, out.Kind, out.Reason)
	require.Equal(t, StageDone, out.Stage)
	require.Equal(t, 2, out.Records)
	require.Equal(t, history.MergeStats{Added: 2}, out.Merge)
	require.Equal(t, "date,item,price\n2024-05-01,A,10\n2024-05-01,B,20\n", readHistory(t, dir))
	require.FileExists(t, filepath.Join(dir, "2024-05-01_test.csv"))

	second := NewRunner(serve(priceTable("A=12")), day(2), tel, locks)
	out = second.Run(ctx, job)
	require.Equal(t, Success, out.Kind, out.Reason)
	expected := "date,item,price\n" +
		"2024-05-01,A,10\n" +
		"2024-05-01,B,20\n" +
		"2024-05-02,A,12\n"
	if diff := cmp.Diff(expected, readHistory(t, dir)); diff != "" {
		t.Fatalf("unexpected history (-want +got):\n%s", diff)
	}

	out = second.Run(ctx, job)
	require.Equal(t, Success, out.Kind, out.Reason)
	require.Equal(t, history.MergeStats{Unchanged: 1}, out.Merge)
	require.Equal(t, expected, readHistory(t, dir))
	require.Equal(t, 3, out.HistorySize)

	stages := tel.Find(telemetry.LevelDebug, report_pipeline_stage)
	require.NotEmpty(t, stages)
	source, ok := stages[0].Param("source")
	require.True(t, ok)
	require.Equal(t, "test", source)
}

func TestRunNotFound(t *testing.T) {
	dir := t.TempDir()
	job := newJob(dir)
	job.Discriminator = locator.AtIndex(4)
	tel := telemetry.NewRecorder()

	out := NewRunner(serve(priceTable("A=10")), day(1), tel, history.NewLocker()).Run(context.Background(), job)
	require.Equal(t, PartialFailure, out.Kind)
	require.Equal(t, StageLocating, out.Stage)
	require.ErrorIs(t, out.Err, locator.ErrNotFound)
	require.Len(t, tel.Find(telemetry.LevelWarning, report_pipeline_partial), 1)
	require.NoFileExists(t, filepath.Join(dir, "historical_test.csv"))
}

func TestRunNoUsableRecords(t *testing.T) {
	dir := t.TempDir()
	out := NewRunner(
		serve(priceTable("A=N/A", "B=")),
		day(1),
		telemetry.NewRecorder(),
		history.NewLocker(),
	).Run(context.Background(), newJob(dir))

	require.Equal(t, PartialFailure, out.Kind)
	require.Equal(t, StageNormalizing, out.Stage)
	require.Len(t, out.Rejected, 2)
	require.NoFileExists(t, filepath.Join(dir, "historical_test.csv"))
}

func TestRunRejectedRowsStillSucceed(t *testing.T) {
	dir := t.TempDir()
	tel := telemetry.NewRecorder()
	out := NewRunner(serve(priceTable("A=1,234.50", "B=N/A")), day(1), tel, history.NewLocker()).
		Run(context.Background(), newJob(dir))

	require.Equal(t, Success, out.Kind, out.Reason)
	require.Equal(t, 1, out.Records)
	require.Len(t, out.Rejected, 1)
	require.Len(t, tel.Find(telemetry.LevelWarning, report_pipeline_row), 1)
	require.Equal(t, "date,item,price\n2024-05-01,A,1234.5\n", readHistory(t, dir))
}

func TestRunFetchRetries(t *testing.T) {
	policy := fetcher.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

	cases := []struct {
		name     string
		status   int
		attempts int
	}{
		{name: "transient", status: 503, attempts: 3},
		{name: "permanent", status: 404, attempts: 1},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			tel := telemetry.NewRecorder()
			doer := &fakeDoer{fetch: func(int) (fetcher.RawDocument, error) {
				return fetcher.RawDocument{}, &fetcher.FetchError{
					Kind:       fetcher.ErrHTTPStatus,
					URL:        "https://prices.test",
					StatusCode: test.status,
				}
			}}
			runner := NewRunner(fetcher.NewRetrying(doer, policy, tel), day(1), tel, history.NewLocker())

			out := runner.Run(context.Background(), newJob(t.TempDir()))
			require.Equal(t, Failed, out.Kind)
			require.Equal(t, StageFetching, out.Stage)
			require.Equal(t, test.attempts, out.Attempts)
			require.Equal(t, test.attempts, doer.calls)
			require.Len(t, tel.Find(telemetry.LevelBroken, report_pipeline_failed), 1)
		})
	}
}

func TestRunRetryRecovers(t *testing.T) {
	policy := fetcher.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	ok := serve(priceTable("A=1"))
	doer := &fakeDoer{fetch: func(call int) (fetcher.RawDocument, error) {
		if call == 1 {
			return fetcher.RawDocument{}, &fetcher.FetchError{Kind: fetcher.ErrTimeout, URL: "https://prices.test"}
		}
		return ok.fetch(call)
	}}
	tel := telemetry.NewRecorder()
	runner := NewRunner(fetcher.NewRetrying(doer, policy, tel), day(1), tel, history.NewLocker())

	out := runner.Run(context.Background(), newJob(t.TempDir()))
	require.Equal(t, Success, out.Kind, out.Reason)
	require.Equal(t, 2, out.Attempts)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doer := serve(priceTable("A=1"))
	out := NewRunner(doer, day(1), telemetry.NewRecorder(), history.NewLocker()).Run(ctx, newJob(t.TempDir()))
	require.Equal(t, Failed, out.Kind)
	require.Equal(t, StageFetching, out.Stage)
	require.ErrorIs(t, out.Err, context.Canceled)
	require.Equal(t, 0, doer.calls)
}

func TestRunCorruptHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "historical_test.csv")
	err := os.WriteFile(path, []byte("not,a,history\nfile"), 0644)
	if err != nil {
		t.Fatal(err)
	}

	out := NewRunner(serve(priceTable("A=1")), day(1), telemetry.NewRecorder(), history.NewLocker()).
		Run(context.Background(), newJob(dir))
	require.Equal(t, Failed, out.Kind)
	require.Equal(t, StageMerging, out.Stage)
	require.ErrorIs(t, out.Err, history.ErrCorruptHistory)
	require.Equal(t, "not,a,history\nfile", readHistory(t, dir))
}

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	good := newJob(filepath.Join(dir))
	broken := newJob(dir)
	broken.Name = "broken"
	broken.Discriminator = locator.WithClass("missing")
	broken.Store = history.NewCSVStore(filepath.Join(dir, "historical_broken.csv"), priceSchema.Layout())

	runner := NewRunner(serve(priceTable("A=1")), day(1), telemetry.NewRecorder(), history.NewLocker())
	outcomes := runner.RunAll(context.Background(), []Job{good, broken, good}, 2)
	require.Len(t, outcomes, 3)
	require.Equal(t, "test", outcomes[0].Source)
	require.Equal(t, Success, outcomes[0].Kind)
	require.Equal(t, "broken", outcomes[1].Source)
	require.Equal(t, PartialFailure, outcomes[1].Kind)
	require.Equal(t, Success, outcomes[2].Kind)

	require.Equal(t, 2, ExitCode(outcomes))
	require.Equal(t, 0, ExitCode(outcomes[:1]))
	require.Equal(t, 1, ExitCode(append(outcomes, Outcome{Kind: Failed})))
	require.Equal(t, "date,item,price\n2024-05-01,A,1\n", readHistory(t, dir))
}
