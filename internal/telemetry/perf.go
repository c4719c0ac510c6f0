package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

var perfMeter = otel.Meter("pricetrack/perf")

// InstrumentPerfStats samples process stats into otel gauges every
// interval until ctx is done or the returned stop func is called. A
// final sample is taken on stop so short runs still report once.
func InstrumentPerfStats(ctx context.Context, interval time.Duration, tel API) (stop func()) {
	cpuGauge, _ := perfMeter.Float64Gauge("cpu_usage")
	memoryGauge, _ := perfMeter.Int64Gauge("allocated_mb")
	goroutineGauge, _ := perfMeter.Int64Gauge("goroutine_count")

	sample := func() {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		usage, err := cpu.Percent(0, false)
		if err == nil && len(usage) > 0 {
			cpuGauge.Record(ctx, usage[0])
		} else if err != nil {
			tel.ReportWarning("perf_stats.cpu", err)
		}
		memoryGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
		goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sample()
			case <-ctx.Done():
				return
			case <-done:
				sample()
				return
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}
