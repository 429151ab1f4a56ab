// Package metrics stores application gauges and counters in an embedded
// time-series storage under the working directory.
package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

// Metric names recorded by the application.
const (
	CounterWebhookIngested  = "wa_webhook_ingested"
	CounterWebhookDuplicate = "wa_webhook_duplicate"
	CounterReplySent        = "wa_reply_sent"
	CounterReplyFailed      = "wa_reply_failed"
	CounterSessionPaused    = "wa_session_paused"
	CounterSessionResumed   = "wa_session_resumed"
	GaugeCPUUsage           = "system_cpu_usage"
	GaugeMemUsage           = "system_mem_usage"
)

var (
	mu       sync.Mutex
	storage  tstorage.Storage
	counters = map[string]float64{}
)

// InitMetrics opens the embedded time-series store under workdir/metrics.
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(7*24*time.Hour),
	)
	if err != nil {
		return err
	}
	storage = s
	return nil
}

// SetGauge records the current value of a gauge metric.
func SetGauge(name string, value int64) {
	insert(name, float64(value))
}

// IncrCounter increments a monotonic counter and records its new value.
func IncrCounter(name string, delta int64) {
	mu.Lock()
	counters[name] += float64(delta)
	v := counters[name]
	mu.Unlock()
	insert(name, v)
}

// CounterValue returns the in-process value of a counter.
func CounterValue(name string) int64 {
	mu.Lock()
	defer mu.Unlock()
	return int64(counters[name])
}

// Select returns data points for a metric within [start, end].
func Select(name string, start, end int64) ([]*tstorage.DataPoint, error) {
	mu.Lock()
	s := storage
	mu.Unlock()
	if s == nil {
		return nil, nil
	}
	points, err := s.Select(name, nil, start, end)
	if err == tstorage.ErrNoDataPoints {
		return nil, nil
	}
	return points, err
}

func insert(name string, value float64) {
	mu.Lock()
	s := storage
	mu.Unlock()
	if s == nil {
		return
	}
	_ = s.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: value},
		},
	})
}

// Close flushes and closes the underlying storage.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
