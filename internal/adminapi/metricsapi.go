package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"

	"github.com/Otitodev/wa-assist/internal/webserver"
	"github.com/Otitodev/wa-assist/pkg/metrics"
)

func registerMetricsRoutes() {
	webserver.ApiGET("/metrics/counters", getCounters)
	webserver.ApiGET("/metrics/series/:name", getMetricSeries)
}

func getCounters(c echo.Context) error {
	return ok(c, map[string]int64{
		metrics.CounterWebhookIngested:  metrics.CounterValue(metrics.CounterWebhookIngested),
		metrics.CounterWebhookDuplicate: metrics.CounterValue(metrics.CounterWebhookDuplicate),
		metrics.CounterReplySent:        metrics.CounterValue(metrics.CounterReplySent),
		metrics.CounterReplyFailed:      metrics.CounterValue(metrics.CounterReplyFailed),
		metrics.CounterSessionPaused:    metrics.CounterValue(metrics.CounterSessionPaused),
		metrics.CounterSessionResumed:   metrics.CounterValue(metrics.CounterSessionResumed),
	})
}

// getMetricSeries returns raw data points for one metric, defaulting to the
// last 24 hours.
func getMetricSeries(c echo.Context) error {
	name := c.Param("name")
	end := time.Now().Unix()
	start := end - 24*3600
	if v := cast.ToInt64(c.QueryParam("start")); v > 0 {
		start = v
	}
	if v := cast.ToInt64(c.QueryParam("end")); v > 0 {
		end = v
	}
	points, err := metrics.Select(name, start, end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METRICS_ERROR", "Failed to query metric", err.Error())
	}
	return ok(c, map[string]interface{}{"name": name, "points": points})
}
