package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"

	"github.com/Otitodev/wa-assist/internal/webserver"
)

func registerSweepRoutes() {
	webserver.PubPOST("/cron/auto-resume", postCronAutoResume)
}

// postCronAutoResume triggers the maintenance pass from an external
// scheduler. Guarded by a shared secret instead of operator JWT so cron
// systems can call it directly.
func postCronAutoResume(c echo.Context) error {
	secret := deps.Config.Sweeper.CronSecret
	if secret == "" || c.Request().Header.Get("X-Cron-Secret") != secret {
		return fail(c, http.StatusUnauthorized, "INVALID_SECRET", "Cron secret mismatch", nil)
	}
	idle := time.Duration(cast.ToInt(c.QueryParam("idle_threshold_minutes"))) * time.Minute
	result, err := deps.Sweeper.SweepWithThreshold(c.Request().Context(), idle)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "SWEEP_ERROR", "Maintenance pass failed", err.Error())
	}
	return ok(c, result)
}
