package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Otitodev/wa-assist/internal/webserver"
)

var startedAt = time.Now()

func registerHealthRoutes() {
	webserver.PubGET("/health", getHealth)
}

func getHealth(c echo.Context) error {
	status := "ok"
	dbState := "up"
	sqlDB, err := GetDB(c).DB()
	if err != nil {
		status, dbState = "degraded", "unavailable"
	} else if err := sqlDB.PingContext(c.Request().Context()); err != nil {
		status, dbState = "degraded", "down"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]interface{}{
		"status":   status,
		"database": dbState,
		"uptime":   time.Since(startedAt).Round(time.Second).String(),
	})
}
