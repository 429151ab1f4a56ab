package adminapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Otitodev/wa-assist/internal/ingest"
	"github.com/Otitodev/wa-assist/internal/webserver"
)

func registerWebhookRoutes() {
	webserver.PubPOST("/webhooks/evolution", postEvolutionWebhook)
}

// postEvolutionWebhook feeds one gateway delivery through the ingestion
// pipeline. Duplicates and processed messages both acknowledge with 200 so
// the gateway stops retrying; only transient storage failures return 5xx.
func postEvolutionWebhook(c echo.Context) error {
	if secret := deps.Config.Webhook.Secret; secret != "" {
		if c.Request().Header.Get("X-Webhook-Secret") != secret {
			return fail(c, http.StatusUnauthorized, "INVALID_SECRET", "Webhook secret mismatch", nil)
		}
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "Unable to read request body", nil)
	}

	result, err := deps.Pipeline.Ingest(c.Request().Context(), body)
	switch {
	case errors.Is(err, ingest.ErrMalformedPayload):
		return fail(c, http.StatusBadRequest, "MALFORMED_PAYLOAD", "Webhook payload cannot be parsed", err.Error())
	case errors.Is(err, ingest.ErrUnknownTenant):
		return fail(c, http.StatusNotFound, "UNKNOWN_INSTANCE", "No tenant matches this instance", nil)
	case err != nil:
		zap.L().Error("webhook ingestion failed",
			zap.String("namespace", "adminapi"), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "INGEST_ERROR", "Webhook could not be processed", nil)
	}
	return ok(c, result)
}
