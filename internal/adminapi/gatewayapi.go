package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Otitodev/wa-assist/internal/domain"
	"github.com/Otitodev/wa-assist/internal/gateway"
	"github.com/Otitodev/wa-assist/internal/ingest"
	"github.com/Otitodev/wa-assist/internal/webserver"
	"github.com/Otitodev/wa-assist/pkg/common"
)

func registerGatewayRoutes() {
	webserver.ApiPOST("/gateway/send", postGatewaySend)
	webserver.ApiGET("/instances/:name/state", getInstanceState)
	webserver.ApiPOST("/instances/:name/test-webhook", postTestWebhook)
}

type sendPayload struct {
	TenantID int64  `json:"tenant_id,string"`
	ChatID   string `json:"chat_id"`
	Text     string `json:"text"`
}

// postGatewaySend sends a text on behalf of a tenant from the dashboard.
// The outbound message records as self-originated, so the usual takeover
// rule applies when its echo is not absorbed first.
func postGatewaySend(c echo.Context) error {
	var payload sendPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse send parameters", nil)
	}
	if payload.TenantID == 0 || payload.ChatID == "" || strings.TrimSpace(payload.Text) == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "tenant_id, chat_id and text are required", nil)
	}

	var tenant domain.Tenant
	if err := GetDB(c).Where("id = ?", payload.TenantID).First(&tenant).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query tenant", err.Error())
	}

	ctx := c.Request().Context()
	sentID, err := deps.Gateway.SendText(ctx, tenant.EvoServerURL, tenant.EvoApikey, tenant.InstanceName, payload.ChatID, payload.Text)
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			return fail(c, http.StatusBadGateway, "GATEWAY_ERROR", "Gateway rejected the message", apiErr.Error())
		}
		return fail(c, http.StatusBadGateway, "GATEWAY_UNREACHABLE", "Gateway did not answer", err.Error())
	}

	outboundID := sentID
	if outboundID == "" {
		outboundID = common.UUID()
	}
	now := time.Now().UTC()
	store := ingest.NewGormEventStore(GetDB(c))
	if _, err := store.Append(ctx, &domain.MessageEvent{
		TenantID:    tenant.ID,
		ChatID:      payload.ChatID,
		MessageID:   outboundID,
		FromMe:      true,
		MessageType: "conversation",
		Text:        payload.Text,
		OccurredAt:  &now,
	}); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Message sent but recording failed", err.Error())
	}
	return ok(c, map[string]interface{}{"message_id": outboundID})
}

func getInstanceState(c echo.Context) error {
	name := c.Param("name")
	var tenant domain.Tenant
	if err := GetDB(c).Where("instance_name = ?", name).First(&tenant).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "TENANT_NOT_FOUND", "No tenant matches this instance", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query tenant", err.Error())
	}

	state, err := deps.Gateway.ConnectionState(c.Request().Context(), tenant.EvoServerURL, tenant.EvoApikey, tenant.InstanceName)
	if err != nil {
		return fail(c, http.StatusBadGateway, "GATEWAY_UNREACHABLE", "Gateway did not answer", err.Error())
	}
	return ok(c, map[string]interface{}{"instance": name, "state": state})
}

type testWebhookPayload struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
	FromMe bool   `json:"from_me"`
}

// postTestWebhook synthesizes one gateway delivery for an instance and runs
// it through the real pipeline. Useful to verify tenant wiring end to end
// without involving the gateway.
func postTestWebhook(c echo.Context) error {
	name := c.Param("name")
	var payload testWebhookPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse test parameters", nil)
	}
	if payload.ChatID == "" {
		payload.ChatID = "test@s.whatsapp.net"
	}
	if payload.Text == "" {
		payload.Text = "test message"
	}

	body, err := json.Marshal(map[string]interface{}{
		"event":    ingest.EventTypeMessage,
		"instance": name,
		"data": map[string]interface{}{
			"key": map[string]interface{}{
				"remoteJid": payload.ChatID,
				"fromMe":    payload.FromMe,
				"id":        "test-" + common.UUID(),
			},
			"messageType":      "conversation",
			"messageTimestamp": time.Now().Unix(),
			"message":          map[string]interface{}{"conversation": payload.Text},
		},
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "ENCODE_ERROR", "Failed to build test payload", nil)
	}

	result, err := deps.Pipeline.Ingest(c.Request().Context(), body)
	switch {
	case errors.Is(err, ingest.ErrUnknownTenant):
		return fail(c, http.StatusNotFound, "UNKNOWN_INSTANCE", "No tenant matches this instance", nil)
	case err != nil:
		return fail(c, http.StatusInternalServerError, "INGEST_ERROR", "Test webhook failed", err.Error())
	}
	return ok(c, result)
}
