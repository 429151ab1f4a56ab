package adminapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"

	"github.com/Otitodev/wa-assist/internal/domain"
	"github.com/Otitodev/wa-assist/internal/webserver"
)

func registerEventRoutes() {
	webserver.ApiGET("/events", listEvents)
	webserver.ApiGET("/events/export", exportEvents)
	webserver.ApiGET("/events/ledger", listLedger)
}

func listEvents(c echo.Context) error {
	page, pageSize := parsePagination(c)

	base := GetDB(c).Model(&domain.MessageEvent{})
	if tenantID := c.QueryParam("tenant_id"); tenantID != "" {
		base = base.Where("tenant_id = ?", tenantID)
	}
	if chatID := c.QueryParam("chat_id"); chatID != "" {
		base = base.Where("chat_id = ?", chatID)
	}
	if from := c.QueryParam("from"); from != "" {
		base = base.Where("created_at >= ?", from)
	}
	if to := c.QueryParam("to"); to != "" {
		base = base.Where("created_at <= ?", to)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query events", err.Error())
	}
	var events []domain.MessageEvent
	if err := base.Order("created_at DESC").Offset((page-1)*pageSize).Limit(pageSize).Find(&events).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query events", err.Error())
	}
	return paged(c, events, total, page, pageSize)
}

type eventExportRow struct {
	TenantID    int64  `csv:"tenant_id"`
	ChatID      string `csv:"chat_id"`
	MessageID   string `csv:"message_id"`
	FromMe      bool   `csv:"from_me"`
	MessageType string `csv:"message_type"`
	Text        string `csv:"text"`
	OccurredAt  string `csv:"occurred_at"`
	CreatedAt   string `csv:"created_at"`
}

// exportEvents streams the filtered messages as a CSV download.
func exportEvents(c echo.Context) error {
	base := GetDB(c).Model(&domain.MessageEvent{})
	if tenantID := c.QueryParam("tenant_id"); tenantID != "" {
		base = base.Where("tenant_id = ?", tenantID)
	}
	if chatID := c.QueryParam("chat_id"); chatID != "" {
		base = base.Where("chat_id = ?", chatID)
	}

	var events []domain.MessageEvent
	if err := base.Order("created_at DESC").Limit(10000).Find(&events).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query events", err.Error())
	}

	rows := make([]eventExportRow, 0, len(events))
	for _, evt := range events {
		occurred := ""
		if evt.OccurredAt != nil {
			occurred = evt.OccurredAt.Format(time.RFC3339)
		}
		rows = append(rows, eventExportRow{
			TenantID:    evt.TenantID,
			ChatID:      evt.ChatID,
			MessageID:   evt.MessageID,
			FromMe:      evt.FromMe,
			MessageType: evt.MessageType,
			Text:        evt.Text,
			OccurredAt:  occurred,
			CreatedAt:   evt.CreatedAt.Format(time.RFC3339),
		})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="messages-%s.csv"`, time.Now().Format("20060102-150405")))
	c.Response().WriteHeader(http.StatusOK)
	return gocsv.Marshal(rows, c.Response())
}

// listLedger exposes the idempotency markers with their action labels.
func listLedger(c echo.Context) error {
	page, pageSize := parsePagination(c)

	base := GetDB(c).Model(&domain.ProcessedEvent{})
	if tenantID := c.QueryParam("tenant_id"); tenantID != "" {
		base = base.Where("tenant_id = ?", tenantID)
	}
	if action := c.QueryParam("action"); action != "" {
		base = base.Where("action_taken = ?", action)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query ledger", err.Error())
	}
	var markers []domain.ProcessedEvent
	if err := base.Order("processed_at DESC").Offset((page-1)*pageSize).Limit(pageSize).Find(&markers).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query ledger", err.Error())
	}
	return paged(c, markers, total, page, pageSize)
}
