package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Otitodev/wa-assist/internal/domain"
	"github.com/Otitodev/wa-assist/internal/ingest"
	"github.com/Otitodev/wa-assist/internal/webserver"
)

func registerSessionRoutes() {
	webserver.ApiGET("/sessions", listSessions)
	webserver.ApiGET("/sessions/:id", getSession)
	webserver.ApiPOST("/sessions/:id/pause", pauseSession)
	webserver.ApiPOST("/sessions/:id/resume", resumeSession)
}

func listSessions(c echo.Context) error {
	page, pageSize := parsePagination(c)

	base := GetDB(c).Model(&domain.Session{})
	if tenantID := c.QueryParam("tenant_id"); tenantID != "" {
		base = base.Where("tenant_id = ?", tenantID)
	}
	if chatID := c.QueryParam("chat_id"); chatID != "" {
		base = base.Where("chat_id = ?", chatID)
	}
	switch strings.ToLower(c.QueryParam("paused")) {
	case "true", "1":
		base = base.Where("is_paused = ?", true)
	case "false", "0":
		base = base.Where("is_paused = ?", false)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query sessions", err.Error())
	}
	var sessions []domain.Session
	if err := base.Order("updated_at DESC").Offset((page-1)*pageSize).Limit(pageSize).Find(&sessions).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query sessions", err.Error())
	}
	return paged(c, sessions, total, page, pageSize)
}

func getSession(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid session ID", nil)
	}
	var sess domain.Session
	if err := GetDB(c).Where("id = ?", id).First(&sess).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query session", err.Error())
	}
	return ok(c, sess)
}

// pauseSession pauses manually from the dashboard. Idempotent: pausing a
// paused session answers 200 with the current state.
func pauseSession(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid session ID", nil)
	}
	var sess domain.Session
	if err := GetDB(c).Where("id = ?", id).First(&sess).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query session", err.Error())
	}

	if err := deps.Sessions.Pause(c.Request().Context(), sess.TenantID, sess.ChatID, domain.PauseReasonManual); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to pause session", err.Error())
	}
	if deps.Bus != nil && !sess.IsPaused {
		deps.Bus.Publish(ingest.TopicSessionPaused, "", sess.ChatID, domain.PauseReasonManual)
	}
	GetDB(c).Where("id = ?", id).First(&sess)
	return ok(c, sess)
}

func resumeSession(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid session ID", nil)
	}
	var sess domain.Session
	if err := GetDB(c).Where("id = ?", id).First(&sess).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query session", err.Error())
	}

	if err := deps.Sessions.Resume(c.Request().Context(), sess.TenantID, sess.ChatID); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to resume session", err.Error())
	}
	if deps.Bus != nil && sess.IsPaused {
		deps.Bus.Publish(ingest.TopicSessionResumed, "", sess.ChatID, "manual")
	}
	GetDB(c).Where("id = ?", id).First(&sess)
	return ok(c, sess)
}
