package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Otitodev/wa-assist/internal/domain"
	"github.com/Otitodev/wa-assist/internal/webserver"
	"github.com/Otitodev/wa-assist/pkg/common"
)

func registerTenantRoutes() {
	webserver.ApiGET("/tenants", listTenants)
	webserver.ApiGET("/tenants/:id", getTenant)
	webserver.ApiPOST("/tenants", createTenant)
	webserver.ApiPUT("/tenants/:id", updateTenant)
	webserver.ApiDELETE("/tenants/:id", deleteTenant)
}

func listTenants(c echo.Context) error {
	page, pageSize := parsePagination(c)

	base := GetDB(c).Model(&domain.Tenant{})
	if keyword := strings.TrimSpace(c.QueryParam("keyword")); keyword != "" {
		like := "%" + keyword + "%"
		base = base.Where("name LIKE ? OR instance_name LIKE ?", like, like)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query tenants", err.Error())
	}
	var tenants []domain.Tenant
	if err := base.Order("id DESC").Offset((page-1)*pageSize).Limit(pageSize).Find(&tenants).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query tenants", err.Error())
	}
	return paged(c, tenants, total, page, pageSize)
}

func getTenant(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid tenant ID", nil)
	}
	var tenant domain.Tenant
	if err := GetDB(c).Where("id = ?", id).First(&tenant).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query tenant", err.Error())
	}
	return ok(c, tenant)
}

type tenantPayload struct {
	Name         string `json:"name"`
	InstanceName string `json:"instance_name"`
	EvoServerURL string `json:"evo_server_url"`
	EvoApikey    string `json:"evo_apikey"`
	SystemPrompt string `json:"system_prompt"`
	LlmProvider  string `json:"llm_provider"`
	Remark       string `json:"remark"`
}

func createTenant(c echo.Context) error {
	var payload tenantPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse tenant parameters", nil)
	}
	instance := strings.TrimSpace(payload.InstanceName)
	if instance == "" {
		return fail(c, http.StatusBadRequest, "MISSING_INSTANCE", "Tenant instance_name is required", nil)
	}
	if strings.TrimSpace(payload.EvoServerURL) == "" {
		return fail(c, http.StatusBadRequest, "MISSING_SERVER_URL", "Tenant evo_server_url is required", nil)
	}

	var dup domain.Tenant
	if err := GetDB(c).Where("instance_name = ?", instance).First(&dup).Error; err == nil {
		return fail(c, http.StatusConflict, "DUPLICATE_INSTANCE", "A tenant with this instance name already exists", nil)
	}

	tenant := domain.Tenant{
		ID:           common.UUIDint64(),
		Name:         strings.TrimSpace(payload.Name),
		InstanceName: instance,
		EvoServerURL: strings.TrimRight(strings.TrimSpace(payload.EvoServerURL), "/"),
		EvoApikey:    payload.EvoApikey,
		SystemPrompt: payload.SystemPrompt,
		LlmProvider:  payload.LlmProvider,
		Remark:       payload.Remark,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := GetDB(c).Create(&tenant).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create tenant", err.Error())
	}
	return ok(c, tenant)
}

func updateTenant(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid tenant ID", nil)
	}
	var payload tenantPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse tenant parameters", nil)
	}
	var tenant domain.Tenant
	if err := GetDB(c).Where("id = ?", id).First(&tenant).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query tenant", err.Error())
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if payload.Name != "" {
		updates["name"] = strings.TrimSpace(payload.Name)
	}
	if payload.EvoServerURL != "" {
		updates["evo_server_url"] = strings.TrimRight(strings.TrimSpace(payload.EvoServerURL), "/")
	}
	if payload.EvoApikey != "" {
		updates["evo_apikey"] = payload.EvoApikey
	}
	if payload.SystemPrompt != "" {
		updates["system_prompt"] = payload.SystemPrompt
	}
	if payload.LlmProvider != "" {
		updates["llm_provider"] = payload.LlmProvider
	}
	if payload.Remark != "" {
		updates["remark"] = payload.Remark
	}
	// Changing the routing key would orphan sessions and stored messages.
	if instance := strings.TrimSpace(payload.InstanceName); instance != "" && instance != tenant.InstanceName {
		return fail(c, http.StatusBadRequest, "INSTANCE_IMMUTABLE", "Tenant instance_name cannot be changed", nil)
	}

	if err := GetDB(c).Model(&domain.Tenant{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update tenant", err.Error())
	}
	GetDB(c).Where("id = ?", id).First(&tenant)
	return ok(c, tenant)
}

// deleteTenant erases the tenant and everything recorded under it.
func deleteTenant(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid tenant ID", nil)
	}
	db := GetDB(c)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", id).Delete(&domain.ProcessedEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&domain.MessageEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&domain.Session{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Tenant{}).Error
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete tenant", err.Error())
	}
	return ok(c, map[string]interface{}{"deleted": id})
}
