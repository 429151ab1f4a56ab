package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Otitodev/wa-assist/internal/domain"
	"github.com/Otitodev/wa-assist/internal/webserver"
	"github.com/Otitodev/wa-assist/pkg/common"
)

func registerAuthRoutes() {
	webserver.PubPOST("/auth/token", postAuthToken)
}

type authPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// postAuthToken exchanges operator credentials for a bearer token accepted
// by the /api group.
func postAuthToken(c echo.Context) error {
	var payload authPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse credentials", nil)
	}
	username := strings.TrimSpace(payload.Username)
	if username == "" || payload.Password == "" {
		return fail(c, http.StatusBadRequest, "MISSING_CREDENTIALS", "Username and password are required", nil)
	}

	var opr domain.SysOpr
	err := GetDB(c).Where("username = ?", username).First(&opr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusUnauthorized, "INVALID_LOGIN", "Invalid username or password", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator", nil)
	}
	if opr.Status != common.ENABLED {
		return fail(c, http.StatusUnauthorized, "ACCOUNT_DISABLED", "Operator account is disabled", nil)
	}
	if opr.Password != common.Sha256HashWithSalt(payload.Password, common.GetSecretSalt()) {
		return fail(c, http.StatusUnauthorized, "INVALID_LOGIN", "Invalid username or password", nil)
	}

	claims := jwt.MapClaims{
		"sub":   opr.Username,
		"level": opr.Level,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(deps.Config.Web.JwtSecret))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to sign token", nil)
	}

	GetDB(c).Model(&domain.SysOpr{}).Where("id = ?", opr.ID).
		Update("last_login", time.Now())
	zap.L().Info("operator login",
		zap.String("namespace", "adminapi"), zap.String("username", opr.Username))
	return ok(c, map[string]interface{}{
		"token":      signed,
		"token_type": "Bearer",
		"expires_in": 24 * 3600,
	})
}
