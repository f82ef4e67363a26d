package adminapi

import (
	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/webserver"
)

func registerIntegrityRoutes() {
	webserver.ApiGET("/integrity", runIntegrityAudit, gated("")...)
}

// runIntegrityAudit scans the stored references on demand. It reports and
// never repairs.
//
// @Summary run the reference integrity audit
// @Tags Integrity
// @Success 200 {object} integrity.Report
// @Security BearerAuth
// @Router /api/integrity [get]
func runIntegrityAudit(c echo.Context) error {
	report, err := GetAppContext(c).RunAudit(c.Request().Context())
	if err != nil {
		return apperr.Internal(err, "Integrity audit failed")
	}
	return ok(c, report)
}
