// Package adminapi implements the REST handlers of the storefront.
package adminapi

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mitchellh/mapstructure"

	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/relations"
	"github.com/talkincode/storefront/internal/store"
	"github.com/talkincode/storefront/internal/webserver"
)

const (
	defaultPage     = 1
	defaultPageSize = 3
	maxPageSize     = 500

	// maxPage keeps (page-1)*pageSize within int
	maxPage = math.MaxInt / maxPageSize
)

// Init registers every API route on the current web server.
func Init() {
	registerCustomerRoutes()
	registerOrderRoutes()
	registerItemRoutes()
	registerReviewRoutes()
	registerIntegrityRoutes()
}

func GetAppContext(c echo.Context) app.AppContext {
	return webserver.GetAppContext(c)
}

func GetStore(c echo.Context) *store.Store {
	return GetAppContext(c).Store()
}

func GetRelations(c echo.Context) *relations.Manager {
	return GetAppContext(c).Relations()
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, data)
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"message": msg})
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput("Invalid ID format")
	}
	return id, nil
}

// parsePagination reads page and limit, falling back to the defaults for
// missing or non-positive values.
func parsePagination(c echo.Context) (page, pageSize int) {
	page, pageSize = defaultPage, defaultPageSize
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(c.QueryParam("limit")); err == nil && ps > 0 {
		pageSize = ps
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page > maxPage {
		page = maxPage
	}
	return page, pageSize
}

func bindPayload(c echo.Context, payload interface{}) error {
	if err := c.Bind(payload); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, err, "Invalid data")
	}
	if err := c.Validate(payload); err != nil {
		return err
	}
	return nil
}

// bindPatch decodes a partial update body into patch, whose pointer fields
// mark what was sent. Fields patch does not declare are rejected.
func bindPatch(c echo.Context, patch interface{}) error {
	var body map[string]interface{}
	if err := new(echo.DefaultBinder).BindBody(c, &body); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, err, "Invalid data")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      patch,
	})
	if err != nil {
		return apperr.Internal(err, "")
	}
	if err := decoder.Decode(body); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, err, "Invalid data")
	}
	return nil
}

// gated applies the auth gate and, when enforced, the ownership check on
// the customer path parameter.
func gated(ownerParam string) []echo.MiddlewareFunc {
	m := []echo.MiddlewareFunc{webserver.Auth()}
	if ownerParam != "" {
		m = append(m, webserver.RequireOwner(ownerParam, webserver.EnforceOwnership()))
	}
	return m
}
