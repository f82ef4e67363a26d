package webserver

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/talkincode/storefront/internal/apperr"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		zap.L().Error("write error response", zap.Error(err))
	}
}

func errorResponse(err error) (int, ErrorBody) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Kind.Status(), ErrorBody{Code: ae.Kind.String(), Message: ae.Message}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := strings.ToUpper(strings.ReplaceAll(http.StatusText(he.Code), " ", "_"))
		return he.Code, ErrorBody{Code: code, Message: fmt.Sprint(he.Message)}
	}
	kind := apperr.KindInternal
	return kind.Status(), ErrorBody{Code: kind.String(), Message: "Internal Server Error"}
}

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &requestValidator{validate: v}
}

// Validate reports the first failing field as invalid input.
func (v *requestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return apperr.InvalidInput("Invalid " + fieldErrs[0].Field())
	}
	return apperr.Wrap(apperr.KindInvalidInput, err, "Invalid data")
}
