package webserver

import (
	"strconv"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/auth"
)

const (
	// ClaimsKey holds the verified *auth.Claims of a gated request.
	ClaimsKey = "customer"

	gateErrorKey = "auth_error"
)

var errMissingAuthorization = errors.New("missing authorization header")

// credentialFromHeader takes the second whitespace separated field of the
// Authorization header, whatever the scheme word is.
func credentialFromHeader(c echo.Context) ([]string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return nil, errMissingAuthorization
	}
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return []string{""}, nil
	}
	return []string{fields[1]}, nil
}

// AuthGate admits requests carrying a token verified by tokens. A request
// without an Authorization header fails Unauthorized, one whose credential
// does not verify fails InvalidToken. Either way the handler never runs.
func AuthGate(tokens *auth.TokenService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:       ClaimsKey,
		TokenLookupFuncs: []middleware.ValuesExtractor{credentialFromHeader},
		ParseTokenFunc: func(c echo.Context, credential string) (interface{}, error) {
			if credential == "" {
				err := apperr.InvalidToken(errors.New("empty credential"))
				c.Set(gateErrorKey, err)
				return nil, err
			}
			claims, err := tokens.Verify(credential)
			if err != nil {
				c.Set(gateErrorKey, err)
				return nil, err
			}
			return claims, nil
		},
		SuccessHandler: func(c echo.Context) {
			if claims, ok := c.Get(ClaimsKey).(*auth.Claims); ok {
				req := c.Request()
				c.SetRequest(req.WithContext(auth.NewContext(req.Context(), claims)))
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if verr, ok := c.Get(gateErrorKey).(error); ok && apperr.Is(verr, apperr.KindInvalidToken) {
				return verr
			}
			return apperr.Unauthorized("")
		},
	})
}

// ClaimsFrom returns the claims of the authenticated customer, if any.
func ClaimsFrom(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(ClaimsKey).(*auth.Claims)
	return claims, ok
}

// RequireOwner rejects gated requests whose token belongs to a customer other
// than the one named by the path parameter. It is a no-op unless enforce is
// set.
func RequireOwner(param string, enforce bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !enforce {
			return next
		}
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return apperr.Unauthorized("")
			}
			id, err := strconv.ParseInt(c.Param(param), 10, 64)
			if err != nil || id != claims.CustomerID {
				return apperr.InvalidToken(errors.Errorf("token of customer %d used on %q", claims.CustomerID, c.Param(param)))
			}
			return next(c)
		}
	}
}
