package webserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/auth"
)

func newGatedEcho(tokens *auth.TokenService, enforce bool) (*echo.Echo, *int) {
	e := echo.New()
	e.HTTPErrorHandler = httpErrorHandler
	calls := 0
	e.PUT("/customers/:id", func(c echo.Context) error {
		calls++
		claims, ok := auth.FromContext(c.Request().Context())
		if !ok {
			return apperr.Internal(nil, "claims missing from request context")
		}
		fromEcho, _ := ClaimsFrom(c)
		if fromEcho != claims {
			return apperr.Internal(nil, "claims differ")
		}
		return c.JSON(http.StatusOK, claims)
	}, AuthGate(tokens), RequireOwner("id", enforce))
	return e, &calls
}

func doPut(e *echo.Echo, path, authorization string) (*httptest.ResponseRecorder, ErrorBody) {
	req := httptest.NewRequest(http.MethodPut, path, nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var body ErrorBody
	_ = jsoniter.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func issue(t *testing.T, tokens *auth.TokenService, id int64, ttl time.Duration) string {
	t.Helper()
	token, err := tokens.Issue(auth.Claims{CustomerID: id, Email: "a@b.com"}, ttl)
	require.NoError(t, err)
	return token
}

func TestGateMissingHeader(t *testing.T) {
	e, calls := newGatedEcho(auth.NewTokenService("k", 0), false)

	rec, body := doPut(e, "/customers/1", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", body.Message)
	assert.Equal(t, "UNAUTHORIZED", body.Code)
	assert.Zero(t, *calls)
}

func TestGateInvalidCredentials(t *testing.T) {
	tokens := auth.NewTokenService("k", 0)
	foreign := issue(t, auth.NewTokenService("other", 0), 1, 0)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		CustomerID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"garbage", "Bearer not-a-token"},
		{"foreign key", "Bearer " + foreign},
		{"expired", "Bearer " + expired},
		{"scheme only", "Bearer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, calls := newGatedEcho(tokens, false)

			rec, body := doPut(e, "/customers/1", tt.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Invalid token", body.Message)
			assert.Zero(t, *calls)
		})
	}
}

func TestGateAdmitsValidToken(t *testing.T) {
	tokens := auth.NewTokenService("k", 0)
	token := issue(t, tokens, 7, 0)

	for _, header := range []string{"Bearer " + token, "Token " + token, "Bearer   " + token} {
		e, calls := newGatedEcho(tokens, false)

		rec, _ := doPut(e, "/customers/1", header)

		assert.Equal(t, http.StatusOK, rec.Code, header)
		assert.Equal(t, 1, *calls)
		assert.Contains(t, rec.Body.String(), `"customer_id":"7"`)
	}
}

func TestRequireOwner(t *testing.T) {
	tokens := auth.NewTokenService("k", 0)
	token := issue(t, tokens, 7, 0)

	e, calls := newGatedEcho(tokens, true)
	rec, body := doPut(e, "/customers/8", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", body.Message)
	assert.Zero(t, *calls)

	rec, _ = doPut(e, "/customers/7", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	e, calls = newGatedEcho(tokens, false)
	rec, _ = doPut(e, "/customers/8", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code, "ownership is only checked when enforced")
	assert.Equal(t, 1, *calls)
}

func TestErrorResponse(t *testing.T) {
	status, body := errorResponse(apperr.NotFound("Customer not found"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, ErrorBody{Code: "NOT_FOUND", Message: "Customer not found"}, body)

	status, body = errorResponse(echo.ErrMethodNotAllowed)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Code)

	status, body = errorResponse(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", body.Message)
}

func TestValidator(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
	}
	v := newRequestValidator()

	assert.NoError(t, v.Validate(&payload{Email: "a@b.com"}))
	err := v.Validate(&payload{Email: "nope"})
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Equal(t, "Invalid email", apperr.Message(err))
}
