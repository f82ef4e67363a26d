package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/store"
	"github.com/talkincode/storefront/internal/webserver"
)

type registerPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=200"`
	LastName string `json:"lastName" validate:"max=200"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type validatePasswordPayload struct {
	CustomerID  interface{} `json:"customerId"`
	OldPassword string      `json:"oldPassword"`
}

type changePasswordPayload struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type customerPatch struct {
	Email    *string `json:"email,omitempty" mapstructure:"email"`
	Name     *string `json:"name,omitempty" mapstructure:"name"`
	LastName *string `json:"lastName,omitempty" mapstructure:"lastName"`
}

type authResponse struct {
	Token    string           `json:"token"`
	Customer *domain.Customer `json:"customer"`
}

func registerCustomerRoutes() {
	webserver.ApiPOST("/customers", registerCustomer)
	webserver.ApiPOST("/login/customers", loginCustomer)
	webserver.ApiPOST("/customers/validate-password", validatePassword, gated("")...)
	webserver.ApiGET("/customers", listCustomers)
	webserver.ApiGET("/customers/:id", getCustomer)
	webserver.ApiPUT("/customers/:id", changePassword, gated("id")...)
	webserver.ApiPATCH("/customers/:id", patchCustomer, gated("id")...)
	webserver.ApiDELETE("/customers/:id", deleteCustomer, gated("id")...)
	webserver.ApiDELETE("/customers", deleteAllCustomers, gated("")...)
}

func issueToken(c echo.Context, customer *domain.Customer) (string, error) {
	return GetAppContext(c).Tokens().Issue(auth.Claims{
		CustomerID: customer.ID,
		Email:      customer.Email,
	}, 0)
}

// @Summary register a customer
// @Tags Customers
// @Param customer body adminapi.registerPayload true "Customer information"
// @Success 201 {object} adminapi.authResponse
// @Router /api/customers [post]
func registerCustomer(c echo.Context) error {
	var payload registerPayload
	if err := bindPayload(c, &payload); err != nil {
		return err
	}
	digest, err := GetAppContext(c).Hasher().Hash(payload.Password)
	if err != nil {
		return apperr.Internal(err, "")
	}
	now := time.Now()
	customer := &domain.Customer{
		Email:        payload.Email,
		PasswordHash: digest,
		Name:         strings.TrimSpace(payload.Name),
		LastName:     strings.TrimSpace(payload.LastName),
		Orders:       domain.RefList{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := GetRelations(c).CreateCustomer(c.Request().Context(), customer); err != nil {
		return err
	}

	token, err := issueToken(c, customer)
	if err != nil {
		return err
	}
	zap.L().Info("customer registered", zap.Int64("customer_id", customer.ID))
	return created(c, authResponse{Token: token, Customer: customer})
}

// @Summary log a customer in
// @Tags Customers
// @Param credentials body adminapi.loginPayload true "Email and password"
// @Success 200 {object} adminapi.authResponse
// @Router /api/login/customers [post]
func loginCustomer(c echo.Context) error {
	var payload loginPayload
	if err := bindPayload(c, &payload); err != nil {
		return err
	}
	customer, err := GetStore(c).Customers.FindByEmail(c.Request().Context(), payload.Email)
	if err != nil && !store.IsNotFound(err) {
		return apperr.Internal(err, "")
	}
	if customer == nil || !GetAppContext(c).Hasher().Compare(payload.Password, customer.PasswordHash) {
		return apperr.Unauthorized("Authentication failed")
	}

	token, err := issueToken(c, customer)
	if err != nil {
		return err
	}
	return ok(c, authResponse{Token: token, Customer: customer})
}

// @Summary check a customer's current password
// @Tags Customers
// @Param payload body adminapi.validatePasswordPayload true "Customer ID and password"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /api/customers/validate-password [post]
func validatePassword(c echo.Context) error {
	var payload validatePasswordPayload
	if err := bindPayload(c, &payload); err != nil {
		return err
	}
	invalid := apperr.Unauthorized("Invalid old password")
	id, err := cast.ToInt64E(payload.CustomerID)
	if err != nil || id <= 0 {
		return invalid
	}
	customer, err := GetStore(c).Customers.FindByID(c.Request().Context(), id)
	if store.IsNotFound(err) {
		return invalid
	}
	if err != nil {
		return apperr.Internal(err, "")
	}
	if !GetAppContext(c).Hasher().Compare(payload.OldPassword, customer.PasswordHash) {
		return invalid
	}
	return message(c, http.StatusOK, "Password validation successful")
}

// @Summary get the customer list
// @Tags Customers
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {array} domain.Customer
// @Router /api/customers [get]
func listCustomers(c echo.Context) error {
	page, pageSize := parsePagination(c)
	customers, err := GetStore(c).Customers.List(c.Request().Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		return apperr.Internal(err, "")
	}
	return ok(c, customers)
}

func findCustomer(c echo.Context) (*domain.Customer, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, err
	}
	customer, err := GetStore(c).Customers.FindByID(c.Request().Context(), id)
	if store.IsNotFound(err) {
		return nil, apperr.NotFound("Customer not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "")
	}
	return customer, nil
}

// @Summary get customer detail
// @Tags Customers
// @Param id path int true "Customer ID"
// @Success 200 {object} domain.Customer
// @Router /api/customers/{id} [get]
func getCustomer(c echo.Context) error {
	customer, err := findCustomer(c)
	if err != nil {
		return err
	}
	return ok(c, customer)
}

// @Summary change a customer's password
// @Tags Customers
// @Param id path int true "Customer ID"
// @Param payload body adminapi.changePasswordPayload true "Old and new password"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /api/customers/{id} [put]
func changePassword(c echo.Context) error {
	var payload changePasswordPayload
	if err := bindPayload(c, &payload); err != nil {
		return err
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	hasher := GetAppContext(c).Hasher()
	_, err = GetRelations(c).UpdateCustomer(c.Request().Context(), id, func(customer *domain.Customer) error {
		if !hasher.Compare(payload.OldPassword, customer.PasswordHash) {
			return apperr.Unauthorized("Invalid old password")
		}
		digest, err := hasher.Hash(payload.NewPassword)
		if err != nil {
			return apperr.Internal(err, "")
		}
		customer.PasswordHash = digest
		return nil
	})
	if err != nil {
		return err
	}
	zap.L().Info("customer password changed", zap.Int64("customer_id", id))
	return message(c, http.StatusOK, "Password updated successfully")
}

// @Summary update customer profile fields
// @Tags Customers
// @Param id path int true "Customer ID"
// @Param customer body adminapi.customerPatch true "Fields to change"
// @Success 200 {object} domain.Customer
// @Security BearerAuth
// @Router /api/customers/{id} [patch]
func patchCustomer(c echo.Context) error {
	var patch customerPatch
	if err := bindPatch(c, &patch); err != nil {
		return err
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if err := c.Validate(&struct {
			Email string `json:"email" validate:"required,email"`
		}{email}); err != nil {
			return err
		}
		patch.Email = &email
	}

	ctx := c.Request().Context()
	customers := GetStore(c).Customers
	if patch.Email != nil {
		unlock := GetRelations(c).LockEmail(*patch.Email)
		defer unlock()
	}
	customer, err := GetRelations(c).UpdateCustomer(ctx, id, func(customer *domain.Customer) error {
		if patch.Email != nil && *patch.Email != customer.Email {
			other, err := customers.FindByEmail(ctx, *patch.Email)
			if err == nil && other.ID != customer.ID {
				return apperr.Conflict("Email already in use")
			}
			if err != nil && !store.IsNotFound(err) {
				return apperr.Internal(err, "")
			}
			customer.Email = *patch.Email
		}
		if patch.Name != nil {
			customer.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.LastName != nil {
			customer.LastName = strings.TrimSpace(*patch.LastName)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ok(c, customer)
}

// @Summary delete a customer
// @Tags Customers
// @Param id path int true "Customer ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/customers/{id} [delete]
func deleteCustomer(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	customer, err := GetRelations(c).DeleteCustomer(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, map[string]interface{}{
		"message":  "Customer deleted successfully",
		"customer": customer,
	})
}

// @Summary delete every customer
// @Tags Customers
// @Success 204
// @Security BearerAuth
// @Router /api/customers [delete]
func deleteAllCustomers(c echo.Context) error {
	n, err := GetRelations(c).DeleteAllCustomers(c.Request().Context())
	if err != nil {
		return err
	}
	zap.L().Warn("all customers deleted", zap.Int64("count", n))
	return c.NoContent(http.StatusNoContent)
}
