package adminapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/relations"
	"github.com/talkincode/storefront/internal/webserver"
)

const maxReviewBody = 64 << 10

func registerReviewRoutes() {
	webserver.ApiGET("/items/:id/reviews", listReviews)
	webserver.ApiPOST("/items/:id/reviews", attachReview)
	webserver.ApiDELETE("/items/:id/reviews/:reviewId", detachReview)
}

// @Summary list the reviews of an item
// @Tags Reviews
// @Param id path int true "Item ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/items/{id}/reviews [get]
func listReviews(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	reviews, err := GetRelations(c).ListReviews(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, map[string]interface{}{"reviews": reviews})
}

// reviewDraft reads the raw payload so that a rating sent as a string is
// told apart from a number.
func reviewDraft(body []byte) (relations.ReviewDraft, error) {
	if !gjson.ValidBytes(body) {
		return relations.ReviewDraft{}, apperr.InvalidInput("Invalid data")
	}
	var draft relations.ReviewDraft
	if rating := gjson.GetBytes(body, "rating"); rating.Type == gjson.Number {
		v := rating.Float()
		draft.Rating = &v
	}
	draft.Comment = gjson.GetBytes(body, "comment").String()
	return draft, nil
}

// @Summary add a review to an item
// @Tags Reviews
// @Param id path int true "Item ID"
// @Param review body relations.ReviewDraft true "Numeric rating between 0 and 5 and a comment"
// @Success 201 {object} domain.Review
// @Router /api/items/{id}/reviews [post]
func attachReview(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxReviewBody))
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, err, "Invalid data")
	}
	draft, err := reviewDraft(body)
	if err != nil {
		return err
	}

	review, err := GetRelations(c).AttachReview(c.Request().Context(), id, draft)
	if err != nil {
		return err
	}
	return created(c, review)
}

// @Summary remove a review from an item
// @Tags Reviews
// @Param id path int true "Item ID"
// @Param reviewId path int true "Review ID"
// @Success 200 {object} map[string]string
// @Router /api/items/{id}/reviews/{reviewId} [delete]
func detachReview(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	reviewID, err := parseIDParam(c, "reviewId")
	if err != nil {
		return apperr.NotFound("Review not found for the item")
	}
	if err := GetRelations(c).DetachReview(c.Request().Context(), id, reviewID); err != nil {
		return err
	}
	return message(c, http.StatusOK, "Review deleted successfully")
}
