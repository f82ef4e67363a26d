package adminapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/store"
	"github.com/talkincode/storefront/internal/webserver"
)

const hydrateWorkers = 8

type itemPayload struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Price float64 `json:"price" validate:"gte=0"`
	Image string  `json:"image" validate:"max=1024"`
}

type itemPatch struct {
	Name  *string  `json:"name,omitempty" mapstructure:"name"`
	Price *float64 `json:"price,omitempty" mapstructure:"price"`
	Image *string  `json:"image,omitempty" mapstructure:"image"`
}

// itemSummary is an item with its reviews expanded.
type itemSummary struct {
	*domain.Item
	Reviews       []*domain.Review `json:"reviews"`
	AverageRating *float64         `json:"averageRating"`
}

type itemRow struct {
	ID            string `csv:"id"`
	Name          string `csv:"name"`
	Price         string `csv:"price"`
	Image         string `csv:"image"`
	Reviews       int    `csv:"reviews"`
	AverageRating string `csv:"average_rating"`
}

func registerItemRoutes() {
	webserver.ApiPOST("/items", createItem)
	webserver.ApiGET("/items", listItems)
	webserver.ApiGET("/items/export", exportItems)
	webserver.ApiGET("/items/:id", getItem)
	webserver.ApiPATCH("/items/:id", patchItem)
	webserver.ApiDELETE("/items/:id", deleteItem)
	webserver.ApiDELETE("/items", deleteAllItems)
}

// @Summary create an item
// @Tags Items
// @Param item body adminapi.itemPayload true "Item information"
// @Success 201 {object} map[string]interface{}
// @Router /api/items [post]
func createItem(c echo.Context) error {
	var payload itemPayload
	if err := bindPayload(c, &payload); err != nil {
		return err
	}
	now := time.Now()
	item := &domain.Item{
		Name:      strings.TrimSpace(payload.Name),
		Price:     payload.Price,
		Image:     strings.TrimSpace(payload.Image),
		Reviews:   domain.RefList{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := GetStore(c).Items.Create(c.Request().Context(), item); err != nil {
		return apperr.Internal(err, "Failed to create item")
	}
	return created(c, map[string]interface{}{"item": item})
}

// summarizeItems expands the reviews of every item with a bounded number of
// concurrent lookups.
func summarizeItems(ctx context.Context, st *store.Store) ([]*itemSummary, error) {
	var summaries []*itemSummary
	err := store.Each(ctx, st.Items, 0, func(item *domain.Item) error {
		summaries = append(summaries, &itemSummary{Item: item})
		return nil
	})
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateWorkers)
	for _, s := range summaries {
		s := s
		g.Go(func() error {
			reviews, err := st.Reviews.FindByIDs(gctx, s.Item.Reviews)
			if err != nil {
				return err
			}
			s.Reviews = reviews
			s.AverageRating = averageRating(reviews)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func averageRating(reviews []*domain.Review) *float64 {
	if len(reviews) == 0 {
		return nil
	}
	ratings := make(stats.Float64Data, 0, len(reviews))
	for _, r := range reviews {
		ratings = append(ratings, r.Rating)
	}
	mean, err := stats.Mean(ratings)
	if err != nil {
		return nil
	}
	return &mean
}

// @Summary get the item list with reviews
// @Tags Items
// @Success 200 {array} adminapi.itemSummary
// @Router /api/items [get]
func listItems(c echo.Context) error {
	summaries, err := summarizeItems(c.Request().Context(), GetStore(c))
	if err != nil {
		return apperr.Internal(err, "Internal server error")
	}
	if summaries == nil {
		summaries = []*itemSummary{}
	}
	return ok(c, summaries)
}

// @Summary export the catalog as CSV
// @Tags Items
// @Produce text/csv
// @Success 200 {string} string
// @Router /api/items/export [get]
func exportItems(c echo.Context) error {
	summaries, err := summarizeItems(c.Request().Context(), GetStore(c))
	if err != nil {
		return apperr.Internal(err, "Internal server error")
	}
	rows := make([]*itemRow, 0, len(summaries))
	for _, s := range summaries {
		row := &itemRow{
			ID:      strconv.FormatInt(s.ID, 10),
			Name:    s.Name,
			Price:   strconv.FormatFloat(s.Price, 'f', -1, 64),
			Image:   s.Image,
			Reviews: len(s.Reviews),
		}
		if s.AverageRating != nil {
			row.AverageRating = strconv.FormatFloat(*s.AverageRating, 'f', 2, 64)
		}
		rows = append(rows, row)
	}
	data, err := gocsv.MarshalBytes(rows)
	if err != nil {
		return apperr.Internal(err, "Failed to export items")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="items.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}

func findItem(c echo.Context) (*domain.Item, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, err
	}
	item, err := GetStore(c).Items.FindByID(c.Request().Context(), id)
	if store.IsNotFound(err) {
		return nil, apperr.NotFound("Item not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "")
	}
	return item, nil
}

// @Summary get item detail
// @Tags Items
// @Param id path int true "Item ID"
// @Success 200 {object} domain.Item
// @Router /api/items/{id} [get]
func getItem(c echo.Context) error {
	item, err := findItem(c)
	if err != nil {
		return err
	}
	return ok(c, item)
}

// @Summary update item fields
// @Tags Items
// @Param id path int true "Item ID"
// @Param item body adminapi.itemPatch true "Fields to change"
// @Success 200 {object} domain.Item
// @Router /api/items/{id} [patch]
func patchItem(c echo.Context) error {
	var patch itemPatch
	if err := bindPatch(c, &patch); err != nil {
		return err
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return apperr.InvalidInput("Invalid name")
	}
	if patch.Price != nil && *patch.Price < 0 {
		return apperr.InvalidInput("Invalid price")
	}

	item, err := GetRelations(c).UpdateItem(c.Request().Context(), id, func(item *domain.Item) error {
		if patch.Name != nil {
			item.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Price != nil {
			item.Price = *patch.Price
		}
		if patch.Image != nil {
			item.Image = strings.TrimSpace(*patch.Image)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ok(c, item)
}

// @Summary delete an item
// @Tags Items
// @Param id path int true "Item ID"
// @Success 200 {object} domain.Item
// @Router /api/items/{id} [delete]
func deleteItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	item, err := GetRelations(c).DeleteItem(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, item)
}

// @Summary delete every item
// @Tags Items
// @Success 204
// @Router /api/items [delete]
func deleteAllItems(c echo.Context) error {
	n, err := GetRelations(c).DeleteAllItems(c.Request().Context())
	if err != nil {
		return err
	}
	zap.L().Warn("all items deleted", zap.Int64("count", n))
	return c.NoContent(http.StatusNoContent)
}
