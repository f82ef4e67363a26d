package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/talkincode/storefront/internal/domain"
)

// checkCatalog seeds demo items into an empty catalog
func (a *Application) checkCatalog(ctx context.Context) {
	count, err := a.store.Items.Count(ctx)
	if err != nil {
		zap.L().Error("failed to count catalog items", zap.Error(err))
		return
	}
	if count > 0 {
		return
	}

	defaultItems := []domain.Item{
		{Name: "demo-widget-basic", Price: 9.99},
		{Name: "demo-widget-pro", Price: 24.5},
		{Name: "demo-service-annual", Price: 199.0},
		{Name: "demo-addon-support", Price: 49.95},
	}

	for _, item := range defaultItems {
		item.Reviews = domain.RefList{}
		item.CreatedAt = time.Now()
		item.UpdatedAt = time.Now()
		if err := a.store.Items.Create(ctx, &item); err != nil {
			zap.L().Error("failed to create demo item", zap.String("name", item.Name), zap.Error(err))
		} else {
			zap.L().Info("initialized demo item", zap.String("name", item.Name))
		}
	}
}
