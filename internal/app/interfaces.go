package app

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/integrity"
	"github.com/talkincode/storefront/internal/relations"
	"github.com/talkincode/storefront/internal/store"
)

// StoreProvider provides document store access
type StoreProvider interface {
	Store() *store.Store
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// AuthProvider provides the credential services
type AuthProvider interface {
	Tokens() *auth.TokenService
	Hasher() auth.PasswordHasher
}

// RelationsProvider provides the relationship manager
type RelationsProvider interface {
	Relations() *relations.Manager
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// AppContext combines all provider interfaces for full application context
// Handlers should depend on specific providers or this combined interface
type AppContext interface {
	StoreProvider
	ConfigProvider
	AuthProvider
	RelationsProvider
	SchedulerProvider

	InitDb(ctx context.Context) error
	// RunAudit scans both relationships for dangling references and orphans
	RunAudit(ctx context.Context) (*integrity.Report, error)
	LastAudit() *integrity.Report
}
