package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/relations"
)

func testConfig(t *testing.T) *config.AppConfig {
	cfg := config.DefaultAppConfig()
	cfg.System.Workdir = t.TempDir()
	cfg.Web.BcryptCost = 4
	return cfg
}

func TestInitBoltApplication(t *testing.T) {
	cfg := testConfig(t)
	cfg.System.SeedDemo = true
	a := NewApplication(cfg)
	require.NoError(t, a.Init(cfg))
	t.Cleanup(a.Release)

	assert.Equal(t, "bolt", a.Store().Kind)
	assert.NotNil(t, a.Tokens())
	assert.NotNil(t, a.Hasher())
	assert.Len(t, a.Scheduler().Entries(), 1)

	n, err := a.Store().Items.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	a.checkCatalog(context.Background())
	n, err = a.Store().Items.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n, "seeding only fills an empty catalog")
}

func TestInitSqliteApplication(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Type = "sqlite"
	a := NewApplication(cfg)
	require.NoError(t, a.Init(cfg))
	t.Cleanup(a.Release)

	assert.Equal(t, "sqlite", a.Store().Kind)
}

func TestInitRejectsBadSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Type = "mongo"
	assert.Error(t, NewApplication(cfg).Init(cfg))

	cfg = testConfig(t)
	cfg.System.AuditCron = "every tuesday"
	a := NewApplication(cfg)
	assert.Error(t, a.Init(cfg))
	_ = a.Store().Close()
}

func TestAuditAndInitDb(t *testing.T) {
	cfg := testConfig(t)
	cfg.System.AuditCron = ""
	a := NewApplication(cfg)
	require.NoError(t, a.Init(cfg))
	t.Cleanup(a.Release)
	ctx := context.Background()

	assert.Empty(t, a.Scheduler().Entries())
	assert.Nil(t, a.LastAudit())

	item := createItem(t, a)
	_, err := a.Relations().AttachReview(ctx, item, relations.ReviewDraft{Rating: ptr(3), Comment: "ok"})
	require.NoError(t, err)
	_, err = a.Relations().DeleteAllItems(ctx)
	require.NoError(t, err)

	a.SchedIntegrityAuditTask()
	report := a.LastAudit()
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Orphans())

	require.NoError(t, a.InitDb(ctx))
	report, err = a.RunAudit(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
}

func ptr(v float64) *float64 { return &v }

func createItem(t *testing.T, a *Application) int64 {
	t.Helper()
	item := &domain.Item{Name: "lamp", Price: 12, Reviews: domain.RefList{}}
	require.NoError(t, a.Store().Items.Create(context.Background(), item))
	return item.ID
}
