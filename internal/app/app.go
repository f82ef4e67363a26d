package app

import (
	"context"
	"os"
	"sync"
	"time"
	_ "time/tzdata"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/integrity"
	"github.com/talkincode/storefront/internal/relations"
	"github.com/talkincode/storefront/internal/store"
)

type Application struct {
	appConfig *config.AppConfig
	store     *store.Store
	sched     *cron.Cron
	bus       EventBus.Bus
	tokens    *auth.TokenService
	hasher    auth.PasswordHasher
	relations *relations.Manager
	auditor   *integrity.Auditor

	auditMu   sync.Mutex
	lastAudit *integrity.Report
}

// Ensure Application implements all interfaces
var (
	_ StoreProvider     = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ AuthProvider      = (*Application)(nil)
	_ RelationsProvider = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) Store() *store.Store {
	return a.store
}

func (a *Application) Tokens() *auth.TokenService {
	return a.tokens
}

func (a *Application) Hasher() auth.PasswordHasher {
	return a.hasher
}

func (a *Application) Relations() *relations.Manager {
	return a.relations
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// Init builds the logger, opens the configured store and wires the services.
func (a *Application) Init(cfg *config.AppConfig) error {
	a.appConfig = cfg
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	if err := cfg.InitDirs(); err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	if err := store.SetNode(cfg.System.NodeID); err != nil {
		return err
	}
	a.store, err = openStore(cfg)
	if err != nil {
		return err
	}
	if err := a.store.Migrate(context.Background()); err != nil {
		return errors.Wrap(err, "database migration failed")
	}
	zap.S().Infof("Database connection successful, type: %s", a.store.Kind)

	secret := cfg.Web.JwtSecret
	if secret == "" {
		secret, err = auth.NewSecret()
		if err != nil {
			return err
		}
		zap.L().Warn("web.jwt_secret not set, issued tokens will not survive a restart")
	}
	a.tokens = auth.NewTokenService(secret, cfg.Web.TokenTTL)
	a.hasher = auth.NewBcryptHasher(cfg.Web.BcryptCost)

	a.bus = EventBus.New()
	a.subscribeAuditLog()
	a.relations = relations.NewManager(a.store, a.bus)
	a.auditor = integrity.NewAuditor(a.store)

	if cfg.System.SeedDemo {
		a.checkCatalog(context.Background())
	}

	return a.initJob()
}

func initLogger(cfg *config.AppConfig) error {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			return errors.Wrap(err, "build logger")
		}
	}

	zap.ReplaceGlobals(logger)
	return nil
}

// InitDb drops and recreates every collection.
func (a *Application) InitDb(ctx context.Context) error {
	if err := a.store.Reset(ctx); err != nil {
		return errors.Wrap(err, "reset database")
	}
	zap.L().Info("database reset", zap.String("type", a.store.Kind))
	if a.appConfig.System.SeedDemo {
		a.checkCatalog(ctx)
	}
	return nil
}

// RunAudit runs the integrity auditor and keeps the report for LastAudit.
func (a *Application) RunAudit(ctx context.Context) (*integrity.Report, error) {
	report, err := a.auditor.Run(ctx)
	if err != nil {
		return nil, err
	}
	a.auditMu.Lock()
	a.lastAudit = report
	a.auditMu.Unlock()
	return report, nil
}

// LastAudit returns the most recent audit report, nil before the first run.
func (a *Application) LastAudit() *integrity.Report {
	a.auditMu.Lock()
	defer a.auditMu.Unlock()
	return a.lastAudit
}

// StartBackgroundJobs starts the cron scheduler
func (a *Application) StartBackgroundJobs() {
	if a.sched != nil {
		a.sched.Start()
	}
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			zap.L().Error("close store", zap.Error(err))
		}
	}
	_ = zap.L().Sync()
}
