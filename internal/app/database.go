package app

import (
	"fmt"
	"path"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/store"
)

// openStore opens the backend named by database.type.
func openStore(cfg *config.AppConfig) (*store.Store, error) {
	dbcfg := cfg.Database
	switch dbcfg.Type {
	case "bolt":
		file := dbcfg.Path
		if file == "" {
			file = path.Join(cfg.GetDataDir(), dbcfg.Name+".bolt")
		}
		db, err := store.OpenBolt(file)
		if err != nil {
			return nil, err
		}
		return store.NewBoltStore(db)
	case "postgres", "sqlite":
		db, err := getDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(dbcfg.Type, db), nil
	default:
		return nil, errors.Errorf("unsupported database type %q", dbcfg.Type)
	}
}

func getDatabase(cfg *config.AppConfig) (*gorm.DB, error) {
	dbcfg := cfg.Database
	var dialector gorm.Dialector
	switch dbcfg.Type {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			dbcfg.Host, dbcfg.Port, dbcfg.User, dbcfg.Passwd, dbcfg.Name)
		dialector = postgres.Open(dsn)
	case "sqlite":
		file := dbcfg.Path
		if file == "" {
			file = path.Join(cfg.GetDataDir(), dbcfg.Name+".db")
		}
		dialector = sqlite.Open(file)
	}

	level := logger.Warn
	if dbcfg.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s database", dbcfg.Type)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "database handle")
	}
	if dbcfg.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(dbcfg.MaxConn)
	}
	if dbcfg.IdleConn > 0 {
		sqlDB.SetMaxIdleConns(dbcfg.IdleConn)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	zap.L().Debug("database pool configured",
		zap.Int("max_conn", dbcfg.MaxConn),
		zap.Int("idle_conn", dbcfg.IdleConn))
	return db, nil
}
