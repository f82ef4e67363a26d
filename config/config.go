package config

import (
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system configuration
type SysConfig struct {
	Appid     string `yaml:"appid"`
	Location  string `yaml:"location"`
	Workdir   string `yaml:"workdir"`
	Debug     bool   `yaml:"debug"`
	NodeID    int64  `yaml:"node_id"`    // snowflake node used for document ids
	AuditCron string `yaml:"audit_cron"` // schedule of the reference integrity audit, empty disables it
	SeedDemo  bool   `yaml:"seed_demo"`
}

// WebConfig web server configuration
type WebConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	JwtSecret        string        `yaml:"jwt_secret"` // empty generates a per-process key
	TokenTTL         time.Duration `yaml:"token_ttl"`
	BcryptCost       int           `yaml:"bcrypt_cost"`
	EnforceOwnership bool          `yaml:"enforce_ownership"`
}

// DBConfig database configuration
type DBConfig struct {
	Type     string `yaml:"type"` // postgres, sqlite or bolt
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	Path     string `yaml:"path"` // file path for sqlite and bolt
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// LogConfig logging configuration
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type AppConfig struct {
	System   SysConfig `yaml:"system"`
	Web      WebConfig `yaml:"web"`
	Database DBConfig  `yaml:"database"`
	Logger   LogConfig `yaml:"logger"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

// InitDirs creates the working directories
func (c *AppConfig) InitDirs() error {
	for _, dir := range []string{c.GetLogDir(), c.GetDataDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return nil
}

// DefaultAppConfig returns a runnable configuration backed by a local bolt file.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:     "storefront",
			Location:  "UTC",
			Workdir:   "/var/storefront",
			NodeID:    1,
			AuditCron: "@daily",
		},
		Web: WebConfig{
			Host:       "0.0.0.0",
			Port:       3000,
			TokenTTL:   72 * time.Hour,
			BcryptCost: 10,
		},
		Database: DBConfig{
			Type:     "bolt",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "storefront",
			User:     "postgres",
			Passwd:   "postgres",
			MaxConn:  100,
			IdleConn: 10,
		},
		Logger: LogConfig{
			Mode:       "development",
			FileEnable: false,
			Filename:   "/var/storefront/logs/storefront.log",
		},
	}
}

// LoadConfig reads the YAML file (when given) over the defaults and applies
// STOREFRONT_* environment overrides.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if cfile != "" {
		data, err := os.ReadFile(cfile)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "bolt"
	}
	cfg.Database.Type = strings.ToLower(cfg.Database.Type)
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	var errs []string
	track := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	setEnvString("STOREFRONT_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvString("STOREFRONT_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvString("STOREFRONT_SYSTEM_AUDIT_CRON", &cfg.System.AuditCron)
	track(setEnvBool("STOREFRONT_SYSTEM_DEBUG", &cfg.System.Debug))
	track(setEnvBool("STOREFRONT_SYSTEM_SEED_DEMO", &cfg.System.SeedDemo))
	track(setEnvInt64("STOREFRONT_SYSTEM_NODE_ID", &cfg.System.NodeID))

	setEnvString("STOREFRONT_WEB_HOST", &cfg.Web.Host)
	track(setEnvInt("STOREFRONT_WEB_PORT", &cfg.Web.Port))
	setEnvString("STOREFRONT_WEB_JWT_SECRET", &cfg.Web.JwtSecret)
	track(setEnvDuration("STOREFRONT_WEB_TOKEN_TTL", &cfg.Web.TokenTTL))
	track(setEnvInt("STOREFRONT_WEB_BCRYPT_COST", &cfg.Web.BcryptCost))
	track(setEnvBool("STOREFRONT_WEB_ENFORCE_OWNERSHIP", &cfg.Web.EnforceOwnership))

	setEnvString("STOREFRONT_DB_TYPE", &cfg.Database.Type)
	setEnvString("STOREFRONT_DB_HOST", &cfg.Database.Host)
	track(setEnvInt("STOREFRONT_DB_PORT", &cfg.Database.Port))
	setEnvString("STOREFRONT_DB_NAME", &cfg.Database.Name)
	setEnvString("STOREFRONT_DB_USER", &cfg.Database.User)
	setEnvString("STOREFRONT_DB_PWD", &cfg.Database.Passwd)
	setEnvString("STOREFRONT_DB_PATH", &cfg.Database.Path)
	track(setEnvBool("STOREFRONT_DB_DEBUG", &cfg.Database.Debug))

	setEnvString("STOREFRONT_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvString("STOREFRONT_LOGGER_FILENAME", &cfg.Logger.Filename)
	track(setEnvBool("STOREFRONT_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable))

	if len(errs) > 0 {
		return errors.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func setEnvString(name string, val *string) {
	if v := os.Getenv(name); v != "" {
		*val = v
	}
}

func setEnvInt(name string, val *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return errors.Wrap(err, name)
	}
	*val = n
	return nil
}

func setEnvInt64(name string, val *int64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return errors.Wrap(err, name)
	}
	*val = n
	return nil
}

func setEnvBool(name string, val *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return errors.Wrap(err, name)
	}
	*val = b
	return nil
}

func setEnvDuration(name string, val *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return errors.Wrap(err, name)
	}
	*val = d
	return nil
}
