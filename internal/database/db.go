package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Baaaki/taskvault/internal/config"
	"github.com/Baaaki/taskvault/internal/models"
	"github.com/Baaaki/taskvault/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	sqlitePrefix    = "sqlite://"
	defaultSQLiteDB = "taskvault.db"
)

// Open connects to the store described by cfg.DatabaseURL. An empty URL or a
// sqlite:// URL selects SQLite, anything else is treated as a postgres DSN.
func Open(cfg *config.Config) (*gorm.DB, error) {
	driver, dsn := ParseURL(cfg.DatabaseURL)

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		dialector = postgres.Open(dsn)
	}

	logLevel := gormlogger.Warn
	if cfg.IsProduction() {
		logLevel = gormlogger.Error
	}

	db, err := gorm.Open(dialector, NewGormConfig(logLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	logger.Log.Info("Database connected successfully",
		zap.String("driver", driver),
	)

	return db, nil
}

// NewGormConfig is shared by Open and the test harness so both stores see the
// same clock and error translation.
func NewGormConfig(level gormlogger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ParseURL splits DATABASE_URL into a driver name and a driver-specific DSN.
func ParseURL(url string) (driver, dsn string) {
	switch {
	case url == "":
		return DriverSQLite, withSQLiteForeignKeys(defaultSQLiteDB)
	case strings.HasPrefix(url, sqlitePrefix):
		path := strings.TrimPrefix(url, sqlitePrefix)
		if path == "" {
			path = defaultSQLiteDB
		}
		return DriverSQLite, withSQLiteForeignKeys(path)
	default:
		return DriverPostgres, url
	}
}

func withSQLiteForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Task{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Log.Info("Database migration completed")
	return nil
}

// Ping checks that the underlying connection pool can reach the store.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
