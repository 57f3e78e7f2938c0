package database

import (
	"fmt"

	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Server.Env == "development" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Silent
	}

	dialector, err := Dialector(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	log.Info("Attempting database connection",
		zap.String("driver", cfg.Database.Driver),
		zap.String("dsn", maskPassword(cfg.Database.DSN)))

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Database connection successful")
	return db, nil
}

// Dialector picks the gorm driver for a DB_DRIVER value.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

func maskPassword(dsn string) string {
	if len(dsn) > 20 {
		return dsn[:20] + "...***..."
	}
	return "***"
}

// Migrate creates the account tables. Settings and history tables are
// included so the sql store works against the same database.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("Running migrations")

	err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.AuditLog{},
		&models.Settings{},
		&models.HistoryItem{},
	)
	if err != nil {
		return err
	}

	db.Exec("CREATE INDEX IF NOT EXISTS idx_history_items_user_created ON history_items(user_id, created_at)")
	return nil
}
