package repositories

import (
	"fmt"
	"log"

	"bistro/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// oneActiveOrderIndex allows at most one ORDERING order per customer.
const oneActiveOrderIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_one_active
	ON orders (customer_id) WHERE status = 0`

// OpenDatabase opens a GORM connection for the given driver ("postgres" or "sqlite").
func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the application needs.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.LineItem{},
		&models.StatusChange{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := db.Exec(oneActiveOrderIndex).Error; err != nil {
		return fmt.Errorf("failed to create active order index: %w", err)
	}
	log.Println("Database migrated")
	return nil
}
