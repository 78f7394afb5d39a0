package database

import (
	"errors"
	"fmt"
	"log"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pengaduan/backend/internal/config"
	"github.com/pengaduan/backend/internal/models"
	"github.com/pengaduan/backend/internal/workflow"
	"github.com/pengaduan/backend/pkg/utils"
)

var DB *gorm.DB

func Connect(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Unique violations surface as gorm.ErrDuplicatedKey; the tracking-id
		// allocator relies on this to retry.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	DB = db
	log.Println("Database connected successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	err := db.AutoMigrate(
		&models.User{},
		&models.Complaint{},
		&models.ComplaintAttachment{},
		&models.ComplaintHistory{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("Database migrations completed")
	return nil
}

// Seed creates one default user per role so a fresh install is usable. It is
// idempotent: existing usernames are left alone.
func Seed(db *gorm.DB) error {
	log.Println("Seeding database...")

	allServiceTypes := make([]string, len(models.AllServiceTypes))
	for i, st := range models.AllServiceTypes {
		allServiceTypes[i] = string(st)
	}

	defaults := []struct {
		Username     string
		Password     string
		Name         string
		Email        string
		Role         workflow.Role
		ServiceTypes []string
	}{
		{"admin", "admin123", "Administrator", "admin@pengaduan.local", workflow.RoleAdmin, nil},
		{"supervisor", "supervisor123", "Duty Supervisor", "supervisor@pengaduan.local", workflow.RoleSupervisor, allServiceTypes},
		{"agent", "agent123", "Case Agent", "agent@pengaduan.local", workflow.RoleAgent, allServiceTypes},
		{"management", "management123", "Management Viewer", "management@pengaduan.local", workflow.RoleManagement, nil},
	}

	for _, d := range defaults {
		var existing models.User
		err := db.Where("username = ?", d.Username).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check seed user %s: %w", d.Username, err)
		}

		hashed, err := utils.HashPassword(d.Password)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}
		user := models.User{
			Username:            d.Username,
			Password:            hashed,
			Name:                d.Name,
			Email:               d.Email,
			Role:                d.Role,
			ServiceTypesHandled: pq.StringArray(d.ServiceTypes),
			IsActive:            true,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create seed user %s: %w", d.Username, err)
		}
		log.Printf("Seeded user %s (%s)", d.Username, d.Role)
	}

	log.Println("Database seeding completed")
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
