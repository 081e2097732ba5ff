package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/SchoolPay/app/models"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/config"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// DB is the process-wide database handle set by SetupDatabase.
var DB *gorm.DB

// GetDB returns the handle opened by SetupDatabase.
func GetDB() *gorm.DB {
	return DB
}

// Models lists every table owned by the service, in creation order.
func Models() []interface{} {
	return []interface{}{
		&models.Order{},
		&models.OrderStatus{},
		&models.Transaction{},
		&models.WebhookLog{},
	}
}

// AutoMigrate creates or updates the schema for all service models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func SetupDatabase(cfg config.DatabaseConfig, dev bool) {
	var err error
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	gormConfig := &gorm.Config{}
	if !dev {
		gormConfig.Logger = logger.Default.LogMode(logger.Warn)
	}

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), gormConfig)
		if err == nil {
			if err = AutoMigrate(DB); err != nil {
				log.Errorf("[Database] auto migration failed: %v", err)
			}
			return
		}

		log.Warnf("[Database] failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// Ping checks that the underlying connection pool is reachable.
func Ping(db *gorm.DB) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
