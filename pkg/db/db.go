package db

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
)

const EnvKeyIOTDbPath string = "IOT_DB_PATH"

type DB struct {
	Conn *gorm.DB
}

// New opens the database behind dialector and migrates the service tables.
func New(dialector gorm.Dialector) (*DB, error) {
	logger := common.GetLoggerWith(common.LoggerNameDB)

	gormCfg := &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Warn)}
	if common.IsProduction() {
		gormCfg.Logger = gormLogger.Default.LogMode(gormLogger.Error)
	}

	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Connected to database with dialector:", zap.String("dialector", dialector.Name()))

	instance := &DB{Conn: conn}

	if dialector.Name() == "sqlite" {
		// sqlite allows a single writer; message handlers run concurrently, so
		// they queue on the pool instead of failing with SQLITE_BUSY
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)

		if err := instance.Conn.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
			return nil, fmt.Errorf("failed to set sqlite journal mode: %w", err)
		}
	}

	err = instance.Conn.AutoMigrate(&models.Sensor{}, &models.User{}, &models.Notification{}, &models.SessionLog{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Database migration completed")

	return instance, nil
}

func (d *DB) Close() error {
	sqlDB, err := d.Conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func UseSqliteDialector(dbPath string) gorm.Dialector {
	if dbPath == "" {
		if envPath, found := os.LookupEnv(EnvKeyIOTDbPath); found {
			dbPath = envPath
		} else {
			dbPath = "sensors.db"
		}
	}
	return sqlite.Open(dbPath)
}

// UseMemorySqliteDialector returns a named shared-cache memory database, so
// every connection of the pool sees the same data while distinct names stay
// isolated from each other.
func UseMemorySqliteDialector(name string) gorm.Dialector {
	return sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}

func UsePostgresDialector(dsn string) gorm.Dialector {
	return postgres.Open(dsn)
}
