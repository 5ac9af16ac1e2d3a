package db

import (
	"time" // Connection pool lifetimes

	"gorm.io/driver/mysql" // MySQL driver for GORM
	"gorm.io/gorm"         // GORM ORM library
	"gorm.io/gorm/logger"  // GORM logger levels
)

// Config returns the GORM settings shared by the server, the tools and the tests.
// Every store operation is a single statement or opens its own transaction,
// so GORM's implicit write transaction is disabled.
func Config() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true, // Map duplicate-key errors to gorm.ErrDuplicatedKey
		Logger:                 logger.Default.LogMode(logger.Warn),
	}
}

// Open connects to MySQL and configures the connection pool
func Open(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.Open(dsn), Config())
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return gdb, nil
}
