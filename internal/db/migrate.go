package db

import (
	"exchange_api/internal/domain" // Importing domain models

	"gorm.io/gorm" // GORM ORM library
)

// Migrate creates or updates the users and transactions tables.
// AutoMigrate adds the unique email index and the cascading foreign key.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&domain.User{}, &domain.Transaction{})
}
