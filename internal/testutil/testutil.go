// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"payment_gateway/internal/db"
	"payment_gateway/internal/domain"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Card numbers that pass the Luhn check, keyed by their last four digits.
const (
	Card4242 = "4000000000024242"
	Card4999 = "4000000000074999"
	Card5000 = "4000000000015000"
	Card5050 = "4000000000005050"
)

// NewDB returns a migrated SQLite database living in t.TempDir().
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	gdb, err := db.OpenSQLite(path, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// CreateUser inserts an active user with the given role.
func CreateUser(t *testing.T, gdb *gorm.DB, username, role string) domain.User {
	t.Helper()
	u := domain.User{Username: username, Password: "x", Role: role, IsActive: true}
	require.NoError(t, gdb.Create(&u).Error)
	return u
}
