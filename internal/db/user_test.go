package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupUserTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "nested", "users.db"), logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func TestEnsureUserKeepsExistingPassword(t *testing.T) {
	gdb := setupUserTestDB(t)

	if err := EnsureUser(gdb, "admin", "first-pass"); err != nil {
		t.Fatalf("ensure user failed: %v", err)
	}
	if err := EnsureUser(gdb, "admin", "second-pass"); err != nil {
		t.Fatalf("second ensure user failed: %v", err)
	}

	var count int64
	if err := gdb.Model(&User{}).Count(&count).Error; err != nil {
		t.Fatalf("count users failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 user, got %d", count)
	}

	if _, err := Authenticate(context.Background(), gdb, "admin", "second-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected original password to stay, got %v", err)
	}
	user, err := Authenticate(context.Background(), gdb, " admin ", "first-pass")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestEnsureUserSkipsEmptyCredentials(t *testing.T) {
	gdb := setupUserTestDB(t)

	if err := EnsureUser(gdb, "", "secret"); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
	if err := EnsureUser(gdb, "admin", "  "); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}

	if _, err := Authenticate(context.Background(), gdb, "admin", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn", logger.Default.LogMode(logger.Silent)); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if _, err := Open(DriverPostgres, "", logger.Default.LogMode(logger.Silent)); err == nil {
		t.Fatalf("expected error for empty postgres dsn")
	}
}
