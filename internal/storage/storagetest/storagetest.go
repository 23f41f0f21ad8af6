// Package storagetest provides an in-memory ban record store for tests.
package storagetest

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bansync/internal/models"
	"bansync/internal/storage"
)

// NewRepository returns a migrated repository backed by sqlite in memory.
func NewRepository(t testing.TB) (*storage.BanRepository, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := storage.NewBanRepository(db)
	if err := repo.MigrateTable(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo, db
}

// Seed inserts records in the given order, keeping explicit ids.
func Seed(t testing.TB, repo *storage.BanRepository, records ...*models.BanRecord) {
	t.Helper()
	for _, r := range records {
		if err := repo.Create(context.Background(), r); err != nil {
			t.Fatalf("seed record %d: %v", r.ID, err)
		}
	}
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}
