package database

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/backup"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsRunsEachOnce(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&backup.Snapshot{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	snapshot := backup.Snapshot{CreatedAtSeconds: 100, PayloadJSON: "{}", Reason: backup.ReasonPeriodic}
	if err := database.Create(&snapshot).Error; err != nil {
		testContext.Fatalf("failed to insert snapshot: %v", err)
	}

	const migrationName = "2026-10-14_mark_interrupt"
	applied := 0
	migrations := []migrationDefinition{{
		name: migrationName,
		apply: func(db *gorm.DB) error {
			applied++
			return db.Model(&backup.Snapshot{}).Where("id = ?", snapshot.ID).Update("reason", backup.ReasonInterrupt).Error
		},
	}}

	if err := applyMigrations(database, migrations, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored backup.Snapshot
	if err := database.Where("id = ?", snapshot.ID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload snapshot: %v", err)
	}
	if stored.Reason != backup.ReasonInterrupt {
		testContext.Fatalf("expected migration to update reason, got %q", stored.Reason)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationName).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	if err := applyMigrations(database, migrations, zap.NewNop()); err != nil {
		testContext.Fatalf("second migration pass failed: %v", err)
	}
	if applied != 1 {
		testContext.Fatalf("expected migration to run once, ran %d times", applied)
	}
}

func TestApplyMigrationsStopsOnFailure(testContext *testing.T) {
	database, err := gorm.Open(sqlite.Open(filepath.Join(testContext.TempDir(), "failing.db")), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	migrations := []migrationDefinition{{
		name:  "2026-10-14_broken",
		apply: func(*gorm.DB) error { return errors.New("constraint violated") },
	}}
	if err := applyMigrations(database, migrations, nil); err == nil {
		testContext.Fatalf("expected migration failure to surface")
	}
	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count records: %v", err)
	}
	if count != 0 {
		testContext.Fatalf("failed migration must not be recorded, got %d records", count)
	}
}

func TestOpenSQLiteCreatesDirectoryAndSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "backups", "snapshots.db")
	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	if !database.Migrator().HasTable(&backup.Snapshot{}) {
		testContext.Fatalf("expected snapshots table")
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		testContext.Fatalf("expected error for empty path")
	}
}
