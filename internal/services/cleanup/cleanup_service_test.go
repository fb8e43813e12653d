package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func writeFile(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatal(err)
	}
}

func TestRunCleanupSnapshots(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()

	oldFile := filepath.Join(dir, "2024-03-01", "alice_093000_aaaa.jpg")
	newFile := filepath.Join(dir, "2024-03-19", "bob_101500_bbbb.jpg")
	writeFile(t, oldFile, now.AddDate(0, 0, -19))
	writeFile(t, newFile, now.AddDate(0, 0, -1))

	s := NewCleanupService(nil, config.CleanupConfig{RetentionDays: 7}, dir)
	s.now = func() time.Time { return now }

	result, err := s.RunCleanup(context.Background())
	if err != nil {
		t.Fatalf("RunCleanup() error = %v", err)
	}
	if result.FilesDeleted != 1 || result.DirsDeleted != 1 {
		t.Errorf("result = %+v, want 1 file and 1 directory deleted", result)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Errorf("old snapshot should be deleted")
	}
	if _, err := os.Stat(filepath.Dir(oldFile)); !os.IsNotExist(err) {
		t.Errorf("empty day directory should be deleted")
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Errorf("recent snapshot should be kept: %v", err)
	}
}

func TestRunCleanupDisabled(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "2020-01-01", "alice.jpg")
	writeFile(t, old, time.Now().AddDate(-1, 0, 0))

	s := NewCleanupService(nil, config.CleanupConfig{RetentionDays: 0}, dir)
	if _, err := s.RunCleanup(context.Background()); err != nil {
		t.Fatalf("RunCleanup() error = %v", err)
	}
	if _, err := os.Stat(old); err != nil {
		t.Errorf("snapshot should be kept when cleanup is disabled: %v", err)
	}
}

func TestRunCleanupRunSummaries(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "app.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&models.RunSummary{}); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	runs := []models.RunSummary{
		{ID: "old", StartedAt: now.AddDate(0, 0, -30)},
		{ID: "recent", StartedAt: now.AddDate(0, 0, -2)},
	}
	if err := db.Create(&runs).Error; err != nil {
		t.Fatal(err)
	}

	s := NewCleanupService(db, config.CleanupConfig{RetentionDays: 14}, "")
	s.now = func() time.Time { return now }

	result, err := s.RunCleanup(context.Background())
	if err != nil {
		t.Fatalf("RunCleanup() error = %v", err)
	}
	if result.RunsDeleted != 1 {
		t.Errorf("RunsDeleted = %d, want 1", result.RunsDeleted)
	}

	var remaining []models.RunSummary
	db.Find(&remaining)
	if len(remaining) != 1 || remaining[0].ID != "recent" {
		t.Errorf("remaining runs = %+v, want only the recent one", remaining)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	s := NewCleanupService(nil, config.CleanupConfig{RetentionDays: 1, IntervalHours: 1}, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
}
