package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CleanupService ist verantwortlich für die automatische Bereinigung alter Schnappschüsse und Laufstatistiken.
// Die Anwesenheitsliste selbst wird nie angefasst.
type CleanupService struct {
	db            *gorm.DB
	config        config.CleanupConfig
	snapshotDir   string
	checkInterval time.Duration
	now           func() time.Time
}

// Result fasst einen Bereinigungslauf zusammen
type Result struct {
	FilesDeleted int
	DirsDeleted  int
	RunsDeleted  int64
	Errors       int
}

// NewCleanupService erstellt einen neuen Cleanup-Service. db darf nil sein.
func NewCleanupService(db *gorm.DB, cfg config.CleanupConfig, snapshotDir string) *CleanupService {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour // Standardmäßig einmal täglich prüfen
	}
	return &CleanupService{
		db:            db,
		config:        cfg,
		snapshotDir:   snapshotDir,
		checkInterval: interval,
		now:           time.Now,
	}
}

// Start startet den Bereinigungsdienst und blockiert bis ctx beendet ist
func (s *CleanupService) Start(ctx context.Context) {
	log.Info("Cleanup service started")

	// Sofort eine erste Bereinigung durchführen
	if _, err := s.RunCleanup(ctx); err != nil {
		log.Errorf("Initial cleanup failed: %v", err)
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Info("Running scheduled cleanup")
			if _, err := s.RunCleanup(ctx); err != nil {
				log.Errorf("Scheduled cleanup failed: %v", err)
			}
		case <-ctx.Done():
			log.Info("Cleanup service stopped")
			return
		}
	}
}

// RunCleanup führt die eigentliche Bereinigung durch
func (s *CleanupService) RunCleanup(ctx context.Context) (Result, error) {
	var result Result
	if s.config.RetentionDays <= 0 {
		log.Info("Cleanup disabled (retention days <= 0)")
		return result, nil
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	log.Infof("Cleaning up data older than %s", cutoff.Format("2006-01-02"))

	if err := s.cleanupSnapshots(ctx, cutoff, &result); err != nil {
		return result, err
	}

	if s.db != nil {
		res := s.db.WithContext(ctx).Where("started_at < ?", cutoff).Delete(&models.RunSummary{})
		if res.Error != nil {
			log.Errorf("Failed to delete old run summaries: %v", res.Error)
			result.Errors++
		} else {
			result.RunsDeleted = res.RowsAffected
		}
	}

	log.Infof("Cleanup completed: deleted %d snapshots, %d directories, %d run summaries, encountered %d errors",
		result.FilesDeleted, result.DirsDeleted, result.RunsDeleted, result.Errors)
	return result, nil
}

// cleanupSnapshots löscht Dateien vor cutoff und danach leere Tagesverzeichnisse
func (s *CleanupService) cleanupSnapshots(ctx context.Context, cutoff time.Time, result *Result) error {
	if s.snapshotDir == "" {
		return nil
	}
	if _, err := os.Stat(s.snapshotDir); os.IsNotExist(err) {
		return nil
	}

	var dirs []string
	err := filepath.WalkDir(s.snapshotDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Warnf("Failed to access %s: %v", path, err)
			result.Errors++
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != s.snapshotDir {
				dirs = append(dirs, path)
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result.Errors++
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warnf("Failed to delete snapshot %s: %v", path, err)
			result.Errors++
			return nil
		}
		result.FilesDeleted++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk snapshot directory: %w", err)
	}

	// Tiefste Verzeichnisse zuerst
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dirs[i]); err == nil {
			result.DirsDeleted++
		}
	}
	return nil
}
