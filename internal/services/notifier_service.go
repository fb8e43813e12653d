package services

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"face-attendance-go/internal/core/pipeline"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// NotifierService speichert bei jeder neuen Anwesenheit ein Schnappschuss-Bild
// unter <snapshotDir>/<Datum>/<Name>_<Uhrzeit>_<ID>.jpg
type NotifierService struct {
	snapshotDir string
	quality     int
}

// NewNotifierService erstellt einen neuen NotifierService
func NewNotifierService(snapshotDir string) *NotifierService {
	log.Infof("Initializing NotifierService, snapshots in %s", snapshotDir)
	return &NotifierService{
		snapshotDir: snapshotDir,
		quality:     85,
	}
}

// HandleAttendance implementiert pipeline.EventHandler
func (s *NotifierService) HandleAttendance(ctx context.Context, event pipeline.AttendanceEvent) {
	if event.Frame == nil || event.Frame.Image == nil {
		return
	}
	path, err := s.SaveSnapshot(event)
	if err != nil {
		log.WithError(err).WithField("name", event.Name).Warn("Failed to save attendance snapshot")
		return
	}
	log.WithFields(log.Fields{
		"component": "notifier",
		"name":      event.Name,
		"file":      path,
	}).Debug("Attendance snapshot saved")
}

// SaveSnapshot schreibt das annotierte Bild eines Ereignisses und gibt den Pfad zurück
func (s *NotifierService) SaveSnapshot(event pipeline.AttendanceEvent) (string, error) {
	dir := filepath.Join(s.snapshotDir, event.Date)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s.jpg",
		safeFilename(event.Name),
		strings.ReplaceAll(event.Time, ":", ""),
		uuid.New().String()[:8])
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot file: %w", err)
	}
	if err := jpeg.Encode(f, event.Frame.Image, &jpeg.Options{Quality: s.quality}); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// safeFilename ersetzt Zeichen, die in Dateinamen Probleme machen
func safeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}
