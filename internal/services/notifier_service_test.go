package services

import (
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"face-attendance-go/internal/core/pipeline"
)

func TestSaveSnapshot(t *testing.T) {
	dir := t.TempDir()
	s := NewNotifierService(dir)

	event := pipeline.AttendanceEvent{
		Name:      "Jane Doe",
		Date:      "2024-03-18",
		Time:      "09:30:00",
		Timestamp: time.Date(2024, 3, 18, 9, 30, 0, 0, time.UTC),
		Frame:     &pipeline.AnnotatedFrame{Image: image.NewRGBA(image.Rect(0, 0, 32, 24))},
	}

	path, err := s.SaveSnapshot(event)
	if err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dir, "2024-03-18") {
		t.Errorf("snapshot dir = %s, want the day directory", filepath.Dir(path))
	}
	if base := filepath.Base(path); !strings.HasPrefix(base, "Jane_Doe_093000_") {
		t.Errorf("snapshot name = %s, want prefix Jane_Doe_093000_", base)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("snapshot is not a valid JPEG: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 24 {
		t.Errorf("snapshot bounds = %v, want 32x24", img.Bounds())
	}
}

func TestHandleAttendanceWithoutFrame(t *testing.T) {
	dir := t.TempDir()
	s := NewNotifierService(dir)
	s.HandleAttendance(context.Background(), pipeline.AttendanceEvent{Name: "alice", Date: "2024-03-18"})

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("no snapshot expected without a frame, found %d entries", len(entries))
	}
}
