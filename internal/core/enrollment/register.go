package enrollment

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"face-attendance-go/internal/core/recognition"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrEmptyName wird für leere Namen zurückgegeben
	ErrEmptyName = errors.New("name must not be empty")

	// ErrReservedName wird für Namen zurückgegeben, die nicht als Datei oder Identität taugen
	ErrReservedName = errors.New("name is not allowed")
)

// ValidateName prüft einen neuen Namen und gibt ihn bereinigt zurück
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if name == recognition.Unknown || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return name, nil
}

// Register speichert ein Referenzbild als <dir>/<name>.jpg. Ein vorhandenes Bild wird ersetzt.
func Register(dir, name string, img image.Image) (string, error) {
	name, err := ValidateName(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create enrollment directory: %w", err)
	}

	path := filepath.Join(dir, name+".jpg")
	tmp, err := os.CreateTemp(dir, ".register-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: 95}); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	log.WithFields(log.Fields{
		"component": "enrollment",
		"name":      name,
		"file":      path,
	}).Info("Registered new identity")

	return path, nil
}
