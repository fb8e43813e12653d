// Package enrollment baut die Menge der bekannten Gesichter aus einem Verzeichnis
// mit Referenzbildern auf. Der Dateiname ohne Endung ist der Name der Person.
package enrollment

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/recognition"
	"face-attendance-go/internal/integrations/facerecognition"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrNoFace wird gemeldet, wenn ein Referenzbild kein Gesicht enthält
var ErrNoFace = facerecognition.ErrNoFace

// EnrollmentError beschreibt ein Referenzbild, das übersprungen wurde
type EnrollmentError struct {
	Path string
	Err  error
}

func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("enrollment image %s skipped: %v", e.Path, e.Err)
}

func (e *EnrollmentError) Unwrap() error {
	return e.Err
}

// Result ist das Ergebnis eines Ladevorgangs
type Result struct {
	Set     recognition.Set
	Skipped []*EnrollmentError
}

// Loader liest das Verzeichnis der Referenzbilder
type Loader struct {
	dir          string
	extensions   map[string]bool
	showProgress bool
	detector     facerecognition.Detector
	encoder      facerecognition.Encoder
}

// NewLoader erstellt einen neuen Loader
func NewLoader(cfg config.EnrollmentConfig, detector facerecognition.Detector, encoder facerecognition.Encoder) *Loader {
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		exts[strings.ToLower(ext)] = true
	}
	return &Loader{
		dir:          cfg.Dir,
		extensions:   exts,
		showProgress: cfg.ShowProgress,
		detector:     detector,
		encoder:      encoder,
	}
}

// Dir gibt das Verzeichnis der Referenzbilder zurück
func (l *Loader) Dir() string {
	return l.dir
}

// Files gibt die Referenzbilder in Dateinamen-Reihenfolge zurück.
// Fehlt das Verzeichnis, wird es angelegt.
func (l *Loader) Files() ([]string, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create enrollment directory %s: %w", l.dir, err)
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read enrollment directory %s: %w", l.dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !l.extensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(l.dir, entry.Name()))
	}
	return files, nil
}

// Names gibt die Namen aller Referenzbilder zurück, ohne sie zu analysieren
func (l *Loader) Names() ([]string, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(files))
	var names []string
	for _, f := range files {
		name, err := ValidateName(IdentityFromPath(f))
		if err != nil || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

// Load baut die Menge der bekannten Gesichter neu auf. Unlesbare Bilder, Bilder ohne
// Gesicht und Dateinamen, die keinen gültigen Namen ergeben, werden mit einer Warnung
// übersprungen. Bei doppelten Namen gilt der
// Vektor des letzten Bildes an der Position des ersten.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"component": "enrollment",
		"dir":       l.dir,
		"files":     len(files),
	}).Info("Loading known faces")

	var bar *progressbar.ProgressBar
	if l.showProgress && len(files) > 0 {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Loading known faces"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	result := &Result{}
	index := make(map[string]int)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name, err := ValidateName(IdentityFromPath(path))
		var embedding recognition.Embedding
		if err == nil {
			embedding, err = l.encodeFile(ctx, path)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
		if err != nil {
			enrollErr := &EnrollmentError{Path: path, Err: err}
			log.WithError(err).WithField("file", path).Warn("Skipping enrollment image")
			result.Skipped = append(result.Skipped, enrollErr)
			continue
		}

		if i, exists := index[name]; exists {
			log.Warnf("Identity %s enrolled more than once, using %s", name, path)
			result.Set[i].Embedding = embedding
			continue
		}
		index[name] = len(result.Set)
		result.Set = append(result.Set, recognition.Enrollment{Name: name, Embedding: embedding})
	}

	if bar != nil {
		_ = bar.Finish()
	}

	log.WithFields(log.Fields{
		"component": "enrollment",
		"known":     len(result.Set),
		"skipped":   len(result.Skipped),
	}).Info("Known faces loaded")

	return result, nil
}

// encodeFile berechnet den Vektor des ersten Gesichts im Bild
func (l *Loader) encodeFile(ctx context.Context, path string) (recognition.Embedding, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	boxes, err := l.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(boxes) == 0 {
		return nil, ErrNoFace
	}
	if len(boxes) > 1 {
		log.Debugf("%d faces in %s, using the first", len(boxes), path)
	}

	embedding, err := l.encoder.Encode(ctx, img, boxes[0])
	if err != nil {
		return nil, fmt.Errorf("face encoding failed: %w", err)
	}
	return embedding, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// IdentityFromPath leitet den Namen aus dem Dateinamen ohne Endung ab
func IdentityFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

