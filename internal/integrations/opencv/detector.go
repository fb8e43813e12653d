package opencv

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"face-attendance-go/config"
	"face-attendance-go/internal/integrations/facerecognition"

	log "github.com/sirupsen/logrus"
	gocv "gocv.io/x/gocv"
)

// HaarDetector findet Gesichter mit einer Haar-Kaskade
type HaarDetector struct {
	cfg         config.OpenCVConfig
	classifier  gocv.CascadeClassifier
	mutex       sync.Mutex
	initialized bool
}

// NewHaarDetector erstellt einen neuen Detektor und lädt die Kaskade
func NewHaarDetector(cfg config.OpenCVConfig) (*HaarDetector, error) {
	if cfg.ScaleFactor <= 1 {
		cfg.ScaleFactor = 1.1 // Standardwert, falls nicht konfiguriert
	}
	if cfg.MinNeighbors <= 0 {
		cfg.MinNeighbors = 5
	}

	d := &HaarDetector{cfg: cfg}
	if err := d.Initialize(); err != nil {
		return nil, err
	}
	return d, nil
}

// Initialize lädt die Kaskadendatei
func (d *HaarDetector) Initialize() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.initialized {
		return nil
	}
	if _, err := os.Stat(d.cfg.CascadeFile); err != nil {
		return fmt.Errorf("kaskadendatei nicht gefunden: %s: %w", d.cfg.CascadeFile, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(d.cfg.CascadeFile) {
		classifier.Close()
		return fmt.Errorf("konnte Kaskade nicht laden: %s", d.cfg.CascadeFile)
	}

	d.classifier = classifier
	d.initialized = true
	log.Infof("Haar-Kaskade geladen: %s", d.cfg.CascadeFile)
	return nil
}

// Name gibt den Namen des Providers zurück
func (d *HaarDetector) Name() facerecognition.ProviderType {
	return facerecognition.ProviderHaar
}

// IsAvailable meldet, ob die Kaskade geladen ist
func (d *HaarDetector) IsAvailable(ctx context.Context) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.initialized
}

// Detect gibt die Gesichtsrechtecke in Koordinaten von img zurück
func (d *HaarDetector) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("fehler beim Konvertieren des Bildes: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.initialized {
		return nil, fmt.Errorf("haar-detektor ist nicht initialisiert")
	}

	rects := d.classifier.DetectMultiScaleWithParams(
		gray,
		d.cfg.ScaleFactor,
		d.cfg.MinNeighbors,
		0,
		image.Pt(d.cfg.MinSizeWidth, d.cfg.MinSizeHeight),
		image.Pt(0, 0),
	)

	origin := img.Bounds().Min
	for i := range rects {
		rects[i] = rects[i].Add(origin)
	}
	return rects, nil
}

// Close gibt die Ressourcen des Detektors frei
func (d *HaarDetector) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.initialized {
		if err := d.classifier.Close(); err != nil {
			return err
		}
		d.initialized = false
	}
	return nil
}
