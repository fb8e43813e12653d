package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/pipeline"

	log "github.com/sirupsen/logrus"
	gocv "gocv.io/x/gocv"
)

// maxReadFailures ist die Anzahl aufeinanderfolgender Lesefehler, nach der eine Kamera als ausgefallen gilt
const maxReadFailures = 10

// CameraSource liefert Bilder aus einer Kamera, Videodatei oder einem Stream
type CameraSource struct {
	device   string
	capture  *gocv.VideoCapture
	frame    gocv.Mat
	isFile   bool
	failures int
}

// OpenCamera öffnet die konfigurierte Bildquelle.
// Eine Zahl wird als Kameraindex verstanden, alles andere als Datei oder URL.
func OpenCamera(cfg config.CameraConfig) (*CameraSource, error) {
	var device interface{} = cfg.Device
	index, err := strconv.Atoi(cfg.Device)
	isCamera := err == nil
	if isCamera {
		device = index
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("konnte Bildquelle %s nicht öffnen: %w", cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("bildquelle %s ist nicht verfügbar", cfg.Device)
	}

	if cfg.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}

	log.Infof("Bildquelle geöffnet: %s", cfg.Device)

	return &CameraSource{
		device:  cfg.Device,
		capture: capture,
		frame:   gocv.NewMat(),
		isFile:  !isCamera && !strings.Contains(cfg.Device, "://"),
	}, nil
}

// Next liest das nächste Bild. Bei Videodateien endet die Quelle mit ErrEndOfStream,
// bei Kameras und Streams nach wiederholten Lesefehlern mit einem CaptureError.
func (c *CameraSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ok := c.capture.Read(&c.frame); !ok {
		if c.isFile {
			return nil, pipeline.ErrEndOfStream
		}
		c.failures++
		if c.failures >= maxReadFailures {
			return nil, &pipeline.CaptureError{Err: fmt.Errorf("%s lieferte %d Mal kein Bild", c.device, c.failures)}
		}
		return nil, pipeline.ErrFrameDropped
	}

	if c.frame.Empty() {
		c.failures++
		if c.failures >= maxReadFailures {
			return nil, &pipeline.CaptureError{Err: errors.New("nur leere Bilder empfangen")}
		}
		return nil, pipeline.ErrFrameDropped
	}
	c.failures = 0

	img, err := c.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrFrameDropped, err)
	}
	return img, nil
}

// Close gibt Kamera und Puffer frei
func (c *CameraSource) Close() error {
	c.frame.Close()
	return c.capture.Close()
}
