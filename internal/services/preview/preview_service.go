// Package preview hält die zuletzt annotierten Bilder im Speicher und stellt sie über HTTP bereit
package preview

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"net/http"
	"strconv"
	"sync"
	"time"

	"face-attendance-go/internal/core/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Frame ist ein gespeichertes annotiertes Bild
type Frame struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Faces     int       `json:"faces"`
	Names     []string  `json:"names"`
	ImageData []byte    `json:"-"`
}

// Service speichert die letzten annotierten Bilder als JPEG
type Service struct {
	images     map[string]*Frame // Map von Bildern, indiziert nach ID
	imagesList []*Frame          // Liste für zeitliche Sortierung
	maxImages  int
	quality    int
	mutex      sync.RWMutex
}

// NewService erstellt einen neuen Vorschau-Service
func NewService(maxImages int) *Service {
	if maxImages <= 0 {
		maxImages = 20 // Standardwert falls nicht angegeben
	}

	return &Service{
		images:     make(map[string]*Frame),
		imagesList: make([]*Frame, 0, maxImages),
		maxImages:  maxImages,
		quality:    80,
	}
}

// Show speichert ein annotiertes Bild und erfüllt damit pipeline.FrameSink
func (s *Service) Show(ctx context.Context, frame *pipeline.AnnotatedFrame) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: s.quality}); err != nil {
		return fmt.Errorf("failed to encode preview frame: %w", err)
	}

	names := make([]string, 0, len(frame.Detections))
	for _, d := range frame.Detections {
		names = append(names, d.Name)
	}

	s.Add(&Frame{
		ID:        uuid.NewString(),
		Timestamp: frame.CapturedAt,
		Faces:     len(frame.Detections),
		Names:     names,
		ImageData: buf.Bytes(),
	})
	return nil
}

// Add fügt ein Bild hinzu und verdrängt bei Bedarf das älteste
func (s *Service) Add(f *Frame) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.images[f.ID] = f
	s.imagesList = append(s.imagesList, f)

	if len(s.imagesList) > s.maxImages {
		oldest := s.imagesList[0]
		delete(s.images, oldest.ID)
		s.imagesList = s.imagesList[1:]
	}

	log.Debugf("Preview frame stored: %s with %d faces", f.ID, f.Faces)
}

// GetLatestImages gibt die neuesten Bilder zurück, das neueste zuletzt
func (s *Service) GetLatestImages(count int) []*Frame {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if count <= 0 || count > len(s.imagesList) {
		count = len(s.imagesList)
	}

	result := make([]*Frame, count)
	copy(result, s.imagesList[len(s.imagesList)-count:])
	return result
}

// GetImage gibt ein bestimmtes Bild anhand seiner ID zurück
func (s *Service) GetImage(id string) *Frame {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.images[id]
}

// RegisterRoutes registriert die API-Routen für die Vorschau
func (s *Service) RegisterRoutes(router gin.IRouter) {
	router.GET("/api/frames", s.handleGetLatestImages)
	router.GET("/api/frames/:id", s.handleGetImage)
	router.GET("/preview", s.handlePreviewPage)
}

// handleGetLatestImages gibt die Metadaten der neuesten Bilder als JSON zurück
func (s *Service) handleGetLatestImages(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "10"))
	if err != nil {
		count = 10
	}

	type frameMetadata struct {
		*Frame
		URL string `json:"url"`
	}

	images := s.GetLatestImages(count)
	metadata := make([]frameMetadata, len(images))
	for i, img := range images {
		metadata[i] = frameMetadata{Frame: img, URL: "/api/frames/" + img.ID}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(metadata),
		"images": metadata,
	})
}

// handleGetImage gibt ein bestimmtes Bild als JPEG zurück
func (s *Service) handleGetImage(c *gin.Context) {
	img := s.GetImage(c.Param("id"))
	if img == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "frame not found", "id": c.Param("id")})
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/jpeg", img.ImageData)
}

// handlePreviewPage zeigt eine einfache Seite mit dem neuesten Bild an
func (s *Service) handlePreviewPage(c *gin.Context) {
	c.Header("Content-Type", "text/html")
	c.String(http.StatusOK, previewPage)
}

const previewPage = `<!DOCTYPE html>
<html>
<head>
    <title>Attendance Preview</title>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #f0f0f0; }
        img { max-width: 100%; border-radius: 5px; box-shadow: 0 2px 5px rgba(0,0,0,0.1); }
        #names { margin-top: 10px; color: #333; }
    </style>
</head>
<body>
    <h1>Attendance Preview</h1>
    <img id="frame" alt="latest frame">
    <div id="names"></div>
    <script>
        function refresh() {
            fetch('/api/frames?count=1')
                .then(function(r) { return r.json(); })
                .then(function(data) {
                    if (data.count === 0) { return; }
                    var f = data.images[0];
                    document.getElementById('frame').src = f.url;
                    document.getElementById('names').textContent = (f.names || []).join(', ');
                })
                .finally(function() { setTimeout(refresh, 1000); });
        }
        refresh();
    </script>
</body>
</html>`
