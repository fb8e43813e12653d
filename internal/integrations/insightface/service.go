package insightface

import (
	"context"
	"fmt"
	"image"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/recognition"
	"face-attendance-go/internal/integrations/facerecognition"
)

// cropMargin ist der Rand um ein Gesicht, den der Dienst für eine stabile Erkennung braucht
const cropMargin = 0.25

// Service implementiert Detector und Encoder über den InsightFace-Dienst
type Service struct {
	client *APIClient
}

// NewService erstellt einen neuen InsightFace-Service
func NewService(cfg config.InsightFaceConfig) *Service {
	return &Service{
		client: NewAPIClient(cfg),
	}
}

// Name gibt den Namen des Providers zurück
func (s *Service) Name() facerecognition.ProviderType {
	return facerecognition.ProviderInsightFace
}

// IsAvailable prüft, ob der InsightFace-Dienst verfügbar ist
func (s *Service) IsAvailable(ctx context.Context) bool {
	available, _ := s.client.Ping(ctx)
	return available
}

// Detect gibt die Gesichtsrechtecke in Koordinaten von img zurück
func (s *Service) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	resp, err := s.client.DetectFaces(ctx, img, false)
	if err != nil {
		return nil, fmt.Errorf("fehler bei der Gesichtserkennung: %w", err)
	}

	origin := img.Bounds().Min
	boxes := make([]image.Rectangle, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		box, ok := toRect(face.BoundingBox)
		if !ok {
			continue
		}
		boxes = append(boxes, box.Add(origin))
	}
	return boxes, nil
}

// Encode berechnet den Vektor für das Gesicht in box. Liefert der Dienst mehrere
// Gesichter im Ausschnitt, wird das größte verwendet.
func (s *Service) Encode(ctx context.Context, img image.Image, box image.Rectangle) (recognition.Embedding, error) {
	crop := facerecognition.CropFace(img, box, cropMargin)

	resp, err := s.client.DetectFaces(ctx, crop, true)
	if err != nil {
		return nil, fmt.Errorf("fehler bei der Vektorberechnung: %w", err)
	}

	var best *apiFace
	bestArea := -1
	for i := range resp.Faces {
		face := &resp.Faces[i]
		if len(face.Embedding) == 0 {
			continue
		}
		area := 0
		if r, ok := toRect(face.BoundingBox); ok {
			area = r.Dx() * r.Dy()
		}
		if area > bestArea {
			best, bestArea = face, area
		}
	}
	if best == nil {
		return nil, facerecognition.ErrNoFace
	}

	embedding := make(recognition.Embedding, len(best.Embedding))
	for i, v := range best.Embedding {
		embedding[i] = float64(v)
	}
	return embedding, nil
}

// toRect wandelt [x1, y1, x2, y2] in ein Rechteck um
func toRect(bbox []int) (image.Rectangle, bool) {
	if len(bbox) != 4 {
		return image.Rectangle{}, false
	}
	r := image.Rect(bbox[0], bbox[1], bbox[2], bbox[3])
	return r, !r.Empty()
}
