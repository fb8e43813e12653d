// Package dlib bindet dlib über go-face als Detektor und Encoder an.
// Die Modelle (shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat,
// mmod_human_face_detector.dat) müssen im Modellverzeichnis liegen.
package dlib

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"face-attendance-go/internal/core/recognition"
	"face-attendance-go/internal/integrations/facerecognition"

	"github.com/Kagami/go-face"
	log "github.com/sirupsen/logrus"
)

// ErrModelNotLoaded wird zurückgegeben, wenn die Modelle bereits freigegeben wurden
var ErrModelNotLoaded = errors.New("dlib models not loaded")

const (
	cropMargin = 0.25
	// minFaceSize ist die kürzeste Seite, ab der der HOG-Detektor von dlib ein Gesicht findet
	minFaceSize = 150
)

// Service implementiert Detector und Encoder mit dlib
type Service struct {
	mu       sync.Mutex
	rec      *face.Recognizer
	modelDir string
}

// NewService lädt die dlib-Modelle aus modelDir
func NewService(modelDir string) (*Service, error) {
	log.Infof("Loading dlib face recognition models from: %s", modelDir)

	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models: %w", err)
	}

	return &Service{
		rec:      rec,
		modelDir: modelDir,
	}, nil
}

// Name gibt den Namen des Providers zurück
func (s *Service) Name() facerecognition.ProviderType {
	return facerecognition.ProviderDlib
}

// IsAvailable meldet, ob die Modelle geladen sind
func (s *Service) IsAvailable(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec != nil
}

// Detect findet alle Gesichter in img
func (s *Service) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	data, err := toJPEG(img)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, ErrModelNotLoaded
	}

	faces, err := s.rec.Recognize(data)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	origin := img.Bounds().Min
	boxes := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		boxes[i] = f.Rectangle.Add(origin)
	}
	return boxes, nil
}

// Encode berechnet den 128-dimensionalen Vektor des Gesichts in box
func (s *Service) Encode(ctx context.Context, img image.Image, box image.Rectangle) (recognition.Embedding, error) {
	crop := facerecognition.EnsureMinSize(facerecognition.CropFace(img, box, cropMargin), minFaceSize)
	data, err := toJPEG(crop)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, ErrModelNotLoaded
	}

	f, err := s.rec.RecognizeSingle(data)
	if err != nil {
		return nil, fmt.Errorf("face encoding failed: %w", err)
	}
	if f == nil {
		return nil, facerecognition.ErrNoFace
	}

	embedding := make(recognition.Embedding, len(f.Descriptor))
	for i, v := range f.Descriptor {
		embedding[i] = float64(v)
	}
	return embedding, nil
}

// Close gibt die Modelle frei
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil {
		s.rec.Close()
		s.rec = nil
	}
	return nil
}

func toJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
