package facerecognition

import (
	"context"
	"errors"
	"image"
	"sort"
	"sync"

	"face-attendance-go/internal/core/recognition"
)

// ProviderType definiert den Typ eines Erkennungsdiensts
type ProviderType string

const (
	// ProviderDlib steht für dlib über go-face (Erkennung und Vektoren)
	ProviderDlib ProviderType = "dlib"

	// ProviderInsightFace steht für den InsightFace-Dienst
	ProviderInsightFace ProviderType = "insightface"

	// ProviderHaar steht für den OpenCV-Haar-Kaskaden-Detektor
	ProviderHaar ProviderType = "haar"
)

// ErrNoFace wird zurückgegeben, wenn im Bildausschnitt kein Gesicht gefunden wurde
var ErrNoFace = errors.New("no face found")

// Provider ist die gemeinsame Basis aller Erkennungsdienste
type Provider interface {
	// Name gibt den Namen des Providers zurück
	Name() ProviderType

	// IsAvailable prüft, ob der Dienst verfügbar ist
	IsAvailable(ctx context.Context) bool
}

// Detector findet Gesichtsrechtecke in einem Bild
type Detector interface {
	Provider

	// Detect gibt die Rechtecke in Koordinaten von img zurück
	Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error)
}

// Encoder berechnet den Merkmalsvektor eines Gesichts
type Encoder interface {
	Provider

	// Encode berechnet den Vektor für das Gesicht in box
	Encode(ctx context.Context, img image.Image, box image.Rectangle) (recognition.Embedding, error)
}

// ProviderManager verwaltet Detektoren und Encoder und wählt die aktiven aus
type ProviderManager struct {
	mu             sync.RWMutex
	detectors      map[ProviderType]Detector
	encoders       map[ProviderType]Encoder
	activeDetector ProviderType
	activeEncoder  ProviderType
}

// NewProviderManager erstellt einen neuen ProviderManager
func NewProviderManager() *ProviderManager {
	return &ProviderManager{
		detectors: make(map[ProviderType]Detector),
		encoders:  make(map[ProviderType]Encoder),
	}
}

// RegisterDetector registriert einen Detektor
func (m *ProviderManager) RegisterDetector(d Detector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detectors[d.Name()] = d
}

// RegisterEncoder registriert einen Encoder
func (m *ProviderManager) RegisterEncoder(e Encoder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encoders[e.Name()] = e
}

// SetActiveDetector setzt den aktiven Detektor
func (m *ProviderManager) SetActiveDetector(providerType ProviderType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.detectors[providerType]; exists {
		m.activeDetector = providerType
		return true
	}
	return false
}

// SetActiveEncoder setzt den aktiven Encoder
func (m *ProviderManager) SetActiveEncoder(providerType ProviderType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.encoders[providerType]; exists {
		m.activeEncoder = providerType
		return true
	}
	return false
}

// ActiveDetector gibt den aktiven Detektor zurück
func (m *ProviderManager) ActiveDetector() (Detector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.detectors[m.activeDetector]
	return d, ok
}

// ActiveEncoder gibt den aktiven Encoder zurück
func (m *ProviderManager) ActiveEncoder() (Encoder, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.encoders[m.activeEncoder]
	return e, ok
}

// GetAvailableProviders gibt die Namen aller erreichbaren Provider sortiert zurück
func (m *ProviderManager) GetAvailableProviders(ctx context.Context) []ProviderType {
	m.mu.RLock()
	providers := make(map[ProviderType]Provider, len(m.detectors)+len(m.encoders))
	for name, d := range m.detectors {
		providers[name] = d
	}
	for name, e := range m.encoders {
		providers[name] = e
	}
	m.mu.RUnlock()

	var available []ProviderType
	for name, provider := range providers {
		if provider.IsAvailable(ctx) {
			available = append(available, name)
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i] < available[j] })
	return available
}
