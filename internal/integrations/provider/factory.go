package provider

import (
	"context"
	"fmt"
	"io"

	"face-attendance-go/config"
	"face-attendance-go/internal/integrations/dlib"
	"face-attendance-go/internal/integrations/facerecognition"
	"face-attendance-go/internal/integrations/insightface"
	"face-attendance-go/internal/integrations/opencv"

	log "github.com/sirupsen/logrus"
)

// Providers bündelt den aktiven Detektor und Encoder
type Providers struct {
	Manager  *facerecognition.ProviderManager
	Detector facerecognition.Detector
	Encoder  facerecognition.Encoder
	closers  []io.Closer
}

// Close gibt alle geladenen Modelle frei
func (p *Providers) Close() error {
	var firstErr error
	for _, c := range p.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.closers = nil
	return firstErr
}

// CreateManager erstellt Detektor und Encoder basierend auf der Konfiguration.
// dlib wird nur einmal geladen, auch wenn es beide Rollen übernimmt.
func CreateManager(ctx context.Context, cfg *config.Config) (*Providers, error) {
	p := &Providers{Manager: facerecognition.NewProviderManager()}

	var dlibService *dlib.Service
	loadDlib := func() (*dlib.Service, error) {
		if dlibService != nil {
			return dlibService, nil
		}
		svc, err := dlib.NewService(cfg.Recognition.ModelDir)
		if err != nil {
			return nil, err
		}
		dlibService = svc
		p.closers = append(p.closers, svc)
		p.Manager.RegisterDetector(svc)
		p.Manager.RegisterEncoder(svc)
		return svc, nil
	}

	switch facerecognition.ProviderType(cfg.Recognition.Detector) {
	case facerecognition.ProviderHaar:
		log.Info("Registriere OpenCV-Haar-Kaskade als Gesichtsdetektor")
		haar, err := opencv.NewHaarDetector(cfg.OpenCV)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create haar detector: %w", err)
		}
		p.closers = append(p.closers, haar)
		p.Manager.RegisterDetector(haar)
	case facerecognition.ProviderDlib:
		log.Info("Registriere dlib als Gesichtsdetektor")
		if _, err := loadDlib(); err != nil {
			p.Close()
			return nil, err
		}
	default:
		p.Close()
		return nil, fmt.Errorf("unknown face detector %q", cfg.Recognition.Detector)
	}

	switch facerecognition.ProviderType(cfg.Recognition.Encoder) {
	case facerecognition.ProviderDlib:
		log.Info("Registriere dlib als Encoder")
		if _, err := loadDlib(); err != nil {
			p.Close()
			return nil, err
		}
	case facerecognition.ProviderInsightFace:
		log.Info("Registriere InsightFace als Encoder")
		svc := insightface.NewService(cfg.InsightFace)
		if !svc.IsAvailable(ctx) {
			log.Warnf("InsightFace service at %s is not reachable", cfg.InsightFace.URL)
		}
		p.Manager.RegisterEncoder(svc)
	default:
		p.Close()
		return nil, fmt.Errorf("unknown face encoder %q", cfg.Recognition.Encoder)
	}

	p.Manager.SetActiveDetector(facerecognition.ProviderType(cfg.Recognition.Detector))
	p.Manager.SetActiveEncoder(facerecognition.ProviderType(cfg.Recognition.Encoder))

	p.Detector, _ = p.Manager.ActiveDetector()
	p.Encoder, _ = p.Manager.ActiveEncoder()

	log.Infof("Aktiver Detektor: %s, aktiver Encoder: %s", p.Detector.Name(), p.Encoder.Name())
	return p, nil
}
