// Package pipeline verarbeitet Kamerabilder: verkleinern, Gesichter finden, zuordnen,
// Anwesenheit melden und das Originalbild beschriften.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"face-attendance-go/internal/core/ledger"
	"face-attendance-go/internal/core/recognition"
	"face-attendance-go/internal/integrations/facerecognition"
	"face-attendance-go/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

// Gründe für das Ende eines Laufs
const (
	StopReasonEndOfStream  = "end_of_stream"
	StopReasonStopped      = "stopped"
	StopReasonCaptureError = "capture_error"
)

// Config enthält die Einstellungen der Pipeline
type Config struct {
	// Scale ist der Verkleinerungsfaktor vor der Erkennung, 0 < Scale <= 1
	Scale float64
	// Workers > 1 verteilt die Gesichter eines Bildes auf einen Worker-Pool
	Workers int
}

// RunStats fasst einen Lauf zusammen
type RunStats struct {
	Frames         int       `json:"frames"`
	FramesSkipped  int       `json:"frames_skipped"`
	Faces          int       `json:"faces"`
	Recognized     int       `json:"recognized"`
	Unknown        int       `json:"unknown"`
	Recorded       int       `json:"recorded"`
	AlreadyPresent int       `json:"already_present"`
	StoreErrors    int       `json:"store_errors"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at,omitempty"`
	StopReason     string    `json:"stop_reason,omitempty"`
}

func (s *RunStats) add(frame *AnnotatedFrame) {
	s.Frames++
	for _, d := range frame.Detections {
		s.Faces++
		if d.Known {
			s.Recognized++
		} else {
			s.Unknown++
		}
		switch d.Mark {
		case ledger.Recorded:
			s.Recorded++
		case ledger.AlreadyPresentToday:
			s.AlreadyPresent++
		}
		var storeErr *ledger.StoreError
		if errors.As(d.Err, &storeErr) {
			s.StoreErrors++
		}
	}
}

// Option konfiguriert optionale Abhängigkeiten der Pipeline
type Option func(*Pipeline)

// WithClock ersetzt die Uhr, aus der Datum und Uhrzeit der Einträge stammen
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

// WithMetrics setzt den Metrik-Sammler
func WithMetrics(m MetricsCollector) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithEventHandler registriert einen Empfänger für neue Anwesenheitseinträge
func WithEventHandler(h EventHandler) Option {
	return func(p *Pipeline) {
		if h != nil {
			p.handlers = append(p.handlers, h)
		}
	}
}

// Pipeline verbindet Detektor, Encoder, Matcher und Anwesenheitsliste
type Pipeline struct {
	cfg      Config
	detector facerecognition.Detector
	encoder  facerecognition.Encoder
	matcher  *recognition.Matcher
	marker   ledger.Marker
	clock    func() time.Time
	metrics  MetricsCollector
	handlers []EventHandler
	pool     *WorkerPool

	mu      sync.RWMutex
	cancel  context.CancelFunc
	running bool
	current RunStats
}

// New erstellt eine neue Pipeline
func New(cfg Config, detector facerecognition.Detector, encoder facerecognition.Encoder,
	matcher *recognition.Matcher, marker ledger.Marker, opts ...Option) *Pipeline {

	if cfg.Scale <= 0 || cfg.Scale > 1 {
		cfg.Scale = 1
	}

	p := &Pipeline{
		cfg:      cfg,
		detector: detector,
		encoder:  encoder,
		matcher:  matcher,
		marker:   marker,
		clock:    timezone.Now,
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if cfg.Workers > 1 {
		p.pool = NewWorkerPool(cfg.Workers, p.analyzeFace)
	}

	return p
}

// Process verarbeitet ein einzelnes Bild. Jedes gefundene Gesicht wird einzeln
// zugeordnet und bei bekannter Identität in der Anwesenheitsliste vermerkt.
func (p *Pipeline) Process(ctx context.Context, frame image.Image) (*AnnotatedFrame, error) {
	start := time.Now()

	small := Downscale(frame, p.cfg.Scale)
	boxes, err := p.detector.Detect(ctx, small)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	p.metrics.RecordFacesDetected(len(boxes))

	// Der Encoder erhält das Gesicht in Originalauflösung
	origin := frame.Bounds().Min
	regions := make([]image.Rectangle, len(boxes))
	for i, box := range boxes {
		regions[i] = RescaleBox(box, p.cfg.Scale, origin).Intersect(frame.Bounds())
	}

	now := p.clock()
	detections := p.analyzeFaces(ctx, frame, regions, now)

	annotated := &AnnotatedFrame{
		Image:      Annotate(frame, detections),
		Detections: detections,
		CapturedAt: now,
	}

	p.dispatch(ctx, annotated, now)
	p.metrics.RecordFrame(time.Since(start))

	return annotated, nil
}

// analyzeFaces analysiert alle Gesichter eines Bildes, bei aktivem Pool parallel.
// Die Rechtecke liegen in Koordinaten von frame. Die Reihenfolge der Ergebnisse
// entspricht der Reihenfolge der Rechtecke.
func (p *Pipeline) analyzeFaces(ctx context.Context, frame image.Image, boxes []image.Rectangle, now time.Time) []Detection {
	detections := make([]Detection, len(boxes))

	if p.pool == nil || len(boxes) < 2 {
		for i, box := range boxes {
			detections[i] = p.analyzeFace(ctx, frame, box, now)
		}
		return detections
	}

	results := make([]<-chan Detection, len(boxes))
	for i, box := range boxes {
		ch, err := p.pool.Submit(ctx, frame, box, now)
		if err != nil {
			log.WithError(err).Warn("Could not submit face to worker pool, analyzing inline")
			detections[i] = p.analyzeFace(ctx, frame, box, now)
			continue
		}
		results[i] = ch
	}
	for i, ch := range results {
		if ch == nil {
			continue
		}
		select {
		case detections[i] = <-ch:
		case <-ctx.Done():
			detections[i] = Detection{
				Box:  boxes[i],
				Name: recognition.Unknown,
				Err:  ctx.Err(),
			}
		}
	}
	return detections
}

// analyzeFace berechnet den Vektor eines Gesichts, ordnet ihn zu und meldet die Anwesenheit
func (p *Pipeline) analyzeFace(ctx context.Context, frame image.Image, box image.Rectangle, now time.Time) Detection {
	d := Detection{
		Box:  box,
		Name: recognition.Unknown,
	}

	embedding, err := p.encoder.Encode(ctx, frame, box)
	if err != nil {
		if errors.Is(err, facerecognition.ErrNoFace) {
			log.Debugf("No encodable face in region %v", box)
		} else {
			log.WithError(err).Warnf("Failed to encode face in region %v", box)
		}
		d.Err = err
		p.metrics.RecordMatch(false)
		return d
	}

	result := p.matcher.Match(embedding)
	d.Name = result.Name
	d.Distance = result.Distance
	d.Known = result.Known
	p.metrics.RecordMatch(result.Known)

	if !result.Known {
		return d
	}

	mark, err := p.marker.Mark(ctx, result.Name, now)
	if err != nil {
		log.WithError(err).WithField("name", result.Name).Error("Failed to record attendance, continuing")
		d.Err = err
		p.metrics.RecordMark("error")
		return d
	}
	d.Mark = mark
	p.metrics.RecordMark(mark.String())

	return d
}

// dispatch benachrichtigt alle Empfänger über neu geschriebene Einträge
func (p *Pipeline) dispatch(ctx context.Context, frame *AnnotatedFrame, now time.Time) {
	if len(p.handlers) == 0 {
		return
	}
	for _, d := range frame.Detections {
		if d.Mark != ledger.Recorded {
			continue
		}
		event := AttendanceEvent{
			Name:      d.Name,
			Date:      now.Format(ledger.DateLayout),
			Time:      now.Format(ledger.TimeLayout),
			Distance:  d.Distance,
			Box:       d.Box,
			Timestamp: now,
			Frame:     frame,
		}
		for _, h := range p.handlers {
			h.HandleAttendance(ctx, event)
		}
	}
}

// Run zieht Bilder aus source, bis die Quelle endet, Stop aufgerufen wird,
// ctx abläuft oder sink ErrStopRequested meldet. Ein CaptureError beendet nur den Lauf.
func (p *Pipeline) Run(ctx context.Context, source FrameSource, sink FrameSink) (RunStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return RunStats{}, errors.New("pipeline is already running")
	}
	p.running = true
	p.cancel = cancel
	p.current = RunStats{StartedAt: p.clock()}
	p.mu.Unlock()

	log.Info("Recognition run started")

	stats, err := p.loop(ctx, source, sink)

	stats.EndedAt = p.clock()
	p.mu.Lock()
	p.running = false
	p.cancel = nil
	p.current = stats
	p.mu.Unlock()

	log.WithFields(log.Fields{
		"frames":      stats.Frames,
		"skipped":     stats.FramesSkipped,
		"recorded":    stats.Recorded,
		"stop_reason": stats.StopReason,
	}).Info("Recognition run finished")

	return stats, err
}

func (p *Pipeline) loop(ctx context.Context, source FrameSource, sink FrameSink) (RunStats, error) {
	p.mu.RLock()
	stats := p.current
	p.mu.RUnlock()

	for {
		if ctx.Err() != nil {
			stats.StopReason = StopReasonStopped
			return stats, nil
		}

		frame, err := source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrFrameDropped):
				log.WithError(err).Warn("Skipping unreadable frame")
				stats.FramesSkipped++
				p.metrics.RecordFrameSkipped()
				p.publish(stats)
				continue
			case errors.Is(err, ErrEndOfStream):
				stats.StopReason = StopReasonEndOfStream
				return stats, nil
			case ctx.Err() != nil:
				stats.StopReason = StopReasonStopped
				return stats, nil
			default:
				log.WithError(err).Error("Frame source failed, ending run")
				stats.StopReason = StopReasonCaptureError
				var captureErr *CaptureError
				if errors.As(err, &captureErr) {
					return stats, captureErr
				}
				return stats, &CaptureError{Err: err}
			}
		}

		annotated, err := p.Process(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				stats.StopReason = StopReasonStopped
				return stats, nil
			}
			log.WithError(err).Warn("Skipping frame")
			stats.FramesSkipped++
			p.metrics.RecordFrameSkipped()
			p.publish(stats)
			continue
		}

		stats.add(annotated)
		p.publish(stats)

		if sink == nil {
			continue
		}
		if err := sink.Show(ctx, annotated); err != nil {
			if errors.Is(err, ErrStopRequested) {
				log.Info("Stop requested by frame sink")
				stats.StopReason = StopReasonStopped
				return stats, nil
			}
			log.WithError(err).Warn("Failed to display frame")
		}
	}
}

func (p *Pipeline) publish(stats RunStats) {
	p.mu.Lock()
	p.current = stats
	p.mu.Unlock()
}

// Stop beendet einen laufenden Lauf. Ohne laufenden Lauf passiert nichts.
func (p *Pipeline) Stop() {
	p.mu.RLock()
	cancel := p.cancel
	p.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Running meldet, ob gerade ein Lauf aktiv ist
func (p *Pipeline) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Stats gibt die Statistik des laufenden oder letzten Laufs zurück
func (p *Pipeline) Stats() RunStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Pool gibt den Worker-Pool zurück, nil wenn ohne Pool gearbeitet wird
func (p *Pipeline) Pool() *WorkerPool {
	return p.pool
}

// Close gibt den Worker-Pool frei
func (p *Pipeline) Close() {
	if p.pool != nil {
		p.pool.Shutdown()
	}
}
