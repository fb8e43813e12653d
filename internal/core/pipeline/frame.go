package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"face-attendance-go/internal/core/ledger"
)

var (
	// ErrEndOfStream beendet einen Lauf regulär
	ErrEndOfStream = errors.New("end of stream")

	// ErrFrameDropped markiert ein einzelnes unlesbares Bild, das übersprungen wird
	ErrFrameDropped = errors.New("frame dropped")

	// ErrStopRequested wird von einer Ausgabe zurückgegeben, wenn der Benutzer beendet
	ErrStopRequested = errors.New("stop requested")
)

// CaptureError signalisiert, dass die Bildquelle kein Bild mehr liefern kann.
// Der Lauf endet, der Prozess läuft weiter.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("frame capture failed: %v", e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// FrameSource liefert Bilder auf Anfrage
type FrameSource interface {
	// Next blockiert bis zum nächsten Bild. Am Ende wird ErrEndOfStream zurückgegeben.
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// FrameSink zeigt annotierte Bilder an, z.B. in einem Fenster oder der Web-Vorschau
type FrameSink interface {
	Show(ctx context.Context, frame *AnnotatedFrame) error
}

// Detection ist ein erkanntes Gesicht innerhalb eines Bildes. Box liegt in Originalkoordinaten.
type Detection struct {
	Box      image.Rectangle   `json:"box"`
	Name     string            `json:"name"`
	Distance float64           `json:"distance"`
	Known    bool              `json:"known"`
	Mark     ledger.MarkResult `json:"mark,omitempty"`
	Err      error             `json:"-"`
}

// AnnotatedFrame ist das Originalbild mit eingezeichneten Rahmen und Namen
type AnnotatedFrame struct {
	Image      *image.RGBA
	Detections []Detection
	CapturedAt time.Time
}

// AttendanceEvent wird für jeden neu geschriebenen Anwesenheitseintrag ausgelöst
type AttendanceEvent struct {
	Name      string          `json:"name"`
	Date      string          `json:"date"`
	Time      string          `json:"time"`
	Distance  float64         `json:"distance"`
	Box       image.Rectangle `json:"box"`
	Timestamp time.Time       `json:"timestamp"`
	Frame     *AnnotatedFrame `json:"-"`
}

// EventHandler ist ein Interface für Empfänger von Anwesenheitsereignissen
type EventHandler interface {
	HandleAttendance(ctx context.Context, event AttendanceEvent)
}

// MetricsCollector ist die Schnittstelle für Laufzeitmetriken der Pipeline
type MetricsCollector interface {
	RecordFrame(duration time.Duration)
	RecordFrameSkipped()
	RecordFacesDetected(count int)
	RecordMatch(known bool)
	RecordMark(result string)
}

type noopMetrics struct{}

func (noopMetrics) RecordFrame(time.Duration) {}
func (noopMetrics) RecordFrameSkipped()       {}
func (noopMetrics) RecordFacesDetected(int)   {}
func (noopMetrics) RecordMatch(bool)          {}
func (noopMetrics) RecordMark(string)         {}

// MultiSink reicht jedes Bild an alle Ausgaben weiter. Meldet eine Ausgabe
// ErrStopRequested, wird dieser Fehler zurückgegeben.
type MultiSink []FrameSink

func (m MultiSink) Show(ctx context.Context, frame *AnnotatedFrame) error {
	var errs []error
	stop := false
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Show(ctx, frame); err != nil {
			if errors.Is(err, ErrStopRequested) {
				stop = true
				continue
			}
			errs = append(errs, err)
		}
	}
	if stop {
		return ErrStopRequested
	}
	return errors.Join(errs...)
}
