// Package metrics stellt Prometheus-Metriken der Pipeline bereit
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector sammelt die Laufzeitmetriken der Pipeline
type Collector struct {
	framesProcessed prometheus.Counter
	framesSkipped   prometheus.Counter
	frameLatency    prometheus.Histogram
	facesDetected   prometheus.Counter
	matches         *prometheus.CounterVec
	marks           *prometheus.CounterVec
	knownIdentities prometheus.Gauge
}

// NewCollector erstellt einen neuen Collector und registriert die Metriken bei reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_frames_processed_total",
			Help: "Anzahl verarbeiteter Bilder",
		}),
		framesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_frames_skipped_total",
			Help: "Anzahl übersprungener Bilder",
		}),
		frameLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_frame_duration_seconds",
			Help:    "Verarbeitungsdauer pro Bild in Sekunden",
			Buckets: prometheus.DefBuckets,
		}),
		facesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_faces_detected_total",
			Help: "Anzahl gefundener Gesichter",
		}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_matches_total",
			Help: "Zuordnungen nach Ergebnis (known, unknown)",
		}, []string{"result"}),
		marks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_marks_total",
			Help: "Ergebnisse der Anwesenheitsmeldung (recorded, already_present, error)",
		}, []string{"result"}),
		knownIdentities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendance_known_identities",
			Help: "Anzahl geladener bekannter Gesichter",
		}),
	}

	reg.MustRegister(
		c.framesProcessed,
		c.framesSkipped,
		c.frameLatency,
		c.facesDetected,
		c.matches,
		c.marks,
		c.knownIdentities,
	)

	return c
}

// RecordFrame zählt ein verarbeitetes Bild und seine Dauer
func (c *Collector) RecordFrame(duration time.Duration) {
	c.framesProcessed.Inc()
	c.frameLatency.Observe(duration.Seconds())
}

// RecordFrameSkipped zählt ein übersprungenes Bild
func (c *Collector) RecordFrameSkipped() {
	c.framesSkipped.Inc()
}

// RecordFacesDetected zählt gefundene Gesichter
func (c *Collector) RecordFacesDetected(count int) {
	c.facesDetected.Add(float64(count))
}

// RecordMatch zählt eine Zuordnung
func (c *Collector) RecordMatch(known bool) {
	result := "unknown"
	if known {
		result = "known"
	}
	c.matches.WithLabelValues(result).Inc()
}

// RecordMark zählt das Ergebnis einer Anwesenheitsmeldung
func (c *Collector) RecordMark(result string) {
	c.marks.WithLabelValues(result).Inc()
}

// SetKnownIdentities setzt die Anzahl geladener Identitäten
func (c *Collector) SetKnownIdentities(n int) {
	c.knownIdentities.Set(float64(n))
}

// Handler gibt den HTTP-Handler für den Prometheus-Scrape zurück
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
