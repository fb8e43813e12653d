package homeassistant

import (
	"context"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/pipeline"
	"face-attendance-go/internal/integrations/mqtt"

	log "github.com/sirupsen/logrus"
)

// Box beschreibt die Position eines Gesichts im Originalbild
type Box struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AttendanceMessage ist die Nutzlast eines Anwesenheitsereignisses
type AttendanceMessage struct {
	Name      string    `json:"name"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Distance  float64   `json:"distance"`
	Box       Box       `json:"box"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher veröffentlicht neue Anwesenheitseinträge über MQTT
type Publisher struct {
	publisher   mqtt.Publisher
	topicPrefix string
}

// NewPublisher erstellt einen neuen Publisher
func NewPublisher(publisher mqtt.Publisher, cfg config.MQTTConfig) *Publisher {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "attendance"
	}
	return &Publisher{
		publisher:   publisher,
		topicPrefix: prefix,
	}
}

// HandleAttendance erfüllt pipeline.EventHandler. Die Nachricht wird mit Retain-Flag
// gesendet, damit Home Assistant nach einem Neustart den letzten Stand kennt.
func (p *Publisher) HandleAttendance(ctx context.Context, event pipeline.AttendanceEvent) {
	msg := AttendanceMessage{
		Name:     event.Name,
		Date:     event.Date,
		Time:     event.Time,
		Distance: event.Distance,
		Box: Box{
			Top:    event.Box.Min.Y,
			Left:   event.Box.Min.X,
			Width:  event.Box.Dx(),
			Height: event.Box.Dy(),
		},
		Timestamp: event.Timestamp,
	}

	topic := attendanceTopic(p.topicPrefix, event.Name)
	if err := p.publisher.PublishRetain(topic, msg); err != nil {
		log.WithError(err).WithField("topic", topic).Warn("Failed to publish attendance event")
		return
	}
	log.Debugf("Published attendance for %s to %s", event.Name, topic)
}
