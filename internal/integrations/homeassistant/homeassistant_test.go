package homeassistant

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/pipeline"
)

type published struct {
	topic   string
	payload interface{}
	retain  bool
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (f *fakePublisher) Publish(topic string, payload interface{}) error {
	return f.record(topic, payload, false)
}

func (f *fakePublisher) PublishRetain(topic string, payload interface{}) error {
	return f.record(topic, payload, true)
}

func (f *fakePublisher) record(topic string, payload interface{}, retain bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{topic, payload, retain})
	return nil
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"alice":         "alice",
		"Jane Doe":      "jane_doe",
		"  Max  Muster": "max_muster",
	}
	for in, want := range tests {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegisterIdentities(t *testing.T) {
	pub := &fakePublisher{}
	dm := NewDiscoveryManager(pub, config.MQTTConfig{TopicPrefix: "office"})

	if err := dm.RegisterIdentities([]string{"alice", "Jane Doe"}); err != nil {
		t.Fatalf("RegisterIdentities() error = %v", err)
	}
	if len(pub.messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(pub.messages))
	}

	msg := pub.messages[1]
	if msg.topic != "homeassistant/sensor/face_attendance/jane_doe/config" || !msg.retain {
		t.Errorf("discovery message = %s (retain %v)", msg.topic, msg.retain)
	}
	sensor, ok := msg.payload.(SensorConfig)
	if !ok {
		t.Fatalf("payload type = %T, want SensorConfig", msg.payload)
	}
	if sensor.StateTopic != "office/attendance/jane_doe" || sensor.AvailabilityTopic != "office/status" {
		t.Errorf("sensor topics = %s / %s", sensor.StateTopic, sensor.AvailabilityTopic)
	}
	if sensor.UniqueID != "face_attendance_jane_doe" {
		t.Errorf("UniqueID = %s", sensor.UniqueID)
	}
}

func TestRegisterIdentitiesReportsFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	dm := NewDiscoveryManager(pub, config.MQTTConfig{})
	if err := dm.RegisterIdentities([]string{"alice"}); err == nil {
		t.Error("RegisterIdentities() should report failed sensors")
	}
}

func TestPublishAvailability(t *testing.T) {
	pub := &fakePublisher{}
	dm := NewDiscoveryManager(pub, config.MQTTConfig{})

	if err := dm.PublishAvailability(true); err != nil {
		t.Fatal(err)
	}
	if err := dm.PublishAvailability(false); err != nil {
		t.Fatal(err)
	}
	if pub.messages[0].payload != "online" || pub.messages[1].payload != "offline" {
		t.Errorf("availability payloads = %v, %v", pub.messages[0].payload, pub.messages[1].payload)
	}
	if pub.messages[0].topic != "attendance/status" {
		t.Errorf("availability topic = %s", pub.messages[0].topic)
	}
}

func TestPublisherHandleAttendance(t *testing.T) {
	pub := &fakePublisher{}
	p := NewPublisher(pub, config.MQTTConfig{TopicPrefix: "office"})

	p.HandleAttendance(context.Background(), pipeline.AttendanceEvent{
		Name:      "Jane Doe",
		Date:      "2024-03-15",
		Time:      "09:30:00",
		Distance:  0.31,
		Box:       image.Rect(40, 80, 120, 200),
		Timestamp: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
	})

	if len(pub.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.topic != "office/attendance/jane_doe" || !msg.retain {
		t.Errorf("message = %s (retain %v)", msg.topic, msg.retain)
	}
	body := msg.payload.(AttendanceMessage)
	want := Box{Top: 80, Left: 40, Width: 80, Height: 120}
	if body.Box != want || body.Time != "09:30:00" {
		t.Errorf("payload = %+v", body)
	}
}
