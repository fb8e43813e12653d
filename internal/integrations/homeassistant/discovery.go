package homeassistant

import (
	"fmt"
	"strings"

	"face-attendance-go/config"
	"face-attendance-go/internal/integrations/mqtt"

	log "github.com/sirupsen/logrus"
)

// Konstanten für Home Assistant MQTT Discovery
const (
	// Component-Typ für Sensoren
	ComponentSensor = "sensor"

	// Node-ID für das Anwesenheitssystem
	NodeID = "face_attendance"
)

// SensorConfig repräsentiert die MQTT-Discovery-Konfiguration für einen Sensor in Home Assistant
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	ValueTemplate       string  `json:"value_template,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device repräsentiert die Geräteinformationen für Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// DiscoveryManager verwaltet die Home Assistant MQTT Discovery
type DiscoveryManager struct {
	publisher       mqtt.Publisher
	topicPrefix     string
	discoveryPrefix string
}

// NewDiscoveryManager erstellt einen neuen Manager für Home Assistant Discovery
func NewDiscoveryManager(publisher mqtt.Publisher, cfg config.MQTTConfig) *DiscoveryManager {
	discoveryPrefix := cfg.HomeAssistant.DiscoveryPrefix
	if discoveryPrefix == "" {
		discoveryPrefix = "homeassistant"
	}
	topicPrefix := cfg.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = "attendance"
	}
	return &DiscoveryManager{
		publisher:       publisher,
		topicPrefix:     topicPrefix,
		discoveryPrefix: discoveryPrefix,
	}
}

// NormalizeName macht einen Namen für Topics und IDs tauglich
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}

// attendanceTopic ist das Topic, auf dem die Anwesenheit einer Person gemeldet wird
func attendanceTopic(prefix, name string) string {
	return fmt.Sprintf("%s/attendance/%s", prefix, NormalizeName(name))
}

// RegisterIdentities veröffentlicht Discovery-Konfigurationen für alle Identitäten
func (dm *DiscoveryManager) RegisterIdentities(names []string) error {
	device := &Device{
		Identifiers:  []string{NodeID},
		Name:         "Face Attendance",
		Manufacturer: "Face Attendance Project",
		Model:        "Go Edition",
	}

	var failed int
	for _, name := range names {
		if err := dm.registerIdentitySensor(name, device); err != nil {
			log.Errorf("Failed to register sensor for identity %s: %v", name, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sensors could not be registered", failed, len(names))
	}
	return nil
}

// registerIdentitySensor erstellt eine Discovery-Konfiguration für eine einzelne Identität
func (dm *DiscoveryManager) registerIdentitySensor(name string, device *Device) error {
	normalizedName := NormalizeName(name)
	stateTopic := attendanceTopic(dm.topicPrefix, name)

	sensorConfig := SensorConfig{
		Name:                fmt.Sprintf("Attendance %s", name),
		UniqueID:            fmt.Sprintf("%s_%s", NodeID, normalizedName),
		StateTopic:          stateTopic,
		JSONAttributesTopic: stateTopic,
		ValueTemplate:       "{{ value_json.date }} {{ value_json.time }}",
		Icon:                "mdi:account-check",
		AvailabilityTopic:   dm.topicPrefix + "/status",
		PayloadAvailable:    mqtt.StatusOnline,
		PayloadNotAvailable: mqtt.StatusOffline,
		Device:              device,
	}

	topic := fmt.Sprintf("%s/%s/%s/%s/config",
		dm.discoveryPrefix,
		ComponentSensor,
		NodeID,
		normalizedName)

	log.Infof("Registering Home Assistant sensor for identity: %s", name)
	if err := dm.publisher.PublishRetain(topic, sensorConfig); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}
	return nil
}

// PublishAvailability veröffentlicht den Online-Status
func (dm *DiscoveryManager) PublishAvailability(online bool) error {
	status := mqtt.StatusOffline
	if online {
		status = mqtt.StatusOnline
	}
	return dm.publisher.PublishRetain(dm.topicPrefix+"/status", status)
}
