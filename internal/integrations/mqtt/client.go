package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"face-attendance-go/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Status-Werte für das Availability-Topic
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// publishTimeout begrenzt das Warten auf die Bestätigung des Brokers
const publishTimeout = 5 * time.Second

// Publisher ist die Schnittstelle, über die andere Komponenten Nachrichten senden
type Publisher interface {
	Publish(topic string, payload interface{}) error
	PublishRetain(topic string, payload interface{}) error
}

// Client ist der MQTT-Client für Anwesenheitsereignisse und den Online-Status
type Client struct {
	config config.MQTTConfig
	client mqtt.Client
	mu     sync.RWMutex
}

// NewClient erstellt einen neuen MQTT-Client
func NewClient(cfg config.MQTTConfig) *Client {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "attendance"
	}
	return &Client{config: cfg}
}

// Topic baut ein Topic unterhalb des konfigurierten Präfixes
func (c *Client) Topic(parts ...string) string {
	return strings.Join(append([]string{c.config.TopicPrefix}, parts...), "/")
}

// StatusTopic ist das Availability-Topic mit Last Will
func (c *Client) StatusTopic() string {
	return c.Topic("status")
}

// Start verbindet den Client mit dem Broker
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.Info("MQTT client is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()

	brokerURL := fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.config.ClientID)

	// Optionale Authentifizierung
	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	// Der Broker meldet offline, wenn die Verbindung abreißt
	opts.SetWill(c.StatusTopic(), StatusOffline, 1, true)

	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetConnectionLostHandler(c.connectionLostHandler)

	// Automatische Wiederverbindung
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	client := mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("timeout connecting to MQTT broker at %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		log.Errorf("Failed to connect to MQTT broker: %v", err)
		return err
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	log.Info("MQTT client connected successfully")
	return nil
}

// Stop meldet offline und trennt die Verbindung
func (c *Client) Stop() {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client != nil && client.IsConnected() {
		if err := c.PublishRetain(c.StatusTopic(), StatusOffline); err != nil {
			log.Warnf("Failed to publish offline status: %v", err)
		}
		log.Info("Disconnecting MQTT client...")
		client.Disconnect(250) // 250ms Wartezeit
		log.Info("MQTT client disconnected")
	}
}

// IsConnected prüft, ob der Client verbunden ist
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil && c.client.IsConnected()
}

// onConnectHandler wird nach jeder (Wieder-)Verbindung aufgerufen
func (c *Client) onConnectHandler(client mqtt.Client) {
	log.Infof("Connected to MQTT broker at %s:%d", c.config.Broker, c.config.Port)

	token := client.Publish(c.StatusTopic(), 1, true, []byte(StatusOnline))
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		log.Errorf("Failed to publish online status: %v", token.Error())
	}
}

// connectionLostHandler wird aufgerufen, wenn die Verbindung verloren geht
func (c *Client) connectionLostHandler(client mqtt.Client, err error) {
	log.Errorf("MQTT connection lost: %v", err)
}

// encodePayload wandelt die Nutzlast in Bytes um, Objekte werden als JSON kodiert
func encodePayload(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return []byte(fmt.Sprintf("%v", p)), nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload to JSON: %w", err)
		}
		return data, nil
	}
}

// PublishMessage veröffentlicht eine Nachricht an ein MQTT-Topic
func (c *Client) PublishMessage(topic string, payload interface{}, retain bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	payloadBytes, err := encodePayload(payload)
	if err != nil {
		return err
	}

	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	token := client.Publish(topic, 1, retain, payloadBytes)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing message to topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}

	log.Debugf("Published message to topic: %s", topic)
	return nil
}

// PublishRetain veröffentlicht eine Nachricht mit dem Retain-Flag
func (c *Client) PublishRetain(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, true)
}

// Publish veröffentlicht eine Nachricht ohne Retain-Flag
func (c *Client) Publish(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, false)
}
