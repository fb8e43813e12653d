package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Ledger-Backends
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverCSV      = "csv"
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Enrollment  EnrollmentConfig  `mapstructure:"enrollment"`
	Camera      CameraConfig      `mapstructure:"camera"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	InsightFace InsightFaceConfig `mapstructure:"insightface"`
	OpenCV      OpenCVConfig      `mapstructure:"opencv"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Cleanup     CleanupConfig     `mapstructure:"cleanup"`
	I18n        I18nConfig        `mapstructure:"i18n"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	DataDir       string `mapstructure:"data_dir"`
	SnapshotDir   string `mapstructure:"snapshot_dir"`
	Timezone      string `mapstructure:"timezone"`
	SessionSecret string `mapstructure:"session_secret"`
	PreviewFrames int    `mapstructure:"preview_frames"` // Anzahl der vorgehaltenen Vorschaubilder
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig enthält die Einstellungen für Anwendungsdatenbank und Anwesenheitsspeicher
type DBConfig struct {
	Driver  string `mapstructure:"driver"`   // Backend für die Anwesenheitsliste: sqlite, postgres oder csv
	File    string `mapstructure:"file"`     // SQLite-Datei (auch für Laufstatistiken)
	DSN     string `mapstructure:"dsn"`      // für PostgreSQL
	CSVFile string `mapstructure:"csv_file"` // für das CSV-Backend
}

// EnrollmentConfig beschreibt das Verzeichnis mit den Referenzbildern
type EnrollmentConfig struct {
	Dir          string   `mapstructure:"dir"`
	Extensions   []string `mapstructure:"extensions"`
	ShowProgress bool     `mapstructure:"show_progress"`
}

// CameraConfig enthält die Einstellungen der Bildquelle
type CameraConfig struct {
	Device      string `mapstructure:"device"` // Kameraindex, Datei oder Stream-URL
	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`
	Window      bool   `mapstructure:"window"`
	WindowTitle string `mapstructure:"window_title"`
}

// RecognitionConfig steuert Detektor, Encoder und Matcher
type RecognitionConfig struct {
	Detector  string  `mapstructure:"detector"` // "haar" oder "dlib"
	Encoder   string  `mapstructure:"encoder"`  // "dlib" oder "insightface"
	ModelDir  string  `mapstructure:"model_dir"`
	Tolerance float64 `mapstructure:"tolerance"`
}

// InsightFaceConfig enthält InsightFace-Einstellungen
type InsightFaceConfig struct {
	URL     string `mapstructure:"url"`
	Timeout int    `mapstructure:"timeout"` // Sekunden
}

// OpenCVConfig enthält Einstellungen für den Haar-Kaskaden-Detektor
type OpenCVConfig struct {
	CascadeFile   string  `mapstructure:"cascade_file"`
	ScaleFactor   float64 `mapstructure:"scale_factor"`  // Skalierungsfaktor für Multi-Scale-Detektion
	MinNeighbors  int     `mapstructure:"min_neighbors"` // Minimum benachbarter Erkennungen für Bestätigung
	MinSizeWidth  int     `mapstructure:"min_size_width"`
	MinSizeHeight int     `mapstructure:"min_size_height"`
}

// PipelineConfig enthält die Einstellungen der Bildverarbeitung
type PipelineConfig struct {
	Scale        float64 `mapstructure:"scale"`         // Verkleinerungsfaktor, 1 = keine Verkleinerung
	Workers      int     `mapstructure:"workers"`       // >1 aktiviert den Worker-Pool pro Gesicht
	StoreRetries int     `mapstructure:"store_retries"` // höchstens ein Wiederholungsversuch
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	Broker        string              `mapstructure:"broker"`
	Port          int                 `mapstructure:"port"`
	Username      string              `mapstructure:"username"`
	Password      string              `mapstructure:"password"`
	ClientID      string              `mapstructure:"client_id"`
	TopicPrefix   string              `mapstructure:"topic_prefix"`
	HomeAssistant HomeAssistantConfig `mapstructure:"homeassistant"`
}

// HomeAssistantConfig enthält die Konfiguration für die Home Assistant Integration
type HomeAssistantConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// CleanupConfig enthält Bereinigungseinstellungen für Snapshots
type CleanupConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
	IntervalHours int `mapstructure:"interval_hours"`
}

// I18nConfig enthält die Spracheinstellungen
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Standardwerte festlegen
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.AutomaticEnv()
	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	// Server-Standardwerte
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "data")
	v.SetDefault("server.snapshot_dir", "data/snapshots")
	v.SetDefault("server.timezone", "")
	v.SetDefault("server.session_secret", "change-me")
	v.SetDefault("server.preview_frames", 30)

	// Log-Standardwerte
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "data/logs/attendance.log")

	// DB-Standardwerte
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.file", "data/attendance.db")
	v.SetDefault("db.csv_file", "data/attendance.csv")

	// Enrollment-Standardwerte
	v.SetDefault("enrollment.dir", "known_faces")
	v.SetDefault("enrollment.extensions", []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"})
	v.SetDefault("enrollment.show_progress", true)

	// Kamera-Standardwerte
	v.SetDefault("camera.device", "0")
	v.SetDefault("camera.window", true)
	v.SetDefault("camera.window_title", "Face Attendance")

	// Erkennung
	v.SetDefault("recognition.detector", "dlib")
	v.SetDefault("recognition.encoder", "dlib")
	v.SetDefault("recognition.model_dir", "models")
	v.SetDefault("recognition.tolerance", 0.5)

	v.SetDefault("insightface.url", "http://localhost:18081")
	v.SetDefault("insightface.timeout", 10)

	// OpenCV-Standardwerte
	v.SetDefault("opencv.cascade_file", "models/haarcascade_frontalface_default.xml")
	v.SetDefault("opencv.scale_factor", 1.1)
	v.SetDefault("opencv.min_neighbors", 5)
	v.SetDefault("opencv.min_size_width", 20)
	v.SetDefault("opencv.min_size_height", 20)

	// Pipeline-Standardwerte
	v.SetDefault("pipeline.scale", 0.25)
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("pipeline.store_retries", 1)

	// MQTT-Standardwerte
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "face-attendance")
	v.SetDefault("mqtt.topic_prefix", "attendance")
	v.SetDefault("mqtt.homeassistant.enabled", false)
	v.SetDefault("mqtt.homeassistant.discovery_prefix", "homeassistant")

	// Cleanup-Standardwerte
	v.SetDefault("cleanup.retention_days", 30)
	v.SetDefault("cleanup.interval_hours", 24)

	v.SetDefault("i18n.default_language", "en")
}

// Validate prüft Wertebereiche, die sich nicht über Standardwerte absichern lassen
func (c *Config) Validate() error {
	if c.Recognition.Tolerance <= 0 {
		return fmt.Errorf("recognition.tolerance must be positive, got %v", c.Recognition.Tolerance)
	}
	if c.Pipeline.Scale <= 0 || c.Pipeline.Scale > 1 {
		return fmt.Errorf("pipeline.scale must be in (0, 1], got %v", c.Pipeline.Scale)
	}
	if c.Pipeline.StoreRetries < 0 || c.Pipeline.StoreRetries > 1 {
		return fmt.Errorf("pipeline.store_retries must be 0 or 1, got %d", c.Pipeline.StoreRetries)
	}
	if c.Pipeline.Workers < 1 {
		c.Pipeline.Workers = 1
	}

	switch c.DB.Driver {
	case DriverSQLite, DriverCSV:
	case DriverPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown db.driver %q", c.DB.Driver)
	}

	if strings.TrimSpace(c.Enrollment.Dir) == "" {
		return fmt.Errorf("enrollment.dir must not be empty")
	}
	for i, ext := range c.Enrollment.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Enrollment.Extensions[i] = ext
	}
	return nil
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	dirs := []string{cfg.Server.DataDir, cfg.Server.SnapshotDir, cfg.Enrollment.Dir}
	if cfg.Log.File != "" {
		dirs = append(dirs, filepath.Dir(cfg.Log.File))
	}
	if cfg.DB.File != "" {
		dirs = append(dirs, filepath.Dir(cfg.DB.File))
	}
	if cfg.DB.Driver == DriverCSV && cfg.DB.CSVFile != "" {
		dirs = append(dirs, filepath.Dir(cfg.DB.CSVFile))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
