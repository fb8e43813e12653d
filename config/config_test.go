package config

import (
	"os"
	"path/filepath"
	"testing"
)

// isolate verschiebt alle Verzeichnisse in ein temporäres Verzeichnis
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ATTENDANCE_SERVER_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("ATTENDANCE_SERVER_SNAPSHOT_DIR", filepath.Join(dir, "data", "snapshots"))
	t.Setenv("ATTENDANCE_LOG_FILE", filepath.Join(dir, "data", "logs", "attendance.log"))
	t.Setenv("ATTENDANCE_DB_FILE", filepath.Join(dir, "data", "attendance.db"))
	t.Setenv("ATTENDANCE_ENROLLMENT_DIR", filepath.Join(dir, "known_faces"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Recognition.Tolerance != 0.5 {
		t.Errorf("tolerance = %v, want 0.5", cfg.Recognition.Tolerance)
	}
	if cfg.Pipeline.Scale != 0.25 {
		t.Errorf("scale = %v, want 0.25", cfg.Pipeline.Scale)
	}
	if cfg.Pipeline.StoreRetries != 1 {
		t.Errorf("store_retries = %d, want 1", cfg.Pipeline.StoreRetries)
	}
	if cfg.DB.Driver != DriverSQLite {
		t.Errorf("driver = %q, want %q", cfg.DB.Driver, DriverSQLite)
	}
	if len(cfg.Enrollment.Extensions) == 0 {
		t.Error("expected default enrollment extensions")
	}

	if _, err := os.Stat(filepath.Join(dir, "known_faces")); err != nil {
		t.Errorf("enrollment dir was not created: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("ATTENDANCE_RECOGNITION_TOLERANCE", "0.6")
	t.Setenv("ATTENDANCE_DB_DRIVER", "csv")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Recognition.Tolerance != 0.6 {
		t.Errorf("tolerance = %v, want 0.6", cfg.Recognition.Tolerance)
	}
	if cfg.DB.Driver != DriverCSV {
		t.Errorf("driver = %q, want csv", cfg.DB.Driver)
	}
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	content := []byte("pipeline:\n  scale: 0.5\n  workers: 4\nenrollment:\n  extensions: [\"JPG\", \"png\"]\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.Scale != 0.5 || cfg.Pipeline.Workers != 4 {
		t.Errorf("pipeline = %+v, want scale 0.5 and 4 workers", cfg.Pipeline)
	}
	want := []string{".jpg", ".png"}
	if len(cfg.Enrollment.Extensions) != len(want) {
		t.Fatalf("extensions = %v, want %v", cfg.Enrollment.Extensions, want)
	}
	for i := range want {
		if cfg.Enrollment.Extensions[i] != want[i] {
			t.Errorf("extension[%d] = %q, want %q", i, cfg.Enrollment.Extensions[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DB:          DBConfig{Driver: DriverSQLite},
			Enrollment:  EnrollmentConfig{Dir: "known_faces"},
			Recognition: RecognitionConfig{Tolerance: 0.5},
			Pipeline:    PipelineConfig{Scale: 0.25, Workers: 1, StoreRetries: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero tolerance", func(c *Config) { c.Recognition.Tolerance = 0 }, true},
		{"scale above one", func(c *Config) { c.Pipeline.Scale = 1.5 }, true},
		{"scale zero", func(c *Config) { c.Pipeline.Scale = 0 }, true},
		{"two retries", func(c *Config) { c.Pipeline.StoreRetries = 2 }, true},
		{"postgres without dsn", func(c *Config) { c.DB.Driver = DriverPostgres }, true},
		{"postgres with dsn", func(c *Config) { c.DB.Driver = DriverPostgres; c.DB.DSN = "postgres://x" }, false},
		{"unknown driver", func(c *Config) { c.DB.Driver = "mongo" }, true},
		{"empty enrollment dir", func(c *Config) { c.Enrollment.Dir = " " }, true},
		{"zero workers clamped", func(c *Config) { c.Pipeline.Workers = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.Pipeline.Workers < 1 {
				t.Errorf("workers = %d, want >= 1", c.Pipeline.Workers)
			}
		})
	}
}
