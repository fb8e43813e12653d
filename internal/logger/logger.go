package logger

import (
	"io"
	"os"
	"path/filepath"

	"face-attendance-go/config"

	log "github.com/sirupsen/logrus"
)

// Init initialisiert den globalen Logger. Der zurückgegebene Closer schließt die Logdatei.
func Init(cfg config.LogConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info': %v", cfg.Level, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	// Immer auf stdout, zusätzlich in eine Datei falls konfiguriert
	writers := []io.Writer{os.Stdout}
	var file *os.File

	if cfg.File != "" {
		logDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(logDir, 0750); err != nil {
			log.Errorf("Failed to create log directory '%s': %v", logDir, err)
		} else {
			file, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
			if err != nil {
				log.Errorf("Failed to open log file '%s': %v", cfg.File, err)
				file = nil
			} else {
				writers = append(writers, file)
			}
		}
	}

	log.SetOutput(io.MultiWriter(writers...))

	if file != nil {
		log.Infof("Logging additionally to file: %s", cfg.File)
		return file, nil
	}
	return nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
