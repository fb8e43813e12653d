package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
)

var csvHeader = []string{"Name", "Date", "Time"}

// appendFile ist der Teil von *os.File, den CSVStore zum Anhängen braucht
type appendFile interface {
	io.WriteSeeker
	io.ReaderAt
	Sync() error
	Truncate(size int64) error
	Close() error
}

// CSVStore schreibt die Anwesenheitsliste als CSV-Datei mit Kopfzeile Name,Date,Time.
// Jeder Eintrag wird mit einem einzigen Write angehängt und anschließend synchronisiert.
// Schlägt das fehl, wird die Datei auf die vorherige Länge zurückgesetzt.
type CSVStore struct {
	path string

	mu      sync.Mutex
	file    appendFile
	records []models.AttendanceRecord
	index   map[string]struct{}
}

// NewCSVStore erstellt einen CSVStore. Die Datei wird erst bei Init geöffnet.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Init öffnet oder erstellt die Datei und liest vorhandene Einträge ein
func (s *CSVStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", s.path, err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open attendance file: %w", err)
	}

	records, err := readCSV(file)
	if err != nil {
		file.Close()
		return err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat attendance file: %w", err)
	}
	if info.Size() == 0 {
		if _, err := appendRow(file, csvHeader); err != nil {
			file.Close()
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	s.file = file
	s.records = records
	s.index = make(map[string]struct{}, len(records))
	for _, rec := range records {
		s.index[recordKey(rec.Name, rec.Date)] = struct{}{}
	}

	log.WithFields(log.Fields{
		"component": "ledger",
		"file":      s.path,
		"records":   len(records),
	}).Debug("CSV attendance store opened")
	return nil
}

// InsertIfAbsent hängt den Eintrag an, wenn für (Name, Date) noch keiner existiert
func (s *CSVStore) InsertIfAbsent(ctx context.Context, rec models.AttendanceRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return false, errors.New("csv store is not initialized")
	}

	key := recordKey(rec.Name, rec.Date)
	if _, exists := s.index[key]; exists {
		return false, nil
	}

	kept, err := appendRow(s.file, []string{rec.Name, rec.Date, rec.Time})
	if err != nil && !kept {
		return false, fmt.Errorf("failed to append record: %w", err)
	}
	if err != nil {
		// Die Zeile steht vollständig in der Datei und ließ sich nicht entfernen
		log.WithFields(log.Fields{
			"component": "ledger",
			"name":      rec.Name,
			"date":      rec.Date,
		}).WithError(err).Warn("Attendance row written but not synced")
	}

	s.index[key] = struct{}{}
	s.records = append(s.records, rec)
	return true, nil
}

func (s *CSVStore) List(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterRecords(s.records, date), nil
}

func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// readCSV liest alle Einträge ab Dateianfang. Die Kopfzeile wird übersprungen.
func readCSV(file *os.File) ([]models.AttendanceRecord, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek attendance file: %w", err)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var records []models.AttendanceRecord
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read attendance file: %w", err)
		}
		if line == 1 && len(row) > 0 && row[0] == csvHeader[0] {
			continue
		}
		if len(row) != 3 {
			log.Warnf("Skipping malformed attendance row %d: %v", line, row)
			continue
		}
		records = append(records, models.AttendanceRecord{Name: row[0], Date: row[1], Time: row[2]})
	}
	return records, nil
}

func encodeRow(row []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// appendRow hängt eine Zeile mit einem einzigen Write an und synchronisiert die Datei.
// Bei einem Fehler wird die Datei auf die Länge vor dem Schreiben gekürzt. kept meldet,
// dass die Zeile trotz err vollständig in der Datei steht, weil das Kürzen ebenfalls
// fehlschlug. Endet die Datei nicht mit einem Zeilenumbruch, beginnt die Zeile neu.
func appendRow(file appendFile, row []string) (kept bool, err error) {
	data, err := encodeRow(row)
	if err != nil {
		return false, err
	}

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return false, fmt.Errorf("failed to seek attendance file: %w", err)
	}
	if offset > 0 {
		last := make([]byte, 1)
		if _, err := file.ReadAt(last, offset-1); err != nil {
			return false, fmt.Errorf("failed to read attendance file: %w", err)
		}
		if last[0] != '\n' {
			data = append([]byte{'\n'}, data...)
		}
	}

	n, err := file.Write(data)
	if err == nil {
		if err = file.Sync(); err == nil {
			return true, nil
		}
	}

	if terr := file.Truncate(offset); terr != nil {
		return n == len(data), errors.Join(err, fmt.Errorf("failed to roll back attendance file: %w", terr))
	}
	return false, err
}
