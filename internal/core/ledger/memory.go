package ledger

import (
	"context"
	"sort"
	"sync"

	"face-attendance-go/internal/core/models"
)

// MemoryStore hält die Anwesenheitsliste im Speicher
type MemoryStore struct {
	mu      sync.Mutex
	records []models.AttendanceRecord
	index   map[string]struct{}
}

// NewMemoryStore erstellt einen leeren MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]struct{})}
}

func (s *MemoryStore) Init(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) InsertIfAbsent(ctx context.Context, rec models.AttendanceRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(rec.Name, rec.Date)
	if _, exists := s.index[key]; exists {
		return false, nil
	}
	s.index[key] = struct{}{}
	s.records = append(s.records, rec)
	return true, nil
}

func (s *MemoryStore) List(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterRecords(s.records, date), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func recordKey(name, date string) string {
	return name + "\x00" + date
}

// filterRecords gibt die Einträge eines Tages sortiert nach Datum und Uhrzeit zurück
func filterRecords(records []models.AttendanceRecord, date string) []models.AttendanceRecord {
	result := make([]models.AttendanceRecord, 0, len(records))
	for _, rec := range records {
		if date == "" || rec.Date == date {
			result = append(result, rec)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Time < result[j].Time
	})
	return result
}
