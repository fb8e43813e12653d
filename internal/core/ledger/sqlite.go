package ledger

import (
	"context"
	"fmt"

	"face-attendance-go/internal/core/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore speichert die Anwesenheitsliste in der Tabelle attendance
type GormStore struct {
	db *gorm.DB
}

// NewGormStore erstellt einen Speicher über einer bestehenden GORM-Verbindung
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Init legt die Tabelle an, falls sie fehlt
func (s *GormStore) Init(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.AttendanceRecord{}); err != nil {
		return fmt.Errorf("attendance migration failed: %w", err)
	}
	return nil
}

// InsertIfAbsent nutzt INSERT ... ON CONFLICT DO NOTHING auf dem Schlüssel (name, date)
func (s *GormStore) InsertIfAbsent(ctx context.Context, rec models.AttendanceRecord) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) List(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	query := s.db.WithContext(ctx).Order("date ASC, time ASC")
	if date != "" {
		query = query.Where("date = ?", date)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Close schließt nichts: die Verbindung gehört der Anwendung
func (s *GormStore) Close() error {
	return nil
}
