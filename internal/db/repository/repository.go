package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/core/pipeline"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound wird zurückgegeben, wenn ein Lauf nicht existiert
var ErrNotFound = errors.New("run not found")

// RunRepository speichert die Zusammenfassungen der Pipeline-Läufe
type RunRepository interface {
	SaveRun(ctx context.Context, source string, stats pipeline.RunStats) (*models.RunSummary, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
	GetRun(ctx context.Context, id string) (*models.RunSummary, error)
}

// SQLiteRepository implementiert RunRepository mit GORM
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository erstellt eine neue SQLite-Repository-Instanz
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveRun legt eine neue Zusammenfassung mit zufälliger ID an
func (r *SQLiteRepository) SaveRun(ctx context.Context, source string, stats pipeline.RunStats) (*models.RunSummary, error) {
	data, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run stats: %w", err)
	}

	run := &models.RunSummary{
		ID:         uuid.New().String(),
		Source:     source,
		StartedAt:  stats.StartedAt,
		EndedAt:    stats.EndedAt,
		StopReason: stats.StopReason,
		Stats:      datatypes.JSON(data),
		CreatedAt:  time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to save run summary: %w", err)
	}
	return run, nil
}

// ListRuns gibt die letzten Läufe zurück, neueste zuerst
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.RunSummary
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun holt einen Lauf anhand seiner ID
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*models.RunSummary, error) {
	var run models.RunSummary
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}
