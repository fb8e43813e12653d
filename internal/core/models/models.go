package models

import (
	"time"

	"gorm.io/datatypes"
)

// AttendanceRecord ist ein Eintrag der Anwesenheitsliste.
// Der zusammengesetzte Primärschlüssel (name, date) erzwingt einen Eintrag pro Person und Tag.
type AttendanceRecord struct {
	Name string `gorm:"primaryKey;not null" json:"name"`
	Date string `gorm:"primaryKey;not null;index" json:"date"` // YYYY-MM-DD
	Time string `gorm:"not null" json:"time"`                  // HH:MM:SS
}

// TableName legt den Tabellennamen fest
func (AttendanceRecord) TableName() string {
	return "attendance"
}

// RunSummary beschreibt einen abgeschlossenen Lauf der Bildverarbeitung
type RunSummary struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	Source     string         `gorm:"index" json:"source"` // Kamera oder Datei
	StartedAt  time.Time      `gorm:"index" json:"started_at"`
	EndedAt    time.Time      `json:"ended_at"`
	StopReason string         `json:"stop_reason"`
	Stats      datatypes.JSON `gorm:"type:json" json:"stats"` // Zähler des Laufs
	CreatedAt  time.Time      `json:"created_at"`
}
