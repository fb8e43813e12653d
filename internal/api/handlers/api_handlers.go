package handlers

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"time"

	"face-attendance-go/internal/api/middleware"
	"face-attendance-go/internal/core/enrollment"
	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/core/pipeline"
	"face-attendance-go/internal/db/repository"
	"face-attendance-go/internal/server/sse"
	"face-attendance-go/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// AttendanceLister liest die Anwesenheitsliste
type AttendanceLister interface {
	List(ctx context.Context, date string) ([]models.AttendanceRecord, error)
}

// IdentityStore ist das Verzeichnis der Referenzbilder
type IdentityStore interface {
	Dir() string
	Names() ([]string, error)
}

// RunController gibt Auskunft über den aktuellen Lauf und kann ihn beenden
type RunController interface {
	Running() bool
	Stats() pipeline.RunStats
	Stop()
	Pool() *pipeline.WorkerPool
}

// APIHandler behandelt API-Anfragen für das System
type APIHandler struct {
	attendance AttendanceLister
	identities IdentityStore
	runner     RunController
	runs       repository.RunRepository
	hub        *sse.Hub
	today      func() string
	sampler    *utils.Sampler
}

// NewAPIHandler erstellt einen neuen API-Handler. runner, runs und hub dürfen nil sein.
func NewAPIHandler(attendance AttendanceLister, identities IdentityStore, runner RunController,
	runs repository.RunRepository, hub *sse.Hub, today func() string) *APIHandler {
	if today == nil {
		today = func() string { return time.Now().Format(dateLayout) }
	}
	return &APIHandler{
		attendance: attendance,
		identities: identities,
		runner:     runner,
		runs:       runs,
		hub:        hub,
		today:      today,
		sampler:    utils.NewSampler(500 * time.Millisecond),
	}
}

// RegisterRoutes registriert alle API-Routen
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/attendance", h.ListAttendance)

	router.GET("/identities", h.ListIdentities)
	router.POST("/identities", h.CreateIdentity)

	router.GET("/status", h.GetStatus)
	router.GET("/runs", h.ListRuns)
	router.GET("/runs/:id", h.GetRun)
	router.POST("/run/stop", h.StopRun)

	router.GET("/events", h.StreamEvents)
}

// ListAttendance gibt die Einträge eines Tages zurück, standardmäßig heute
func (h *APIHandler) ListAttendance(c *gin.Context) {
	date := c.DefaultQuery("date", h.today())
	if _, err := time.Parse(dateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.T(c, "api.invalid_date", nil)})
		return
	}

	records, err := h.attendance.List(c.Request.Context(), date)
	if err != nil {
		log.WithError(err).Error("Failed to list attendance")
		c.JSON(http.StatusInternalServerError, gin.H{"error": middleware.T(c, "api.storage_error", nil)})
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"date":    date,
		"count":   len(records),
		"records": records,
	})
}

// ListIdentities gibt die Namen aller registrierten Personen zurück
func (h *APIHandler) ListIdentities(c *gin.Context) {
	names, err := h.identities.Names()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      len(names),
		"identities": names,
	})
}

// CreateIdentity speichert ein hochgeladenes Referenzbild. Es wird beim nächsten Lauf geladen.
func (h *APIHandler) CreateIdentity(c *gin.Context) {
	name := c.PostForm("name")
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded or invalid form data"})
		return
	}
	defer file.Close()

	img, _, err := image.Decode(io.LimitReader(file, 20<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid image: %v", err)})
		return
	}

	path, err := enrollment.Register(h.identities.Dir(), name, img)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, enrollment.ErrEmptyName) || errors.Is(err, enrollment.ErrReservedName) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	name, _ = enrollment.ValidateName(name)
	c.JSON(http.StatusCreated, gin.H{
		"name": name,
		"file": path,
	})
}

// GetStatus gibt System- und Laufstatistiken zurück
func (h *APIHandler) GetStatus(c *gin.Context) {
	var pool *pipeline.WorkerPool
	status := gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
	}

	if h.runner != nil {
		pool = h.runner.Pool()
		status["running"] = h.runner.Running()
		status["run"] = h.runner.Stats()
	}
	status["system"] = h.sampler.Sample(pool)

	c.JSON(http.StatusOK, status)
}

// ListRuns gibt die letzten Läufe zurück
func (h *APIHandler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []models.RunSummary{}})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun gibt einen einzelnen Lauf zurück
func (h *APIHandler) GetRun(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": repository.ErrNotFound.Error()})
		return
	}

	run, err := h.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// StopRun beendet den laufenden Lauf
func (h *APIHandler) StopRun(c *gin.Context) {
	if h.runner == nil || !h.runner.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": middleware.T(c, "api.not_running", nil)})
		return
	}
	h.runner.Stop()
	c.JSON(http.StatusAccepted, gin.H{"message": "stop requested"})
}

// StreamEvents sendet neue Anwesenheitseinträge als Server-Sent Events
func (h *APIHandler) StreamEvents(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream disabled"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	client := make(sse.Client, 10) // Puffer für 10 Nachrichten
	if !h.hub.Register(client) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream closed"})
		return
	}
	defer h.hub.Unregister(client)

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false // Kanal geschlossen, Stream beenden
			}
			c.SSEvent("attendance", string(msg))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
