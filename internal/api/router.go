// Package api baut den HTTP-Server für Status, Anwesenheitsliste und Vorschau
package api

import (
	"net/http"
	"time"

	"face-attendance-go/internal/api/handlers"
	"face-attendance-go/internal/api/middleware"
	"face-attendance-go/internal/i18n"
	"face-attendance-go/internal/metrics"
	"face-attendance-go/internal/services/preview"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// RouterOptions enthält alles, was der Router braucht. Preview, Gatherer und SnapshotDir sind optional.
type RouterOptions struct {
	API           *handlers.APIHandler
	Translator    *i18n.Translator
	SessionSecret string
	Preview       *preview.Service
	Gatherer      prometheus.Gatherer
	SnapshotDir   string
}

// NewRouter erstellt die gin-Engine mit allen Routen
func NewRouter(opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(cors.Default())

	secret := opts.SessionSecret
	if secret == "" {
		secret = "face-attendance"
	}
	router.Use(sessions.Sessions("attendance_session", cookie.NewStore([]byte(secret))))
	router.Use(middleware.I18n(opts.Translator))

	opts.API.RegisterRoutes(router.Group("/api"))

	if opts.Preview != nil {
		opts.Preview.RegisterRoutes(router)
	}
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(opts.Gatherer)))
	}
	if opts.SnapshotDir != "" {
		router.StaticFS("/snapshots", http.Dir(opts.SnapshotDir))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// requestLogger protokolliert Anfragen über logrus
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"component": "http",
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  time.Since(start),
		}).Debug("Request handled")
	}
}
