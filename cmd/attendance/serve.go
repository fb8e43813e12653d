package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"face-attendance-go/internal/api"
	"face-attendance-go/internal/api/handlers"
	"face-attendance-go/internal/core/pipeline"
	"face-attendance-go/internal/server/sse"
	"face-attendance-go/internal/services/cleanup"
	"face-attendance-go/internal/services/preview"
	"face-attendance-go/internal/util/timezone"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var noPipeline bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline headless and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return application.serve(cmd.Context(), cmd.OutOrStdout(), !noPipeline)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noPipeline, "no-pipeline", false, "only serve the API, do not open the camera")
	rootCmd.AddCommand(serveCmd)
}

// serve startet API, SSE-Hub und Bereinigung und führt einen Lauf ohne Fenster aus.
// Der Server läuft weiter, bis ctx abgebrochen wird.
func (a *app) serve(ctx context.Context, out io.Writer, withPipeline bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := sse.NewHub()
	go hub.Run(ctx)

	go cleanup.NewCleanupService(a.appDB, a.cfg.Cleanup, a.cfg.Server.SnapshotDir).Start(ctx)

	previewService := preview.NewService(a.cfg.Server.PreviewFrames)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterOptions{
		API:           handlers.NewAPIHandler(a.ledger, a.loader, a.tracker, a.runs, hub, timezone.Today),
		Translator:    a.translator,
		SessionSecret: a.cfg.Server.SessionSecret,
		Preview:       previewService,
		Gatherer:      a.registry,
		SnapshotDir:   a.cfg.Server.SnapshotDir,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	pipelineDone := make(chan struct{})
	if withPipeline {
		go func() {
			defer close(pipelineDone)
			err := a.runAttendance(ctx, out, runOptions{
				sinks:    []pipeline.FrameSink{previewService},
				handlers: []pipeline.EventHandler{hub},
			})
			if err != nil {
				log.WithError(err).Error("Attendance run failed")
			}
		}()
	} else {
		close(pipelineDone)
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-serverErr:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warnf("Server shutdown failed: %v", shutdownErr)
	}
	log.Info("Server stopped")

	cancel()
	<-pipelineDone
	return err
}
