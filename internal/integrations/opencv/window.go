package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"face-attendance-go/internal/core/pipeline"

	gocv "gocv.io/x/gocv"
)

const (
	keyQuit    = 'q'
	keyCapture = 'c'
)

// WindowSink zeigt annotierte Bilder in einem Fenster. Mit 'q' wird der Lauf beendet.
type WindowSink struct {
	window *gocv.Window
}

// NewWindowSink öffnet ein Fenster mit dem angegebenen Titel
func NewWindowSink(title string) *WindowSink {
	return &WindowSink{window: gocv.NewWindow(title)}
}

// Show zeigt ein Bild an und gibt ErrStopRequested zurück, wenn 'q' gedrückt wurde
func (w *WindowSink) Show(ctx context.Context, frame *pipeline.AnnotatedFrame) error {
	key, err := w.show(frame.Image, "")
	if err != nil {
		return err
	}
	if key == keyQuit {
		return pipeline.ErrStopRequested
	}
	return nil
}

// CaptureStill zeigt die Vorschau von source, bis 'c' ein Bild übernimmt oder 'q' abbricht
func (w *WindowSink) CaptureStill(ctx context.Context, source pipeline.FrameSource) (image.Image, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := source.Next(ctx)
		if errors.Is(err, pipeline.ErrFrameDropped) {
			continue
		}
		if err != nil {
			return nil, err
		}

		key, err := w.show(img, "c: capture  q: cancel")
		if err != nil {
			return nil, err
		}
		switch key {
		case keyCapture:
			return img, nil
		case keyQuit:
			return nil, pipeline.ErrStopRequested
		}
	}
}

func (w *WindowSink) show(img image.Image, hint string) (int, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return -1, fmt.Errorf("fehler beim Konvertieren des Bildes: %w", err)
	}
	defer mat.Close()

	if hint != "" {
		gocv.PutText(&mat, hint, image.Pt(10, 25), gocv.FontHersheyPlain, 1.4, color.RGBA{G: 255, A: 255}, 2)
	}

	w.window.IMShow(mat)
	return w.window.WaitKey(1), nil
}

// Close schließt das Fenster
func (w *WindowSink) Close() error {
	return w.window.Close()
}
