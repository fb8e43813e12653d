package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"face-attendance-go/internal/core/enrollment"
	"face-attendance-go/internal/core/pipeline"
	"face-attendance-go/internal/integrations/opencv"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register [name]",
	Short: "Capture a reference image for a new identity",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		} else {
			m := newMenu(cmd.InOrStdin(), cmd.OutOrStdout(), application.translator, application.lang)
			name, _ = m.ask(application.tr("register.prompt", nil))
		}
		return application.register(cmd.Context(), cmd.OutOrStdout(), name)
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
}

// register zeigt die Kameravorschau und speichert das mit 'c' aufgenommene Bild als Referenzbild
func (a *app) register(ctx context.Context, out io.Writer, name string) error {
	name, err := enrollment.ValidateName(name)
	if errors.Is(err, enrollment.ErrEmptyName) {
		fmt.Fprintln(out, a.tr("register.empty", nil))
		return nil
	}
	if err != nil {
		return err
	}

	source, err := opencv.OpenCamera(a.cfg.Camera)
	if err != nil {
		return err
	}
	defer source.Close()

	window := opencv.NewWindowSink(a.cfg.Camera.WindowTitle)
	defer window.Close()

	fmt.Fprintln(out, a.tr("register.instructions", nil))

	img, err := window.CaptureStill(ctx, source)
	if errors.Is(err, pipeline.ErrStopRequested) || errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, a.tr("register.cancelled", nil))
		return nil
	}
	if err != nil {
		return err
	}

	path, err := enrollment.Register(a.loader.Dir(), name, img)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, a.tr("register.saved", map[string]interface{}{"Name": name, "Path": path}))
	return nil
}
