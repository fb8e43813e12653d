package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	language   string

	// application wird in PersistentPreRunE erstellt und von allen Befehlen geteilt
	application *app
)

var rootCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Face recognition attendance recorder",
	Long: `Records attendance by recognizing registered faces in a camera stream.
Without a subcommand an interactive menu is shown.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		application, err = newApp(configPath, language)
		if err != nil {
			return fmt.Errorf("startup failed: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newMenu(cmd.InOrStdin(), cmd.OutOrStdout(), application.translator, application.lang)
		return m.loop(cmd.Context(), menuActions{
			register: func(ctx context.Context) error {
				name, ok := m.ask(m.tr("register.prompt", nil))
				if !ok {
					return nil
				}
				return application.register(ctx, m.out, name)
			},
			run: func(ctx context.Context) error {
				return application.runAttendance(ctx, m.out, runOptions{window: application.cfg.Camera.Window})
			},
		})
	},
}

// Execute startet die Anwendung. Strg+C beendet den aktuellen Lauf und das Programm.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := executeCommand(ctx, rootCmd)
	stop()

	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// executeCommand führt cmd aus und schließt die Anwendung danach, auch wenn der Befehl
// mit einem Fehler endet. Cobra ruft PersistentPostRun in diesem Fall nicht auf.
func executeCommand(ctx context.Context, cmd *cobra.Command) error {
	defer closeApplication()
	return cmd.ExecuteContext(ctx)
}

func closeApplication() {
	if application != nil {
		application.Close()
		application = nil
	}
}

func init() {
	cobra.OnInitialize(initEnv)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&language, "lang", "", "language of the terminal output (en, de)")
}

func initEnv() {
	// .env ist optional
	_ = godotenv.Load()
}
