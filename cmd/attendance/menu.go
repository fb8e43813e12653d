package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"face-attendance-go/internal/i18n"

	log "github.com/sirupsen/logrus"
)

type menuActions struct {
	register func(ctx context.Context) error
	run      func(ctx context.Context) error
}

// menu ist das interaktive Hauptmenü mit den drei Aktionen
type menu struct {
	scanner    *bufio.Scanner
	out        io.Writer
	translator *i18n.Translator
	lang       string
}

func newMenu(in io.Reader, out io.Writer, translator *i18n.Translator, lang string) *menu {
	return &menu{
		scanner:    bufio.NewScanner(in),
		out:        out,
		translator: translator,
		lang:       lang,
	}
}

func (m *menu) tr(id string, data map[string]interface{}) string {
	return m.translator.T(m.lang, id, data)
}

// ask gibt prompt aus und liest eine Zeile. false bei Ende der Eingabe.
func (m *menu) ask(prompt string) (string, bool) {
	fmt.Fprint(m.out, prompt)
	if !m.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.scanner.Text()), true
}

// loop zeigt das Menü, bis Beenden gewählt wird, die Eingabe endet oder ctx abgebrochen ist.
// Fehler einer Aktion werden gemeldet, das Menü läuft weiter.
func (m *menu) loop(ctx context.Context, actions menuActions) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, m.tr("menu.title", nil))
		fmt.Fprintln(m.out, m.tr("menu.register", nil))
		fmt.Fprintln(m.out, m.tr("menu.run", nil))
		fmt.Fprintln(m.out, m.tr("menu.exit", nil))

		choice, ok := m.ask(m.tr("menu.prompt", nil))
		if !ok {
			return nil
		}

		var err error
		switch choice {
		case "1":
			err = actions.register(ctx)
		case "2":
			err = actions.run(ctx)
		case "3":
			fmt.Fprintln(m.out, m.tr("menu.goodbye", nil))
			return nil
		default:
			fmt.Fprintln(m.out, m.tr("menu.invalid", nil))
			continue
		}

		if err != nil {
			log.WithError(err).Error("Action failed")
			fmt.Fprintln(m.out, err)
		}
	}
}
