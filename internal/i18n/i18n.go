// Package i18n lädt die eingebetteten Übersetzungen für CLI und API
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Supported sind die mitgelieferten Sprachen
var Supported = []string{"de", "en"}

// Translator übersetzt Nachrichten-IDs wie "menu.invalid"
type Translator struct {
	bundle          *goi18n.Bundle
	defaultLanguage string

	mu         sync.Mutex
	localizers map[string]*goi18n.Localizer
}

// NewTranslator lädt alle eingebetteten Sprachdateien
func NewTranslator(defaultLanguage string) (*Translator, error) {
	if !IsSupported(defaultLanguage) {
		defaultLanguage = "en"
	}

	tag, err := language.Parse(defaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", defaultLanguage, err)
	}

	bundle := goi18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range Supported {
		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+lang+".json"); err != nil {
			return nil, fmt.Errorf("failed to load locale %s: %w", lang, err)
		}
	}

	return &Translator{
		bundle:          bundle,
		defaultLanguage: defaultLanguage,
		localizers:      make(map[string]*goi18n.Localizer),
	}, nil
}

// IsSupported prüft, ob für lang Übersetzungen vorliegen
func IsSupported(lang string) bool {
	for _, l := range Supported {
		if l == lang {
			return true
		}
	}
	return false
}

// DefaultLanguage gibt die Standardsprache zurück
func (t *Translator) DefaultLanguage() string {
	return t.defaultLanguage
}

func (t *Translator) localizer(lang string) *goi18n.Localizer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.localizers[lang]; ok {
		return l
	}
	l := goi18n.NewLocalizer(t.bundle, lang, t.defaultLanguage)
	t.localizers[lang] = l
	return l
}

// T übersetzt id in lang. Fehlt die Nachricht, wird die ID zurückgegeben.
func (t *Translator) T(lang, id string, data map[string]interface{}) string {
	msg, err := t.localizer(lang).Localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		log.Debugf("Missing translation %s for %s: %v", id, lang, err)
		return id
	}
	return msg
}
