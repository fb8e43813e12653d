package middleware

import (
	"face-attendance-go/internal/i18n"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	// LanguageKey ist der Schlüssel der Sprache in Session und gin-Kontext
	LanguageKey = "language"

	// TranslateKey ist der Schlüssel der Übersetzungsfunktion im gin-Kontext
	TranslateKey = "t"
)

// TranslateFunc übersetzt eine Nachrichten-ID in die Sprache der Anfrage
type TranslateFunc func(id string, data map[string]interface{}) string

// I18n erstellt eine Middleware für die Internationalisierung.
// Die Sprache kommt aus ?lang=, sonst aus der Session, sonst aus der Standardsprache.
func I18n(translator *i18n.Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		lang := c.Query("lang")

		if lang != "" && i18n.IsSupported(lang) {
			session.Set(LanguageKey, lang)
			if err := session.Save(); err != nil {
				log.Debugf("Failed to save language in session: %v", err)
			}
		} else if sessionLang, ok := session.Get(LanguageKey).(string); ok {
			lang = sessionLang
		}

		if !i18n.IsSupported(lang) {
			lang = translator.DefaultLanguage()
		}

		c.Set(LanguageKey, lang)
		c.Set(TranslateKey, TranslateFunc(func(id string, data map[string]interface{}) string {
			return translator.T(lang, id, data)
		}))

		c.Next()
	}
}

// T übersetzt id für die aktuelle Anfrage. Ohne Middleware wird die ID zurückgegeben.
func T(c *gin.Context, id string, data map[string]interface{}) string {
	if fn, ok := c.Get(TranslateKey); ok {
		if t, ok := fn.(TranslateFunc); ok {
			return t(id, data)
		}
	}
	return id
}
