package narrative

import (
	"bytes"
	"embed"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"
	"github.com/icodeforyou/pvpc-go/hours"
)

//go:embed templates
var templatesDirEmbed embed.FS

// TemplateManager holds the message templates of every language. Each
// message is a template named "<lang>.<key>".
type TemplateManager struct {
	templates *template.Template
	mutex     sync.RWMutex
	logger    *slog.Logger
	watcher   *fsnotify.Watcher
}

var funcMap = template.FuncMap{
	// 24 hour clock, "15:00"
	"clock": func(dh hours.DateHour) string {
		return fmt.Sprintf("%d:00", dh.Hour)
	},
	// 12 hour clock, "3 PM"
	"ampm": func(dh hours.DateHour) string {
		h := int(dh.Hour)
		suffix := "AM"
		if h >= 12 {
			suffix = "PM"
		}
		if h%12 == 0 {
			return fmt.Sprintf("12 %s", suffix)
		}
		return fmt.Sprintf("%d %s", h%12, suffix)
	},
	// "three" in "en", "tres" in "es"
	"spell": spell,
}

var numberWords = map[string][]string{
	"en": {"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten", "eleven", "twelve"},
	// Feminine, they count hours.
	"es": {"cero", "una", "dos", "tres", "cuatro", "cinco", "seis", "siete", "ocho", "nueve", "diez", "once", "doce"},
}

func spell(lang string, n int) string {
	words := numberWords[lang]
	if n < 0 || n >= len(words) {
		return strconv.Itoa(n)
	}
	return words[n]
}

// NewTemplateManager loads the embedded templates, or the *.tmpl files of
// extDir when given. External templates are reloaded when they change.
func NewTemplateManager(logger *slog.Logger, extDir *string) (*TemplateManager, error) {
	tm := &TemplateManager{
		logger: logger,
	}

	if extDir != nil {
		if err := tm.loadExternalTemplates(*extDir); err != nil {
			return nil, err
		}
	} else if err := tm.loadInternalTemplates(); err != nil {
		return nil, err
	}

	return tm, nil
}

func (tm *TemplateManager) loadInternalTemplates() error {
	tm.logger.Debug("loading embedded templates...")
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesDirEmbed, "templates/*.tmpl")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	tm.templates = tmpl
	return nil
}

func (tm *TemplateManager) loadExternalTemplates(templatesDir string) error {
	reload := func() error {
		tm.logger.Debug("loading external templates...", slog.String("dir", templatesDir))
		tmpl, err := template.New("").Funcs(funcMap).ParseGlob(filepath.Join(templatesDir, "*.tmpl"))
		if err != nil {
			return fmt.Errorf("failed to parse templates: %w", err)
		}

		tm.mutex.Lock()
		tm.templates = tmpl
		tm.mutex.Unlock()
		return nil
	}

	if err := reload(); err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template watcher: %w", err)
	}
	if err := watcher.Add(templatesDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch templates: %w", err)
	}
	tm.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Ext(event.Name) != ".tmpl" {
					continue
				}
				// A broken edit keeps the previous templates in place.
				if err := reload(); err != nil {
					tm.logger.Error("error reloading templates", slog.Any("error", err))
				} else {
					tm.logger.Info("templates reloaded", slog.String("file", event.Name))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				tm.logger.Warn("error watching templates", slog.Any("error", err))
			}
		}
	}()

	return nil
}

// Has reports whether a message exists for lang.
func (tm *TemplateManager) Has(lang, key string) bool {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return tm.templates.Lookup(lang+"."+key) != nil
}

func (tm *TemplateManager) Execute(lang, key string, data any) (string, error) {
	name := lang + "." + key
	var buf bytes.Buffer

	tm.mutex.RLock()
	err := tm.templates.ExecuteTemplate(&buf, name, data)
	tm.mutex.RUnlock()

	if err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// Close stops watching external templates.
func (tm *TemplateManager) Close() error {
	if tm.watcher == nil {
		return nil
	}
	return tm.watcher.Close()
}
