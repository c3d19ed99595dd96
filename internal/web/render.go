package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"superlists/internal/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// Page templates; each is parsed together with base.html.
const (
	pageHome     = "home.html"
	pageList     = "list.html"
	pageNotFound = "not_found.html"
)

var pages = []string{pageHome, pageList, pageNotFound}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Renderer executes page templates, either embedded or loaded from a directory.
type Renderer struct {
	mu       sync.RWMutex
	fsys     fs.FS
	dir      string
	pages    map[string]*template.Template
	debounce time.Duration
}

// NewRenderer parses the templates. An empty dir selects the embedded set.
func NewRenderer(dir string) (*Renderer, error) {
	r := &Renderer{dir: dir, debounce: 200 * time.Millisecond}
	if dir == "" {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			return nil, err
		}
		r.fsys = sub
	} else {
		r.fsys = os.DirFS(dir)
	}
	if err := r.Load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the template directory, or "" for embedded templates.
func (r *Renderer) Dir() string {
	return r.dir
}

// Load (re)parses every page. On error the previous set stays active.
func (r *Renderer) Load() error {
	parsed := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(funcs).ParseFS(r.fsys, "base.html", page)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", page, err)
		}
		parsed[page] = t
	}

	r.mu.Lock()
	r.pages = parsed
	r.mu.Unlock()
	return nil
}

// Render writes page with the given status. The template is executed into a
// buffer first so a failing template never produces a half-written 200.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) error {
	r.mu.RLock()
	t, ok := r.pages[page]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("execute template %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	// The status is already sent; a failed write means the client went away.
	_, _ = buf.WriteTo(w)
	return nil
}

// Watch reloads the templates whenever a file in the template directory changes.
// It blocks until ctx is cancelled. Embedded templates are never watched.
func (r *Renderer) Watch(ctx context.Context) error {
	if r.dir == "" {
		<-ctx.Done()
		return nil
	}
	log := logging.Get(logging.CategoryTemplates)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}
	log.Info("watching templates", zap.String("dir", r.dir))

	// Editors emit bursts of events per save; reload once the burst settles.
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".html" {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := r.Load(); err != nil {
				log.Warn("template reload failed, keeping previous set", zap.Error(err))
				continue
			}
			log.Info("templates reloaded")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("template watcher error", zap.Error(err))
		}
	}
}
