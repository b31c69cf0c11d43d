package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"sync"
	"time"
)

// Source locates a template file. ID must be unique across file systems.
type Source struct {
	ID   string
	FS   fs.FS
	Path string
}

// Engine renders document templates and caches the parsed result per source.
type Engine struct {
	funcs template.FuncMap

	mu     sync.RWMutex
	parsed map[string]*template.Template
}

// NewEngine builds an engine with the document helper functions installed.
func NewEngine() *Engine {
	return &Engine{funcs: Funcs(), parsed: map[string]*template.Template{}}
}

// Render executes the template at src with data.
func (e *Engine) Render(src Source, data any) (string, error) {
	if e == nil {
		return "", fmt.Errorf("template engine not initialised")
	}
	tpl, err := e.lookup(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", src.Path, err)
	}
	return buf.String(), nil
}

// Reset drops parsed templates so edited files are picked up.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.parsed = map[string]*template.Template{}
	e.mu.Unlock()
}

func (e *Engine) lookup(src Source) (*template.Template, error) {
	e.mu.RLock()
	tpl, ok := e.parsed[src.ID]
	e.mu.RUnlock()
	if ok {
		return tpl, nil
	}
	if src.FS == nil {
		return nil, fmt.Errorf("template %s has no file system", src.Path)
	}
	raw, err := fs.ReadFile(src.FS, src.Path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", src.Path, err)
	}
	tpl, err = template.New(src.Path).Funcs(e.funcs).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", src.Path, err)
	}
	e.mu.Lock()
	e.parsed[src.ID] = tpl
	e.mu.Unlock()
	return tpl, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006")
}

func getItem(m map[string]string, key string) string {
	return m[key]
}

func splitByPeriod(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ".") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
