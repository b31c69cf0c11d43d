// Package templates discovers invoice and receipt document templates by file
// naming convention and resolves template choices to files.
package templates

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sage-invoice/sage/internal/platform/httpx"
)

// ErrTemplateNotFound is returned when a choice has no matching template.
var ErrTemplateNotFound = fmt.Errorf("template %w", httpx.ErrNotFound)

// Config holds the naming convention.
type Config struct {
	InvoicePrefix string
	ReceiptPrefix string
	Ext           string
}

// Source is a named file system scanned for templates. Files are read from
// the root of FS.
type Source struct {
	Name string
	FS   fs.FS
}

// Template is a resolved template file.
type Template struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Source  string `json:"source"`
	Receipt bool   `json:"receipt"`
	FS      fs.FS  `json:"-"`
}

// ID identifies the file across sources.
func (t Template) ID() string {
	return t.Source + ":" + t.Path
}

// Choice is a selectable template option.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Catalog maps template keys to files for each kind.
type Catalog struct {
	Invoices map[string]Template
	Receipts map[string]Template
}

// Discovery keeps the catalog built from its sources. Later sources override
// earlier ones on key collisions.
type Discovery struct {
	cfg     Config
	sources []Source
	logger  *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	catalog *Catalog
}

// NewDiscovery constructs a discovery over sources. Nothing is scanned until
// the first Refresh or Lookup.
func NewDiscovery(cfg Config, logger *slog.Logger, sources ...Source) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Ext != "" && !strings.HasPrefix(cfg.Ext, ".") {
		cfg.Ext = "." + cfg.Ext
	}
	return &Discovery{cfg: cfg, sources: sources, logger: logger.With(slog.String("component", "templates"))}
}

// Refresh rescans every source. Concurrent callers share one scan.
func (d *Discovery) Refresh(ctx context.Context) (*Catalog, error) {
	v, err, _ := d.group.Do("refresh", func() (any, error) {
		catalog := &Catalog{Invoices: map[string]Template{}, Receipts: map[string]Template{}}
		for _, src := range d.sources {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := d.scan(src, catalog); err != nil {
				return nil, err
			}
		}
		d.mu.Lock()
		d.catalog = catalog
		d.mu.Unlock()
		d.logger.Debug("template catalog refreshed",
			slog.Int("invoices", len(catalog.Invoices)),
			slog.Int("receipts", len(catalog.Receipts)),
		)
		return catalog, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

func (d *Discovery) scan(src Source, catalog *Catalog) error {
	if src.FS == nil {
		return nil
	}
	entries, err := fs.ReadDir(src.FS, ".")
	if errors.Is(err, fs.ErrNotExist) {
		d.logger.Debug("template source missing", slog.String("source", src.Name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan templates %s: %w", src.Name, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, d.cfg.Ext) {
			continue
		}
		for _, kind := range []struct {
			prefix  string
			receipt bool
			into    map[string]Template
		}{
			{d.cfg.InvoicePrefix, false, catalog.Invoices},
			{d.cfg.ReceiptPrefix, true, catalog.Receipts},
		} {
			if kind.prefix == "" || !strings.HasPrefix(name, kind.prefix) {
				continue
			}
			key := DeriveKey(name, kind.prefix, d.cfg.Ext)
			if key == "" {
				d.logger.Warn("template without key ignored", slog.String("file", name))
				continue
			}
			kind.into[key] = Template{
				Key:     key,
				Name:    name,
				Path:    name,
				Source:  src.Name,
				Receipt: kind.receipt,
				FS:      src.FS,
			}
		}
	}
	return nil
}

// DeriveKey extracts the template key from a file name. The prefix and the
// extension are stripped when the prefix is at least as long as the
// extension; otherwise the key is the digits of the name.
func DeriveKey(name, prefix, ext string) string {
	base := path.Base(name)
	if len(prefix) >= len(ext) {
		key := strings.TrimSuffix(strings.TrimPrefix(base, prefix), ext)
		return strings.Trim(key, "_- ")
	}
	return digits(strings.TrimSuffix(base, ext))
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (d *Discovery) current(ctx context.Context) (*Catalog, error) {
	d.mu.RLock()
	catalog := d.catalog
	d.mu.RUnlock()
	if catalog != nil {
		return catalog, nil
	}
	return d.Refresh(ctx)
}

// Lookup resolves a template choice. The exact key is tried first, then the
// digits of the choice.
func (d *Discovery) Lookup(ctx context.Context, choice string, receipt bool) (Template, error) {
	catalog, err := d.current(ctx)
	if err != nil {
		return Template{}, err
	}
	set := catalog.Invoices
	if receipt {
		set = catalog.Receipts
	}
	choice = strings.TrimSpace(choice)
	if tpl, ok := set[choice]; ok && choice != "" {
		return tpl, nil
	}
	if n := digits(choice); n != "" {
		if tpl, ok := set[n]; ok {
			return tpl, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %q (receipt=%t)", ErrTemplateNotFound, choice, receipt)
}

// Choices lists selectable templates for a kind ordered by key. An empty
// catalog yields a single placeholder choice.
func (d *Discovery) Choices(ctx context.Context, receipt bool) ([]Choice, error) {
	catalog, err := d.current(ctx)
	if err != nil {
		return nil, err
	}
	set := catalog.Invoices
	if receipt {
		set = catalog.Receipts
	}
	if len(set) == 0 {
		return []Choice{{Value: "", Label: "No Templates Available"}}, nil
	}
	title := cases.Title(language.English)
	choices := make([]Choice, 0, len(set))
	for key, tpl := range set {
		label := strings.ReplaceAll(strings.TrimSuffix(tpl.Name, d.cfg.Ext), "_", " ")
		choices = append(choices, Choice{Value: key, Label: title.String(label) + " Template"})
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].Value < choices[j].Value })
	return choices, nil
}
