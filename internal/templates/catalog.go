// Package templates maps (stage, document key) pairs to markdown templates
// and declares which document kinds are markdown-rendered at all. JSON-only
// kinds never trigger rendering.
package templates

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/docweaver/internal/render"
)

// KindSpec declares one document kind. Markdown kinds name a template file
// under the catalog directory; JSON-only kinds leave File empty and set
// Markdown false.
type KindSpec struct {
	DocumentKey string `yaml:"document_key"`
	Stage       string `yaml:"stage,omitempty"` // empty = any stage
	Markdown    bool   `yaml:"markdown"`
	File        string `yaml:"file,omitempty"`
}

// Catalog holds parsed templates and kind declarations. It is safe for
// concurrent lookup while a reload is in flight.
type Catalog struct {
	dir    string
	specs  []KindSpec
	logger *slog.Logger

	mu        sync.RWMutex
	templates map[string]*render.Template // lookup key -> parsed template
	markdown  map[string]bool             // document key -> rendered as markdown
}

// NewCatalog creates a catalog over a template directory. Load must be
// called before lookups.
func NewCatalog(dir string, specs []KindSpec, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		dir:       dir,
		specs:     specs,
		logger:    logger,
		templates: make(map[string]*render.Template),
		markdown:  make(map[string]bool),
	}
}

func lookupKey(stage, documentKey string) string {
	stage = strings.ToLower(strings.TrimSpace(stage))
	if stage == "" {
		return documentKey
	}
	return stage + "/" + documentKey
}

// Load parses every declared template file. A parse failure fails the whole
// load so a broken template never silently serves stale content.
func (c *Catalog) Load() error {
	templates := make(map[string]*render.Template, len(c.specs))
	markdown := make(map[string]bool, len(c.specs))

	for _, spec := range c.specs {
		if spec.DocumentKey == "" {
			return fmt.Errorf("kind declaration has no document key")
		}
		markdown[spec.DocumentKey] = markdown[spec.DocumentKey] || spec.Markdown
		if !spec.Markdown {
			continue
		}
		if spec.File == "" {
			return fmt.Errorf("markdown kind %q has no template file", spec.DocumentKey)
		}

		raw, err := os.ReadFile(filepath.Join(c.dir, spec.File))
		if err != nil {
			return fmt.Errorf("reading template %s: %w", spec.File, err)
		}
		tpl, err := render.ParseTemplate(string(raw))
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", spec.File, err)
		}
		templates[lookupKey(spec.Stage, spec.DocumentKey)] = tpl
	}

	c.mu.Lock()
	c.templates = templates
	c.markdown = markdown
	c.mu.Unlock()

	c.logger.Info("template catalog loaded",
		slog.String("dir", c.dir),
		slog.Int("templates", len(templates)))
	return nil
}

// Lookup returns the template for a stage and document key. A stage-specific
// declaration wins over a stage-agnostic one.
func (c *Catalog) Lookup(stage, documentKey string) (*render.Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if tpl, ok := c.templates[lookupKey(stage, documentKey)]; ok {
		return tpl, true
	}
	tpl, ok := c.templates[lookupKey("", documentKey)]
	return tpl, ok
}

// IsMarkdownKind reports whether a document kind renders to markdown.
// Undeclared kinds do not.
func (c *Catalog) IsMarkdownKind(documentKey string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.markdown[documentKey]
}
