package world

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/geom"

	cache "github.com/go-pkgz/expirable-cache/v3"
)

// Templates is an in-memory template source.
type Templates map[string]*Template

func (t Templates) Template(id string) (*Template, error) {
	if tmpl, found := t[id]; found {
		return tmpl, nil
	}
	return nil, errors.Wrapf(os.ErrNotExist, "template %q", id)
}

// Add registers tmpl, replacing any template with the same id.
func (t Templates) Add(tmpl *Template) Templates {
	t[tmpl.ID] = tmpl
	return t
}

// TemplateCache fronts a slow source, typically one reading serialized
// structures from disk, with an expiring LRU.
type TemplateCache struct {
	source TemplateSource
	cache  cache.Cache[string, *Template]
}

func NewTemplateCache(source TemplateSource, ttl time.Duration, maxKeys int) *TemplateCache {
	return &TemplateCache{
		source: source,
		cache:  cache.NewCache[string, *Template]().WithTTL(ttl).WithMaxKeys(maxKeys).WithLRU(),
	}
}

func (c *TemplateCache) Template(id string) (*Template, error) {
	if tmpl, found := c.cache.Get(id); found {
		return tmpl, nil
	}
	tmpl, err := c.source.Template(id)
	if err != nil {
		return nil, worldtest.WithStack(err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	c.cache.Set(id, tmpl, 0)
	return tmpl, nil
}

// Invalidate forgets id so the next lookup reaches the source.
func (c *TemplateCache) Invalidate(id string) {
	c.cache.Invalidate(id)
}

func (c *TemplateCache) Len() int {
	return c.cache.Len()
}

// Validate checks that the template has a positive size and that its contents fit inside it.
func (t *Template) Validate() error {
	if t.Size.X < 1 || t.Size.Y < 1 || t.Size.Z < 1 {
		return errors.Errorf("template %q has non positive size %v", t.ID, t.Size)
	}
	bounds := t.bounds()
	for pos := range t.Blocks {
		if !bounds.Contains(pos) {
			return errors.Errorf("template %q has block at %v outside %v", t.ID, pos, bounds)
		}
	}
	for _, ent := range t.Entities {
		if !bounds.Contains(ent.Pos) {
			return errors.Errorf("template %q has %s at %v outside %v", t.ID, ent.Kind, ent.Pos, bounds)
		}
	}
	return nil
}

func (t *Template) bounds() geom.Box {
	return geom.SizedBox(geom.Pos{}, t.Size)
}
