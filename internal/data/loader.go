package data

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/skirmish/internal/game/ability"
	"github.com/udisondev/skirmish/internal/game/passive"
	"github.com/udisondev/skirmish/internal/game/story"
	"github.com/udisondev/skirmish/internal/model"
)

// Layout of a content directory.
const (
	charactersGlob = "characters/*.yaml"
	abilitiesGlob  = "abilities/*.yaml"
	passivesGlob   = "passives/*.yaml"
	talentsFile    = "talents.yaml"
	campaignsGlob  = "campaigns/*.yaml"
)

// LoadDir loads content from a directory on disk.
func LoadDir(ctx context.Context, dir string) (*Catalog, error) {
	return Load(ctx, os.DirFS(dir))
}

// Load reads every content kind in parallel, then validates references.
// talents.yaml and passives/ are optional.
func Load(ctx context.Context, fsys fs.FS) (*Catalog, error) {
	var (
		characters []*CharacterTemplate
		abilities  []*ability.Definition
		passives   []*passive.Definition
		talents    []*model.Talent
		campaigns  []*story.Campaign
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		characters, err = loadLists[*CharacterTemplate](gctx, fsys, charactersGlob)
		return err
	})
	g.Go(func() (err error) {
		abilities, err = loadLists[*ability.Definition](gctx, fsys, abilitiesGlob)
		return err
	})
	g.Go(func() (err error) {
		passives, err = loadLists[*passive.Definition](gctx, fsys, passivesGlob)
		return err
	})
	g.Go(func() (err error) {
		talents, err = loadLists[*model.Talent](gctx, fsys, talentsFile)
		return err
	})
	g.Go(func() (err error) {
		campaigns, err = loadCampaigns(gctx, fsys)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading content: %w", err)
	}

	c := newCatalog()
	if err := index(c.characters, characters, func(t *CharacterTemplate) string { return t.ID }, "character"); err != nil {
		return nil, err
	}
	if err := index(c.abilities, abilities, func(d *ability.Definition) string { return d.ID }, "ability"); err != nil {
		return nil, err
	}
	if err := index(c.passives, passives, func(d *passive.Definition) string { return d.ID }, "passive"); err != nil {
		return nil, err
	}
	if err := index(c.talents, talents, func(t *model.Talent) string { return t.ID }, "talent"); err != nil {
		return nil, err
	}
	if err := index(c.campaigns, campaigns, func(cp *story.Campaign) string { return cp.ID }, "campaign"); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}

	slog.Info("content loaded",
		"characters", len(c.characters),
		"abilities", len(c.abilities),
		"passives", len(c.passives),
		"talents", len(c.talents),
		"campaigns", len(c.campaigns))
	return c, nil
}

// loadLists decodes every file matching pattern as a YAML list of T.
func loadLists[T any](ctx context.Context, fsys fs.FS, pattern string) ([]T, error) {
	files, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	var out []T
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		var items []T
		if err := yaml.Unmarshal(b, &items); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		out = append(out, items...)
		slog.Debug("content file loaded", "file", name, "items", len(items))
	}
	return out, nil
}

func loadCampaigns(ctx context.Context, fsys fs.FS) ([]*story.Campaign, error) {
	files, err := fs.Glob(fsys, campaignsGlob)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", campaignsGlob, err)
	}
	out := make([]*story.Campaign, 0, len(files))
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		c, err := story.ParseCampaign(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(name), err)
		}
		out = append(out, c)
	}
	return out, nil
}

func index[T any](dst map[string]T, items []T, id func(T) string, kind string) error {
	for _, it := range items {
		k := id(it)
		if k == "" {
			return fmt.Errorf("%s without id", kind)
		}
		if _, dup := dst[k]; dup {
			return fmt.Errorf("duplicate %s id %s", kind, k)
		}
		dst[k] = it
	}
	return nil
}
