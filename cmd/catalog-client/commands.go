package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mediakit/catalog-client/cache"
	"github.com/mediakit/catalog-client/catalog"
)

type statusCmd struct{}

func (c *statusCmd) Run(a *app) error {
	status, version, err := a.client.Status(a.ctx)
	if err != nil {
		return fmt.Errorf("probing server: %w", err)
	}

	fmt.Printf("server:   %s\n", a.boundary.Active().String())
	fmt.Printf("status:   %s\n", status.Status)
	fmt.Printf("version:  %s (%s)\n", version.Version, version.Hash)
	fmt.Printf("schema:   db=%d app=%d\n", status.DatabaseSchema, status.AppSchema)
	return nil
}

type listFlags struct {
	Query     string `short:"q" help:"Text search."`
	Sort      string `help:"Sort field." default:"date"`
	Desc      bool   `help:"Sort descending." default:"true" negatable:""`
	PageSize  int    `help:"Items per page." default:"40"`
	Pages     int    `help:"Number of pages to fetch." default:"1"`
	WarmCache bool   `help:"Fetch preview images into the local cache."`
}

func (f listFlags) options() catalog.FeedOptions {
	direction := catalog.SortAsc
	if f.Desc {
		direction = catalog.SortDesc
	}
	return catalog.FeedOptions{
		PageSize:  f.PageSize,
		Sort:      f.Sort,
		Direction: direction,
		Query:     f.Query,
	}
}

type scenesCmd struct {
	listFlags
}

func (c *scenesCmd) Run(a *app) error {
	f := a.client.SceneFeed(c.options())
	if err := f.LoadInitial(a.ctx); err != nil {
		return err
	}
	for page := 1; page < c.Pages && f.HasMore(); page++ {
		if err := f.LoadMore(a.ctx); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tDATE\tSTUDIO\tDURATION")
	for _, s := range f.Items() {
		studio := ""
		if s.Studio != nil {
			studio = s.Studio.Name
		}
		duration := ""
		if len(s.Files) > 0 {
			duration = (time.Duration(s.Files[0].Duration) * time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Title, s.Date, studio, duration)

		if c.WarmCache && s.Paths.Screenshot != "" {
			if _, err := a.cache.Get(a.ctx, s.Paths.Screenshot); err != nil {
				a.logger.Warn("caching screenshot failed", "scene", s.ID, "error", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d of %d scenes", f.Len(), f.Total())
	if f.HasMore() {
		fmt.Print(" (more available)")
	}
	fmt.Println()
	return nil
}

type performersCmd struct {
	listFlags
}

func (c *performersCmd) Run(a *app) error {
	opts := c.options()
	if opts.Sort == "date" {
		opts.Sort = "name"
	}

	f := a.client.PerformerFeed(opts)
	if err := f.LoadInitial(a.ctx); err != nil {
		return err
	}
	for page := 1; page < c.Pages && f.HasMore(); page++ {
		if err := f.LoadMore(a.ctx); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSCENES\tFAVORITE")
	for _, p := range f.Items() {
		fav := ""
		if p.Favorite {
			fav = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.ID, p.Name, p.SceneCount, fav)

		if c.WarmCache && p.ImagePath != "" {
			if _, err := a.cache.Get(a.ctx, p.ImagePath); err != nil {
				a.logger.Warn("caching performer image failed", "performer", p.ID, "error", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d of %d performers\n", f.Len(), f.Total())
	return nil
}

type cacheSweepCmd struct {
	TTL time.Duration `help:"Maximum entry age." default:"720h"`
}

func (c *cacheSweepCmd) Run(a *app) error {
	sweeper := cache.NewSweeper(a.cache, cache.SweeperConfig{
		TTL:    c.TTL,
		Logger: a.logger,
	})
	result, err := sweeper.RunOnce(a.ctx)
	if err != nil {
		return fmt.Errorf("sweeping cache: %w", err)
	}

	fmt.Printf("expired:     %d\n", result.Expired)
	fmt.Printf("unreadable:  %d\n", result.Unreadable)
	fmt.Printf("bytes freed: %d\n", result.BytesFreed)
	fmt.Printf("duration:    %s\n", result.Duration)
	if result.Errors > 0 {
		return fmt.Errorf("%d entries could not be removed", result.Errors)
	}
	return nil
}

type cachePurgeCmd struct{}

func (c *cachePurgeCmd) Run(a *app) error {
	identity := a.boundary.Active()
	before, err := a.cache.DurableCount(identity)
	if err != nil {
		return err
	}
	if err := a.cache.PurgeNamespace(identity); err != nil {
		return err
	}
	fmt.Printf("purged %d entries for %s\n", before, identity.String())
	return nil
}
