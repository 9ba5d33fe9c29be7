package catalog

import (
	"context"

	"github.com/mediakit/catalog-client/feed"
)

// FeedOptions shapes the find queries behind a feed.
type FeedOptions struct {
	PageSize  int
	Sort      string
	Direction SortDirection
	Query     string
}

func (o FeedOptions) filter(page, pageSize int) FindFilter {
	return FindFilter{
		Page:      page,
		PerPage:   pageSize,
		Sort:      o.Sort,
		Direction: o.Direction,
		Query:     o.Query,
	}
}

// SceneFeed returns a paginated feed over scenes.
func (c *Client) SceneFeed(opts FeedOptions) *feed.Feed[Scene] {
	return feed.New(func(ctx context.Context, page, pageSize int) ([]Scene, int, error) {
		return c.FindScenes(ctx, opts.filter(page, pageSize))
	}, feed.Config{PageSize: opts.PageSize})
}

// PerformerFeed returns a paginated feed over performers.
func (c *Client) PerformerFeed(opts FeedOptions) *feed.Feed[Performer] {
	return feed.New(func(ctx context.Context, page, pageSize int) ([]Performer, int, error) {
		return c.FindPerformers(ctx, opts.filter(page, pageSize))
	}, feed.Config{PageSize: opts.PageSize})
}

// StudioFeed returns a paginated feed over studios.
func (c *Client) StudioFeed(opts FeedOptions) *feed.Feed[Studio] {
	return feed.New(func(ctx context.Context, page, pageSize int) ([]Studio, int, error) {
		return c.FindStudios(ctx, opts.filter(page, pageSize))
	}, feed.Config{PageSize: opts.PageSize})
}

// GalleryFeed returns a paginated feed over galleries.
func (c *Client) GalleryFeed(opts FeedOptions) *feed.Feed[Gallery] {
	return feed.New(func(ctx context.Context, page, pageSize int) ([]Gallery, int, error) {
		return c.FindGalleries(ctx, opts.filter(page, pageSize))
	}, feed.Config{PageSize: opts.PageSize})
}

// TagFeed returns a paginated feed over tags.
func (c *Client) TagFeed(opts FeedOptions) *feed.Feed[Tag] {
	return feed.New(func(ctx context.Context, page, pageSize int) ([]Tag, int, error) {
		return c.FindTags(ctx, opts.filter(page, pageSize))
	}, feed.Config{PageSize: opts.PageSize})
}
