package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediakit/catalog-client/session"
)

func TestSweepRemovesExpiredEntries(t *testing.T) {
	boundary := session.NewBoundary(testIdentity("server-a"))
	c := newTestCache(t, boundary, nil)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Entry written 40 days ago.
	c.now = func() time.Time { return base.Add(-40 * 24 * time.Hour) }
	c.Put(context.Background(), "https://media.example.com/old", []byte("old bytes"))

	// Entry written yesterday.
	c.now = func() time.Time { return base.Add(-24 * time.Hour) }
	c.Put(context.Background(), "https://media.example.com/fresh", []byte("fresh bytes"))

	s := NewSweeper(c, SweeperConfig{TTL: 30 * 24 * time.Hour})
	s.now = func() time.Time { return base }

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Expired)
	require.Equal(t, 0, result.Unreadable)
	require.Equal(t, int64(len("old bytes")), result.BytesFreed)
	require.Equal(t, 0, result.Errors)

	count, err := c.DurableCount(testIdentity("server-a"))
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestSweepNothingExpired(t *testing.T) {
	boundary := session.NewBoundary(testIdentity("server-a"))
	c := newTestCache(t, boundary, nil)
	c.Put(context.Background(), "https://media.example.com/a", []byte("bytes"))

	s := NewSweeper(c, SweeperConfig{})
	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.Expired)
	require.Equal(t, int64(0), result.BytesFreed)
}

func TestSweepRemovesUnreadableEntries(t *testing.T) {
	boundary := session.NewBoundary(testIdentity("server-a"))
	c := newTestCache(t, boundary, nil)

	ns := testIdentity("server-a").Namespace()
	require.NoError(t, c.durable.put(ns, []byte("garbage-key"), []byte("not a framed entry")))

	s := NewSweeper(c, SweeperConfig{})
	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Unreadable)

	count, err := c.DurableCount(testIdentity("server-a"))
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestSweeperStartStop(t *testing.T) {
	boundary := session.NewBoundary(testIdentity("server-a"))
	c := newTestCache(t, boundary, nil)

	s := NewSweeper(c, SweeperConfig{Interval: time.Hour})
	s.Start(context.Background())
	s.Start(context.Background()) // second start is a no-op
	s.Stop()
	s.Stop() // second stop is a no-op
}
