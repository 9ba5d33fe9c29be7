package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	catalogclient "github.com/mediakit/catalog-client"
)

var (
	serverA = catalogclient.Identity{ID: "a", Host: "a.local", Port: 9999, Scheme: "http"}
	serverB = catalogclient.Identity{ID: "b", Host: "b.local", Port: 9999, Scheme: "http"}
)

func TestBoundaryActive(t *testing.T) {
	b := NewBoundary(serverA)
	require.Equal(t, serverA, b.Active())

	b.SwitchTo(serverB)
	require.Equal(t, serverB, b.Active())
}

func TestBoundarySwitchNotifiesWithPrev(t *testing.T) {
	b := NewBoundary(serverA)

	var gotPrev, gotNext catalogclient.Identity
	calls := 0
	b.OnServerSwitch(func(prev, next catalogclient.Identity) {
		gotPrev, gotNext = prev, next
		calls++
	})

	b.SwitchTo(serverB)
	require.Equal(t, 1, calls)
	require.Equal(t, serverA, gotPrev)
	require.Equal(t, serverB, gotNext)
}

func TestBoundarySwitchToSameIsNoop(t *testing.T) {
	b := NewBoundary(serverA)

	calls := 0
	b.OnServerSwitch(func(prev, next catalogclient.Identity) { calls++ })

	b.SwitchTo(serverA)
	require.Equal(t, 0, calls)
}

func TestBoundaryAuthFailure(t *testing.T) {
	b := NewBoundary(serverA)

	var got catalogclient.Identity
	calls := 0
	b.OnAuthFailure(func(id catalogclient.Identity) {
		got = id
		calls++
	})

	b.NotifyAuthFailure()
	require.Equal(t, 1, calls)
	require.Equal(t, serverA, got)
}

func TestBoundaryUnsubscribe(t *testing.T) {
	b := NewBoundary(serverA)

	switchCalls := 0
	unsubSwitch := b.OnServerSwitch(func(prev, next catalogclient.Identity) { switchCalls++ })

	authCalls := 0
	unsubAuth := b.OnAuthFailure(func(id catalogclient.Identity) { authCalls++ })

	unsubSwitch()
	unsubAuth()

	b.SwitchTo(serverB)
	b.NotifyAuthFailure()

	require.Equal(t, 0, switchCalls)
	require.Equal(t, 0, authCalls)
}

func TestBoundaryMultipleSubscribers(t *testing.T) {
	b := NewBoundary(serverA)

	calls := 0
	b.OnServerSwitch(func(prev, next catalogclient.Identity) { calls++ })
	b.OnServerSwitch(func(prev, next catalogclient.Identity) { calls++ })

	b.SwitchTo(serverB)
	require.Equal(t, 2, calls)
}
