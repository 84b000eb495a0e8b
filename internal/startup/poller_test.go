package startup_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuanyuexiang/wardrobe-terminal/internal/gateway"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/startup"
)

func TestPollerStopsOnApproval(t *testing.T) {
	var checks atomic.Int64
	gw := &fakeGateway{
		lookupFunc: func(context.Context, string) (*gateway.Terminal, error) {
			terminal := &gateway.Terminal{ID: "term-1", DeviceID: "machine-abc"}
			if checks.Add(1) >= 3 {
				terminal.AuthorizedBoutique = &gateway.Boutique{ID: "store-1", Name: "Acme"}
			}
			return terminal, nil
		},
	}
	f := newFixture(t, true, gw)

	poller := startup.NewPoller(startup.PollerConfig{
		Manager:  f.manager,
		Interval: 5 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := poller.Run(ctx)

	assert.Equal(t, startup.StateApproved, result.State)
	assert.Equal(t, int64(3), checks.Load())
}

func TestPollerReturnsImmediatelyWhenApproved(t *testing.T) {
	gw := &fakeGateway{
		lookupFunc: func(context.Context, string) (*gateway.Terminal, error) {
			return &gateway.Terminal{
				ID:                 "term-1",
				DeviceID:           "machine-abc",
				AuthorizedBoutique: &gateway.Boutique{ID: "store-1", Name: "Acme"},
			}, nil
		},
	}
	f := newFixture(t, true, gw)

	poller := startup.NewPoller(startup.PollerConfig{
		Manager:  f.manager,
		Interval: time.Hour,
		Logger:   zerolog.Nop(),
	})

	result := poller.Run(context.Background())

	assert.Equal(t, startup.StateApproved, result.State)
	assert.Equal(t, int64(1), gw.lookupCalls.Load())
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	gw := &fakeGateway{
		lookupFunc: func(context.Context, string) (*gateway.Terminal, error) {
			return &gateway.Terminal{ID: "term-1", DeviceID: "machine-abc"}, nil
		},
	}
	f := newFixture(t, true, gw)

	poller := startup.NewPoller(startup.PollerConfig{
		Manager:  f.manager,
		Interval: 5 * time.Millisecond,
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	result := poller.Run(ctx)

	assert.Equal(t, startup.StatePendingApproval, result.State)
	assert.GreaterOrEqual(t, gw.lookupCalls.Load(), int64(1))
}

func TestPollerReportsStateTransitions(t *testing.T) {
	var checks atomic.Int64
	gw := &fakeGateway{
		lookupFunc: func(context.Context, string) (*gateway.Terminal, error) {
			terminal := &gateway.Terminal{ID: "term-1", DeviceID: "machine-abc"}
			if checks.Add(1) >= 2 {
				terminal.AuthorizedBoutique = &gateway.Boutique{ID: "store-1", Name: "Acme"}
			}
			return terminal, nil
		},
	}
	f := newFixture(t, true, gw)

	var transitions []startup.State
	poller := startup.NewPoller(startup.PollerConfig{
		Manager:  f.manager,
		Interval: 5 * time.Millisecond,
		OnChange: func(r startup.Result) { transitions = append(transitions, r.State) },
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := poller.Run(ctx)
	require.Equal(t, startup.StateApproved, result.State)

	// loading -> pending_approval on the first check, then -> approved.
	assert.Equal(t, []startup.State{startup.StatePendingApproval, startup.StateApproved}, transitions)
}

func TestPollerDoesNotFireOnChangeWithoutTransition(t *testing.T) {
	gw := &fakeGateway{
		lookupFunc: func(context.Context, string) (*gateway.Terminal, error) {
			return &gateway.Terminal{ID: "term-1", DeviceID: "machine-abc"}, nil
		},
	}
	f := newFixture(t, true, gw)

	var changes atomic.Int64
	poller := startup.NewPoller(startup.PollerConfig{
		Manager:  f.manager,
		Interval: 5 * time.Millisecond,
		OnChange: func(startup.Result) { changes.Add(1) },
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	poller.Run(ctx)

	assert.Equal(t, int64(1), changes.Load(), "only the initial loading -> pending transition fires")
}
