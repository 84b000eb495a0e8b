package startup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yuanyuexiang/wardrobe-terminal/internal/config"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/gateway"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/identity"
)

// ErrIdentityNotResolved is returned by Register when no device identity
// has been computed yet. CheckState (or an equivalent device-info fetch)
// must run first so the registration payload has attributes to submit.
var ErrIdentityNotResolved = errors.New("startup: device identity not resolved")

// Gateway is the backend surface the manager needs. Satisfied by
// *gateway.Client; narrowed so tests can swap in a fake.
type Gateway interface {
	LookupTerminal(ctx context.Context, deviceID string) (*gateway.Terminal, error)
	RegisterTerminal(ctx context.Context, id identity.Identity) (*gateway.Terminal, error)
}

// ManagerConfig holds configuration for the startup manager.
type ManagerConfig struct {
	Store    *config.Store
	Identity *identity.Provider
	Gateway  Gateway
	Logger   zerolog.Logger
}

// Manager is the startup state machine. Construct one per process and
// share it; checks are cheap to repeat and concurrent callers are
// de-duplicated onto a single in-flight check.
type Manager struct {
	store    *config.Store
	identity *identity.Provider
	gateway  Gateway
	logger   zerolog.Logger

	mu       sync.Mutex
	inflight *inflightCheck
}

type inflightCheck struct {
	done   chan struct{}
	result Result
}

// NewManager creates a new startup manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		store:    cfg.Store,
		identity: cfg.Identity,
		gateway:  cfg.Gateway,
		logger:   cfg.Logger.With().Str("component", "startup").Logger(),
	}
}

// CheckState runs one pass of the startup flow and classifies the
// terminal into a state. It never returns a raw error: every failure is
// folded into the returned state. Concurrent callers share the
// outstanding check instead of issuing duplicate lookups.
func (m *Manager) CheckState(ctx context.Context) Result {
	m.mu.Lock()
	if existing := m.inflight; existing != nil {
		m.mu.Unlock()
		select {
		case <-existing.done:
			return existing.result
		case <-ctx.Done():
			return Result{State: StateError}
		}
	}

	check := &inflightCheck{done: make(chan struct{})}
	m.inflight = check
	m.mu.Unlock()

	check.result = m.runCheck(ctx)

	m.mu.Lock()
	m.inflight = nil
	m.mu.Unlock()
	close(check.done)

	return check.result
}

func (m *Manager) runCheck(ctx context.Context) Result {
	m.logger.Info().Msg("checking startup state")

	// Configuration gating comes before any identity or network work:
	// without credentials there is nothing to ask the backend.
	cfg := m.store.Get()
	if cfg.AuthToken == "" || cfg.APIBaseURL == "" {
		m.logger.Info().Msg("configuration incomplete, routing to first-time setup")
		device := m.identity.Resolve(ctx)
		return Result{State: StateFirstTime, Device: &device}
	}

	device := m.identity.Resolve(ctx)

	terminal, err := m.gateway.LookupTerminal(ctx, device.DeviceID)
	if err != nil {
		state := classifyLookupFailure(err)
		m.logger.Error().Err(err).Str("state", string(state)).Msg("terminal lookup failed")
		return Result{State: state, Device: &device}
	}

	if terminal == nil {
		m.logger.Info().Msg("terminal not registered, routing to first-time setup")
		return Result{State: StateFirstTime, Device: &device}
	}

	if terminal.AuthorizedBoutique == nil {
		m.logger.Info().Str("terminal_id", terminal.ID).Msg("terminal awaiting approval")
		return Result{State: StatePendingApproval, Terminal: terminal, Device: &device}
	}

	boutique := terminal.AuthorizedBoutique
	configured := true
	if _, err := m.store.Save(ctx, config.Patch{
		SelectedBoutiqueID:   &boutique.ID,
		SelectedBoutiqueName: &boutique.Name,
		IsConfigured:         &configured,
	}); err != nil {
		// The assignment is still valid for this session; persistence is
		// retried on the next check.
		m.logger.Error().Err(err).Msg("failed to persist boutique assignment")
	}

	m.logger.Info().
		Str("terminal_id", terminal.ID).
		Str("boutique_id", boutique.ID).
		Str("boutique_name", boutique.Name).
		Msg("terminal approved")
	return Result{State: StateApproved, Terminal: terminal, Device: &device}
}

// Register submits the terminal for registration using the identity
// resolved by a previous check. Failures propagate to the caller; the
// registration screen owns the retry affordance.
func (m *Manager) Register(ctx context.Context) error {
	device, ok := m.identity.Current()
	if !ok {
		return ErrIdentityNotResolved
	}

	if _, err := m.gateway.RegisterTerminal(ctx, device); err != nil {
		return fmt.Errorf("registering terminal: %w", err)
	}
	return nil
}

// DeviceInfo returns the last-resolved device identity without
// recomputation, for screens that only display it.
func (m *Manager) DeviceInfo() (identity.Identity, bool) {
	return m.identity.Current()
}

// classifyLookupFailure maps a lookup error onto a startup state. An
// authentication or request-shape failure routes back to configuration:
// from the operator's seat, bad credentials and "never configured" look
// the same. Structured status and backend error codes are checked first;
// message text is only inspected when the error carries no structure.
func classifyLookupFailure(err error) State {
	var reqErr *gateway.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.Status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return StateFirstTime
		}
		for _, code := range []string{"INVALID_CREDENTIALS", "INVALID_TOKEN", "TOKEN_EXPIRED", "INVALID_PAYLOAD", "FORBIDDEN"} {
			if reqErr.HasCode(code) {
				return StateFirstTime
			}
		}
		if reqErr.Status != 0 {
			return StateError
		}
	}

	msg := err.Error()
	for _, marker := range []string{"401", "Unauthorized", "token", "400"} {
		if strings.Contains(msg, marker) {
			return StateFirstTime
		}
	}
	return StateError
}
