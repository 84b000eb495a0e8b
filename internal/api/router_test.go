package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuanyuexiang/wardrobe-terminal/internal/api"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/config"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/gateway"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/identity"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/startup"
)

// fakeBackend satisfies both the startup manager's gateway surface and
// the config handler's connection tester.
type fakeBackend struct {
	lookupFunc   func(ctx context.Context, deviceID string) (*gateway.Terminal, error)
	registerFunc func(ctx context.Context, id identity.Identity) (*gateway.Terminal, error)
	testFunc     func(ctx context.Context) error
}

func (f *fakeBackend) LookupTerminal(ctx context.Context, deviceID string) (*gateway.Terminal, error) {
	if f.lookupFunc == nil {
		return nil, nil
	}
	return f.lookupFunc(ctx, deviceID)
}

func (f *fakeBackend) RegisterTerminal(ctx context.Context, id identity.Identity) (*gateway.Terminal, error) {
	if f.registerFunc == nil {
		return &gateway.Terminal{ID: "term-new", DeviceID: id.DeviceID}, nil
	}
	return f.registerFunc(ctx, id)
}

func (f *fakeBackend) TestConnection(ctx context.Context) error {
	if f.testFunc == nil {
		return nil
	}
	return f.testFunc(ctx)
}

type fakeProbe struct{}

func (fakeProbe) MachineID(context.Context) (string, error) { return "machine-abc", nil }
func (fakeProbe) Info(context.Context) (identity.HostInfo, error) {
	return identity.HostInfo{Brand: "ubuntu", ModelName: "kiosk-7", OSName: "linux"}, nil
}
func (fakeProbe) TotalMemory(context.Context) (uint64, error) { return 2048, nil }

type testEnv struct {
	router   http.Handler
	store    *config.Store
	provider *identity.Provider
}

func newTestEnv(t *testing.T, configured bool, backend *fakeBackend) *testEnv {
	t.Helper()

	store := config.NewStore(config.StoreConfig{
		Path:     filepath.Join(t.TempDir(), "config.json"),
		Defaults: config.Default("wardrobe-terminal", "test"),
		Logger:   zerolog.Nop(),
	})
	store.Load(context.Background())

	if configured {
		baseURL := "https://forge.example.com"
		token := "test-token"
		_, err := store.Save(context.Background(), config.Patch{APIBaseURL: &baseURL, AuthToken: &token})
		require.NoError(t, err)
	}

	provider := identity.NewProvider(identity.ProviderConfig{
		Mode:           identity.ModeApp,
		DeviceTypeHint: "DESKTOP",
		Probe:          fakeProbe{},
		Logger:         zerolog.Nop(),
	})

	manager := startup.NewManager(startup.ManagerConfig{
		Store:    store,
		Identity: provider,
		Gateway:  backend,
		Logger:   zerolog.Nop(),
	})

	router := api.NewRouter(api.RouterConfig{
		Version:          "test",
		BuildTime:        "unknown",
		Logger:           zerolog.Nop(),
		StartupManager:   manager,
		ConfigStore:      store,
		IdentityProvider: provider,
		ConnectionTester: backend,
	})
	return &testEnv{router: router, store: store, provider: provider}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, false, &fakeBackend{})

	rec := env.do(t, http.MethodGet, "/v1/ops/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestStartupStateUnconfigured(t *testing.T) {
	env := newTestEnv(t, false, &fakeBackend{})

	rec := env.do(t, http.MethodGet, "/v1/startup/state", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "first_time", body["state"])

	device, ok := body["device_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "machine-abc", device["device_id"])
	assert.Equal(t, "desktop", device["device_type"])
}

func TestStartupStateApproved(t *testing.T) {
	backend := &fakeBackend{
		lookupFunc: func(context.Context, string) (*gateway.Terminal, error) {
			return &gateway.Terminal{
				ID:                 "term-1",
				DeviceID:           "machine-abc",
				AuthorizedBoutique: &gateway.Boutique{ID: "store-1", Name: "Acme"},
			}, nil
		},
	}
	env := newTestEnv(t, true, backend)

	rec := env.do(t, http.MethodGet, "/v1/startup/state", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "approved", body["state"])

	terminal, ok := body["terminal_info"].(map[string]any)
	require.True(t, ok)
	boutique, ok := terminal["authorized_boutique"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Acme", boutique["name"])
}

func TestStartupStateBackendFailureIsStillOK(t *testing.T) {
	backend := &fakeBackend{
		lookupFunc: func(context.Context, string) (*gateway.Terminal, error) {
			return nil, &gateway.RequestError{Op: "lookup_terminal", Status: http.StatusInternalServerError}
		},
	}
	env := newTestEnv(t, true, backend)

	rec := env.do(t, http.MethodGet, "/v1/startup/state", nil)

	require.Equal(t, http.StatusOK, rec.Code, "failures travel in the state field")
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "error", body["state"])
}

func TestRegisterBeforeStateCheck(t *testing.T) {
	env := newTestEnv(t, true, &fakeBackend{})

	rec := env.do(t, http.MethodPost, "/v1/startup/register", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRegisterAfterStateCheck(t *testing.T) {
	env := newTestEnv(t, true, &fakeBackend{})

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/startup/state", nil).Code)
	rec := env.do(t, http.MethodPost, "/v1/startup/register", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRegisterBackendFailure(t *testing.T) {
	backend := &fakeBackend{
		registerFunc: func(context.Context, identity.Identity) (*gateway.Terminal, error) {
			return nil, &gateway.RequestError{Op: "register_terminal", Status: http.StatusBadGateway}
		},
	}
	env := newTestEnv(t, true, backend)

	env.do(t, http.MethodGet, "/v1/startup/state", nil)
	rec := env.do(t, http.MethodPost, "/v1/startup/register", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestConfigGetRedactsToken(t *testing.T) {
	env := newTestEnv(t, true, &fakeBackend{})

	rec := env.do(t, http.MethodGet, "/v1/config", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "oken", body["auth_token_last4"])
	assert.Equal(t, "https://forge.example.com", body["api_base_url"])
}

func TestConfigUpdate(t *testing.T) {
	env := newTestEnv(t, false, &fakeBackend{})

	rec := env.do(t, http.MethodPut, "/v1/config", map[string]any{
		"api_base_url": "https://forge.example.com",
		"auth_token":   "fresh-token",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fresh-token", env.store.Get().AuthToken)
}

func TestConfigUpdateRejectsInvalid(t *testing.T) {
	env := newTestEnv(t, false, &fakeBackend{})

	rec := env.do(t, http.MethodPut, "/v1/config", map[string]any{
		"api_base_url": "not-a-url",
		"auth_token":   "t",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	body := decode[map[string]any](t, rec)
	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	first := errs[0].(map[string]any)
	assert.Equal(t, "api_base_url", first["field"])

	// Nothing was persisted.
	assert.Empty(t, env.store.Get().AuthToken)
}

func TestConfigUpdateRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t, false, &fakeBackend{})

	req := httptest.NewRequest(http.MethodPut, "/v1/config", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigReset(t *testing.T) {
	env := newTestEnv(t, true, &fakeBackend{})

	rec := env.do(t, http.MethodPost, "/v1/config/reset", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.store.Get().AuthToken)
	assert.False(t, env.store.Get().IsConfigured)
}

func TestConfigTestConnection(t *testing.T) {
	env := newTestEnv(t, true, &fakeBackend{})

	rec := env.do(t, http.MethodPost, "/v1/config/test", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
}

func TestConfigTestConnectionFailure(t *testing.T) {
	backend := &fakeBackend{
		testFunc: func(context.Context) error {
			return &gateway.RequestError{Op: "test_connection", Status: http.StatusUnauthorized}
		},
	}
	env := newTestEnv(t, true, backend)

	rec := env.do(t, http.MethodPost, "/v1/config/test", nil)

	// Probe failures are a result, not an HTTP error.
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Contains(t, body["detail"], "401")
}

func TestDeviceEndpoint(t *testing.T) {
	env := newTestEnv(t, true, &fakeBackend{})

	rec := env.do(t, http.MethodGet, "/v1/device", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.do(t, http.MethodGet, "/v1/startup/state", nil)

	rec = env.do(t, http.MethodGet, "/v1/device", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "machine-abc", body["device_id"])
}

func TestNonJSONBodyRejected(t *testing.T) {
	env := newTestEnv(t, true, &fakeBackend{})

	req := httptest.NewRequest(http.MethodPut, "/v1/config", bytes.NewReader([]byte("a=b")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
