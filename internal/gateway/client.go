package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yuanyuexiang/wardrobe-terminal/internal/config"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/identity"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/resilience"
)

// DefaultProxyURL is the local CORS proxy used in development when the
// kiosk UI runs in a browser against a remote backend.
const DefaultProxyURL = "http://localhost:3001/api/graphql"

// GraphQL documents. The terminals collection keys devices by android_id.
const (
	queryTerminalByDeviceID = `query GetTerminalByAndroidId($androidId: String!) {
  terminals(filter: { android_id: { _eq: $androidId } }, limit: 1) {
    id
    android_id
    brand
    manufacturer
    model_name
    authorized_boutique {
      id
      name
    }
  }
}`

	mutationRegisterTerminal = `mutation RegisterDevice($data: create_terminals_input!) {
  create_terminals_item(data: $data) {
    id
    android_id
    brand
    manufacturer
    model_name
    device_type
    device_name
    os_name
    os_version
    total_memory
    date_created
  }
}`

	queryTestConnection = `query TestConnection {
  __schema {
    queryType {
      name
    }
  }
}`
)

// ClientConfig holds configuration for the backend gateway client.
type ClientConfig struct {
	// Store supplies the live endpoint and credentials. The client
	// subscribes and rebuilds itself on every config change.
	Store *config.Store

	// DevMode routes requests through the local CORS proxy instead of
	// the configured base URL.
	DevMode bool

	// ProxyURL overrides the development proxy endpoint.
	ProxyURL string

	// HTTPClient overrides the resilient HTTP client.
	HTTPClient *resilience.Client

	// Logger for gateway operations.
	Logger zerolog.Logger
}

// Client translates startup-manager intents into GraphQL operations.
type Client struct {
	store      *config.Store
	devMode    bool
	proxyURL   string
	httpClient *resilience.Client
	logger     zerolog.Logger

	mu       sync.RWMutex
	endpoint string
	token    string

	unsubscribe func()
}

// NewClient creates a gateway client bound to the configuration store.
func NewClient(cfg ClientConfig) *Client {
	proxyURL := cfg.ProxyURL
	if proxyURL == "" {
		proxyURL = DefaultProxyURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig("backend"))
	}

	c := &Client{
		store:      cfg.Store,
		devMode:    cfg.DevMode,
		proxyURL:   proxyURL,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("component", "gateway").Logger(),
	}

	c.rebuild(cfg.Store.Get())
	c.unsubscribe = cfg.Store.Subscribe(c.rebuild)
	return c
}

// Close detaches the client from the configuration store.
func (c *Client) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// rebuild re-resolves endpoint and credentials. Runs once at construction
// and again on every configuration change.
func (c *Client) rebuild(cfg config.AppConfig) {
	endpoint := resolveEndpoint(cfg.APIBaseURL, c.devMode, c.proxyURL)

	c.mu.Lock()
	c.endpoint = endpoint
	c.token = cfg.AuthToken
	c.mu.Unlock()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Bool("has_token", cfg.AuthToken != "").
		Msg("gateway endpoint resolved")
}

// resolveEndpoint picks the GraphQL endpoint for the current config. In
// development the browser-hosted UI cannot reach the remote backend
// cross-origin, so requests go through the local proxy instead.
func resolveEndpoint(baseURL string, devMode bool, proxyURL string) string {
	if devMode {
		return proxyURL
	}
	return strings.TrimRight(baseURL, "/") + "/graphql"
}

// LookupTerminal queries the terminal registered for the given device id.
// Returns (nil, nil) when the device has never been registered. Transport
// and GraphQL failures are returned as *RequestError so the caller can
// tell "not found" from "could not ask".
func (c *Client) LookupTerminal(ctx context.Context, deviceID string) (*Terminal, error) {
	var data struct {
		Terminals []Terminal `json:"terminals"`
	}

	err := c.do(ctx, "lookup_terminal", queryTerminalByDeviceID,
		map[string]any{"androidId": deviceID}, &data, true)
	if err != nil {
		return nil, err
	}

	if len(data.Terminals) == 0 {
		c.logger.Info().Str("device_id", deviceID).Msg("terminal not registered")
		return nil, nil
	}
	if len(data.Terminals) > 1 {
		// The lookup is limit 1; more than one row means the backend's
		// uniqueness assumption broke.
		c.logger.Warn().Str("device_id", deviceID).Int("count", len(data.Terminals)).
			Msg("multiple terminals matched one device id, using the first")
	}

	terminal := data.Terminals[0]
	c.logger.Info().
		Str("terminal_id", terminal.ID).
		Bool("authorized", terminal.AuthorizedBoutique != nil).
		Msg("terminal found")
	return &terminal, nil
}

// RegisterTerminal submits the device attributes to create a terminal
// record. Authorization is an administrative action; the payload never
// carries a boutique assignment.
func (c *Client) RegisterTerminal(ctx context.Context, id identity.Identity) (*Terminal, error) {
	input := map[string]any{
		"android_id":   id.DeviceID,
		"brand":        id.Brand,
		"manufacturer": id.Manufacturer,
		"model_name":   id.ModelName,
		"device_type":  string(id.DeviceType),
		"os_name":      id.OSName,
		"os_version":   id.OSVersion,
	}
	if name := id.DeviceName(); name != "" {
		input["device_name"] = name
	}
	if memory := identity.FormatMemory(id.TotalMemory); memory != "" {
		input["total_memory"] = memory
	}

	var data struct {
		Created Terminal `json:"create_terminals_item"`
	}

	err := c.do(ctx, "register_terminal", mutationRegisterTerminal,
		map[string]any{"data": input}, &data, false)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("terminal_id", data.Created.ID).
		Str("device_id", data.Created.DeviceID).
		Msg("terminal registered")
	return &data.Created, nil
}

// TestConnection runs a minimal introspection round trip. Used by the
// configuration screen's "test connection" action only.
func (c *Client) TestConnection(ctx context.Context) error {
	var data struct {
		Schema struct {
			QueryType struct {
				Name string `json:"name"`
			} `json:"queryType"`
		} `json:"__schema"`
	}
	return c.do(ctx, "test_connection", queryTestConnection, nil, &data, true)
}

// wire envelopes.

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []wireError     `json:"errors"`
}

type wireError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// do executes one GraphQL operation. Queries are retryable; mutations run
// exactly once.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any, retryable bool) error {
	c.mu.RLock()
	endpoint := c.endpoint
	token := c.token
	c.mu.RUnlock()

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var resp *http.Response
	if retryable {
		resp, err = c.httpClient.Do(req)
	} else {
		resp, err = c.httpClient.DoOnce(req)
	}
	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Msg("backend request failed")
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	var envelope graphqlResponse
	// A non-JSON body on an error status is fine; the status alone is
	// enough for classification.
	_ = json.Unmarshal(payload, &envelope)

	gqlErrors := make([]GraphQLError, 0, len(envelope.Errors))
	for _, we := range envelope.Errors {
		gqlErrors = append(gqlErrors, GraphQLError{Message: we.Message, Code: we.Extensions.Code})
	}

	if resp.StatusCode != http.StatusOK || len(gqlErrors) > 0 {
		reqErr := &RequestError{Op: op, Status: resp.StatusCode, Errors: gqlErrors}
		c.logger.Error().
			Str("op", op).
			Int("status", resp.StatusCode).
			Int("graphql_errors", len(gqlErrors)).
			Msg("backend operation failed")
		return reqErr
	}

	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &RequestError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return nil
}
