package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/yuanyuexiang/wardrobe-terminal/internal/api/models"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/api/response"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/config"
)

// ConnectionTester is the gateway surface the config screen needs.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// ConfigHandler exposes the configuration store to the UI shell.
type ConfigHandler struct {
	store  *config.Store
	tester ConnectionTester
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(store *config.Store, tester ConnectionTester) *ConfigHandler {
	return &ConfigHandler{store: store, tester: tester}
}

// Get handles GET /v1/config - current configuration, token redacted.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, toConfigResponse(h.store.Get()))
}

// Update handles PUT /v1/config - validated partial update.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.ConfigUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	candidate := h.store.Get()
	if req.APIBaseURL != nil {
		candidate.APIBaseURL = *req.APIBaseURL
	}
	if req.AuthToken != nil {
		candidate.AuthToken = *req.AuthToken
	}

	if fieldErrs := config.Validate(candidate); len(fieldErrs) > 0 {
		errs := make([]models.FieldError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			errs = append(errs, models.FieldError{Field: fe.Field, Message: fe.Message})
		}
		response.BadRequest(w, r, "invalid configuration", errs)
		return
	}

	saved, err := h.store.Save(r.Context(), config.Patch{
		APIBaseURL: req.APIBaseURL,
		AuthToken:  req.AuthToken,
	})
	if err != nil {
		response.InternalError(w, r, "failed to persist configuration")
		return
	}

	response.JSON(w, r, http.StatusOK, toConfigResponse(saved))
}

// Reset handles POST /v1/config/reset - restore defaults.
func (h *ConfigHandler) Reset(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.Reset(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to reset configuration")
		return
	}
	response.JSON(w, r, http.StatusOK, toConfigResponse(cfg))
}

// TestConnection handles POST /v1/config/test - backend connectivity
// probe for the configuration screen.
func (h *ConfigHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.tester.TestConnection(r.Context()); err != nil {
		response.JSON(w, r, http.StatusOK, models.ConnectionTestResponse{
			OK:     false,
			Detail: err.Error(),
		})
		return
	}
	response.JSON(w, r, http.StatusOK, models.ConnectionTestResponse{OK: true})
}

func toConfigResponse(cfg config.AppConfig) models.ConfigResponse {
	return models.ConfigResponse{
		APIBaseURL:           cfg.APIBaseURL,
		AuthTokenLast4:       tokenLast4(cfg.AuthToken),
		AppName:              cfg.AppName,
		AppVersion:           cfg.AppVersion,
		SelectedBoutiqueID:   cfg.SelectedBoutiqueID,
		SelectedBoutiqueName: cfg.SelectedBoutiqueName,
		IsConfigured:         cfg.IsConfigured,
	}
}

func tokenLast4(token string) string {
	if len(token) <= 4 {
		return token
	}
	return token[len(token)-4:]
}
