// Package handler provides HTTP handlers for the terminal agent's local
// API.
package handler

import (
	"errors"
	"net/http"

	"github.com/yuanyuexiang/wardrobe-terminal/internal/api/models"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/api/response"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/gateway"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/identity"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/startup"
)

// StartupHandler exposes the startup state machine to the UI shell.
type StartupHandler struct {
	manager *startup.Manager
}

// NewStartupHandler creates a new StartupHandler.
func NewStartupHandler(manager *startup.Manager) *StartupHandler {
	return &StartupHandler{manager: manager}
}

// GetState handles GET /v1/startup/state - run a startup check. Failures
// are expressed through the returned state, never as an HTTP error.
func (h *StartupHandler) GetState(w http.ResponseWriter, r *http.Request) {
	result := h.manager.CheckState(r.Context())
	response.JSON(w, r, http.StatusOK, toStartupResponse(result))
}

// Register handles POST /v1/startup/register - submit this device for
// registration.
func (h *StartupHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Register(r.Context()); err != nil {
		if errors.Is(err, startup.ErrIdentityNotResolved) {
			response.BadRequest(w, r, "device identity not resolved yet; fetch startup state first", nil)
			return
		}
		response.BackendUnreachable(w, r, err.Error())
		return
	}
	response.NoContent(w)
}

func toStartupResponse(result startup.Result) models.StartupStateResponse {
	resp := models.StartupStateResponse{State: string(result.State)}
	if result.Terminal != nil {
		resp.Terminal = toTerminalInfo(result.Terminal)
	}
	if result.Device != nil {
		info := toDeviceInfo(*result.Device)
		resp.Device = &info
	}
	return resp
}

func toTerminalInfo(t *gateway.Terminal) *models.TerminalInfo {
	info := &models.TerminalInfo{
		ID:           t.ID,
		DeviceID:     t.DeviceID,
		Brand:        t.Brand,
		Manufacturer: t.Manufacturer,
		ModelName:    t.ModelName,
	}
	if t.AuthorizedBoutique != nil {
		info.AuthorizedBoutique = &models.BoutiqueInfo{
			ID:   t.AuthorizedBoutique.ID,
			Name: t.AuthorizedBoutique.Name,
		}
	}
	return info
}

func toDeviceInfo(id identity.Identity) models.DeviceInfo {
	return models.DeviceInfo{
		DeviceID:     id.DeviceID,
		Brand:        id.Brand,
		Manufacturer: id.Manufacturer,
		ModelName:    id.ModelName,
		DeviceType:   string(id.DeviceType),
		OSName:       id.OSName,
		OSVersion:    id.OSVersion,
		TotalMemory:  id.TotalMemory,
	}
}
