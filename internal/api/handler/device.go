package handler

import (
	"net/http"

	"github.com/yuanyuexiang/wardrobe-terminal/internal/api/response"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/identity"
)

// DeviceHandler exposes the cached device identity.
type DeviceHandler struct {
	provider *identity.Provider
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(provider *identity.Provider) *DeviceHandler {
	return &DeviceHandler{provider: provider}
}

// Get handles GET /v1/device - the last-resolved identity snapshot,
// without triggering any platform I/O.
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.provider.Current()
	if !ok {
		response.NotFound(w, r, "device identity not resolved yet")
		return
	}
	response.JSON(w, r, http.StatusOK, toDeviceInfo(id))
}
