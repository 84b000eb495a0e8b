package models

import "time"

// Timestamp marshals as RFC 3339 UTC.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(time.RFC3339) + `"`), nil
}

// HealthStatus values for the ops endpoints.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health is the ops health/readiness response.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// DeviceInfo is the identity snapshot exposed to the UI shell.
type DeviceInfo struct {
	DeviceID     string `json:"device_id"`
	Brand        string `json:"brand,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	DeviceType   string `json:"device_type"`
	OSName       string `json:"os_name,omitempty"`
	OSVersion    string `json:"os_version,omitempty"`
	TotalMemory  uint64 `json:"total_memory,omitempty"`
}

// BoutiqueInfo is the authorized boutique surfaced with a terminal.
type BoutiqueInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TerminalInfo is the backend terminal record surfaced to the UI shell.
type TerminalInfo struct {
	ID                 string        `json:"id"`
	DeviceID           string        `json:"device_id"`
	Brand              string        `json:"brand,omitempty"`
	Manufacturer       string        `json:"manufacturer,omitempty"`
	ModelName          string        `json:"model_name,omitempty"`
	AuthorizedBoutique *BoutiqueInfo `json:"authorized_boutique,omitempty"`
}

// StartupStateResponse is the result of a startup check.
type StartupStateResponse struct {
	State    string        `json:"state"`
	Terminal *TerminalInfo `json:"terminal_info,omitempty"`
	Device   *DeviceInfo   `json:"device_info,omitempty"`
}

// ConfigResponse is the current configuration with the token redacted to
// its last four characters.
type ConfigResponse struct {
	APIBaseURL           string `json:"api_base_url"`
	AuthTokenLast4       string `json:"auth_token_last4,omitempty"`
	AppName              string `json:"app_name"`
	AppVersion           string `json:"app_version"`
	SelectedBoutiqueID   string `json:"selected_boutique_id,omitempty"`
	SelectedBoutiqueName string `json:"selected_boutique_name,omitempty"`
	IsConfigured         bool   `json:"is_configured"`
}

// ConfigUpdateRequest is a partial configuration update. Absent fields
// are left unchanged.
type ConfigUpdateRequest struct {
	APIBaseURL *string `json:"api_base_url,omitempty"`
	AuthToken  *string `json:"auth_token,omitempty"`
}

// ConnectionTestResponse is the result of a connectivity probe.
type ConnectionTestResponse struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}
