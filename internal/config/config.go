// Package config provides the persisted terminal configuration and the
// store that owns it.
package config

import (
	"net/url"
	"strings"
)

// AppConfig is the terminal's persisted configuration. It is the single
// source of truth for how the agent reaches the backend and which boutique
// this terminal has been assigned to.
type AppConfig struct {
	// APIBaseURL is the backend base URL, e.g. https://forge.matrix-net.tech.
	APIBaseURL string `json:"api_base_url"`

	// AuthToken is the static bearer token used on every backend request.
	AuthToken string `json:"auth_token"`

	// AppName and AppVersion identify the installed agent build.
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`

	// SelectedBoutiqueID and SelectedBoutiqueName are written back by the
	// startup manager once an administrator approves this terminal.
	SelectedBoutiqueID   string `json:"selected_boutique_id,omitempty"`
	SelectedBoutiqueName string `json:"selected_boutique_name,omitempty"`

	// InstallID is an optional per-install identifier used in place of the
	// fixed fallback device id sentinels. Generated once, then persisted.
	InstallID string `json:"install_id,omitempty"`

	// IsConfigured is true once a boutique assignment has been resolved.
	// Implies APIBaseURL and AuthToken are both non-empty.
	IsConfigured bool `json:"is_configured"`
}

// Patch is a partial update to AppConfig. Nil fields are left unchanged.
type Patch struct {
	APIBaseURL           *string
	AuthToken            *string
	AppName              *string
	AppVersion           *string
	SelectedBoutiqueID   *string
	SelectedBoutiqueName *string
	InstallID            *string
	IsConfigured         *bool
}

// apply merges the patch into cfg.
func (p Patch) apply(cfg *AppConfig) {
	if p.APIBaseURL != nil {
		cfg.APIBaseURL = *p.APIBaseURL
	}
	if p.AuthToken != nil {
		cfg.AuthToken = *p.AuthToken
	}
	if p.AppName != nil {
		cfg.AppName = *p.AppName
	}
	if p.AppVersion != nil {
		cfg.AppVersion = *p.AppVersion
	}
	if p.SelectedBoutiqueID != nil {
		cfg.SelectedBoutiqueID = *p.SelectedBoutiqueID
	}
	if p.SelectedBoutiqueName != nil {
		cfg.SelectedBoutiqueName = *p.SelectedBoutiqueName
	}
	if p.InstallID != nil {
		cfg.InstallID = *p.InstallID
	}
	if p.IsConfigured != nil {
		cfg.IsConfigured = *p.IsConfigured
	}
}

// FieldError describes a single invalid configuration field.
type FieldError struct {
	Field   string
	Message string
}

// Validate checks that a configuration is complete enough to reach the
// backend. Used by the configuration endpoint before persisting manual
// entry; the startup manager performs its own (cheaper) gating check.
func Validate(cfg AppConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.AuthToken) == "" {
		errs = append(errs, FieldError{Field: "auth_token", Message: "auth token must not be empty"})
	}

	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		errs = append(errs, FieldError{Field: "api_base_url", Message: "API base URL must not be empty"})
	} else if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, FieldError{Field: "api_base_url", Message: "API base URL is not a valid absolute URL"})
	}

	return errs
}

// Default returns the configuration used before the terminal has ever been
// configured. Token and base URL start empty so a fresh install routes to
// the first-time setup flow.
func Default(appName, appVersion string) AppConfig {
	return AppConfig{
		AppName:      appName,
		AppVersion:   appVersion,
		IsConfigured: false,
	}
}
