// Package identity resolves a stable identity for the physical terminal
// the agent runs on.
package identity

import (
	"strings"
)

// Fixed device id sentinels used when no platform machine id is
// available. The fallback variants mark that a machine id lookup was
// attempted and failed, which keeps the two cases distinguishable in
// backend diagnostics.
const (
	BrowserDeviceID   = "web_browser_device"
	AppDeviceID       = "mobile_app_device"
	BrowserFallbackID = "web_browser_fallback"
	AppFallbackID     = "mobile_app_fallback"
)

// Mode describes how the terminal UI is delivered.
type Mode string

const (
	// ModeBrowser: the kiosk UI runs in a browser pointed at this agent.
	ModeBrowser Mode = "browser"

	// ModeApp: the kiosk UI is a native shell embedding this agent.
	ModeApp Mode = "app"
)

// DeviceType is the normalized device class submitted at registration.
type DeviceType string

const (
	DeviceTypePhone   DeviceType = "phone"
	DeviceTypeTablet  DeviceType = "tablet"
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeTV      DeviceType = "tv"
	DeviceTypeUnknown DeviceType = "unknown"
)

// NormalizeDeviceType maps the raw device class reported by the platform
// to one of the five normalized values. The platform may report either a
// small integer enum or an enum word; anything unrecognized is unknown.
func NormalizeDeviceType(raw string) DeviceType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "1", "PHONE":
		return DeviceTypePhone
	case "2", "TABLET":
		return DeviceTypeTablet
	case "3", "DESKTOP":
		return DeviceTypeDesktop
	case "4", "TV":
		return DeviceTypeTV
	default:
		return DeviceTypeUnknown
	}
}

// Identity is a read-once snapshot of the terminal hardware. All fields
// except DeviceID are best effort; DeviceID is always non-empty.
type Identity struct {
	DeviceID     string
	Brand        string
	Manufacturer string
	ModelName    string
	DeviceType   DeviceType
	OSName       string
	OSVersion    string
	TotalMemory  uint64
}

// DeviceName composes the human-readable name submitted at registration.
func (id Identity) DeviceName() string {
	name := strings.TrimSpace(id.Brand + " " + id.ModelName)
	return name
}
