// Package gateway is the GraphQL client for the boutique backend. It
// owns terminal lookup, terminal registration, and the connectivity
// probe used by the configuration screen.
package gateway

import (
	"fmt"
	"strings"
)

// Boutique is the store a terminal has been authorized for.
type Boutique struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Terminal is the backend's record of a registered device. The backend
// collection predates non-Android terminals, so the device id travels in
// the android_id field on the wire.
type Terminal struct {
	ID                 string    `json:"id"`
	DeviceID           string    `json:"android_id"`
	Brand              string    `json:"brand"`
	Manufacturer       string    `json:"manufacturer"`
	ModelName          string    `json:"model_name"`
	DeviceType         string    `json:"device_type,omitempty"`
	DeviceName         string    `json:"device_name,omitempty"`
	OSName             string    `json:"os_name,omitempty"`
	OSVersion          string    `json:"os_version,omitempty"`
	TotalMemory        string    `json:"total_memory,omitempty"`
	DateCreated        string    `json:"date_created,omitempty"`
	AuthorizedBoutique *Boutique `json:"authorized_boutique,omitempty"`
}

// GraphQLError is one entry of a GraphQL response's errors list.
type GraphQLError struct {
	Message string `json:"message"`

	// Code is the backend's machine-readable error code, e.g.
	// INVALID_CREDENTIALS, when present.
	Code string `json:"-"`
}

// RequestError is returned for any failed backend operation. It carries
// the transport status and the GraphQL error list so callers can
// classify failures without inspecting message text.
type RequestError struct {
	// Op is the failed operation, e.g. "lookup_terminal".
	Op string

	// Status is the HTTP status code, 0 if the request never completed.
	Status int

	// Errors is the GraphQL error list, if the response carried one.
	Errors []GraphQLError

	// Err is the underlying transport error, if any.
	Err error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gateway: %s failed", e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if len(e.Errors) > 0 {
		msgs := make([]string, 0, len(e.Errors))
		for _, ge := range e.Errors {
			msgs = append(msgs, ge.Message)
		}
		fmt.Fprintf(&b, ": %s", strings.Join(msgs, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// HasCode reports whether any GraphQL error carries the given code.
func (e *RequestError) HasCode(code string) bool {
	for _, ge := range e.Errors {
		if ge.Code == code {
			return true
		}
	}
	return false
}
