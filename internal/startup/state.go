// Package startup drives the terminal through its authorization flow:
// verify configuration, resolve device identity, look up the terminal
// record, and classify the result into a startup state.
package startup

import (
	"github.com/yuanyuexiang/wardrobe-terminal/internal/gateway"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/identity"
)

// State is the terminal's position in the authorization flow.
type State string

const (
	// StateLoading marks a check in progress. Never returned as a final
	// result; exposed for UI shells that render an interim screen.
	StateLoading State = "loading"

	// StateFirstTime: the terminal has no usable configuration or has
	// never been registered. The UI routes to setup/registration.
	StateFirstTime State = "first_time"

	// StatePendingApproval: registered, waiting for an administrator to
	// assign a boutique.
	StatePendingApproval State = "pending_approval"

	// StateApproved: a boutique is assigned; the storefront is reachable.
	StateApproved State = "approved"

	// StateError: the backend could not be asked and the failure does not
	// look like a configuration problem.
	StateError State = "error"
)

// Result is the outcome of one startup check. Terminal is set for
// pending_approval and approved; Device is set whenever identity
// resolution ran.
type Result struct {
	State    State
	Terminal *gateway.Terminal
	Device   *identity.Identity
}
