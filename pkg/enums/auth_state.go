package enums

import "fmt"

// AuthState is the lifecycle state of the client's credentials.
type AuthState string

const (
	AuthStateUninitialized   AuthState = "uninitialized"
	AuthStateUnauthenticated AuthState = "unauthenticated"
	AuthStateAuthenticated   AuthState = "authenticated"
	AuthStateRefreshing      AuthState = "refreshing"
)

var validAuthStates = []AuthState{
	AuthStateUninitialized,
	AuthStateUnauthenticated,
	AuthStateAuthenticated,
	AuthStateRefreshing,
}

// String implements fmt.Stringer.
func (s AuthState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AuthState.
func (s AuthState) IsValid() bool {
	for _, candidate := range validAuthStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// HasCredentials reports whether an access token is held in this state.
func (s AuthState) HasCredentials() bool {
	return s == AuthStateAuthenticated || s == AuthStateRefreshing
}

// ParseAuthState converts raw input into an AuthState.
func ParseAuthState(value string) (AuthState, error) {
	for _, candidate := range validAuthStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auth state %q", value)
}
