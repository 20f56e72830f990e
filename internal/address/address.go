// Package address maps (project, environment) pairs to the opaque token
// carried inside encrypted records. The token is meaningless to relays; it
// only gains meaning after full decryption.
package address

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins the project id and environment slug inside a token.
const Separator = "|"

var (
	ErrEmptyComponent   = errors.New("address: empty project or environment")
	ErrSeparatorInValue = errors.New("address: component contains separator")
	ErrMalformedToken   = errors.New("address: malformed token")
)

// Address identifies one (project, environment) slot.
type Address struct {
	Project     string
	Environment string
}

// New validates both components and returns the address. Components
// containing the separator are rejected rather than silently producing an
// ambiguous token.
func New(project, environment string) (Address, error) {
	if project == "" || environment == "" {
		return Address{}, ErrEmptyComponent
	}
	if strings.Contains(project, Separator) || strings.Contains(environment, Separator) {
		return Address{}, ErrSeparatorInValue
	}
	return Address{Project: project, Environment: environment}, nil
}

// Token renders the wire form "project|environment".
func (a Address) Token() string {
	return a.Project + Separator + a.Environment
}

func (a Address) String() string { return a.Token() }

// Parse splits a token into its components. Exactly one separator is
// required; zero or more than one makes the token invalid.
func Parse(token string) (Address, error) {
	parts := strings.Split(token, Separator)
	if len(parts) != 2 {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformedToken, token)
	}
	if parts[0] == "" || parts[1] == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrMalformedToken, token)
	}
	return Address{Project: parts[0], Environment: parts[1]}, nil
}
