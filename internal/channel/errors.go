package channel

import (
	"context"
	"errors"
	"strings"
)

// Permanent transport failures. Retrying any of these wastes the retry
// budget and can get a client banned, so they abort immediately.
var (
	ErrInvalidSignature = errors.New("channel: record signature rejected")
	ErrUnauthorized     = errors.New("channel: unauthorized")
	ErrNotFound         = errors.New("channel: not found")
	ErrBlocked          = errors.New("channel: blocked by relay")
)

// ErrAttemptsExhausted wraps the last transient error after the configured
// attempt budget is spent.
var ErrAttemptsExhausted = errors.New("channel: retry attempts exhausted")

// Class partitions transport failures by how the channel reacts to them.
type Class int

const (
	// ClassTransient failures are retried with backoff.
	ClassTransient Class = iota
	// ClassPermanent failures abort immediately without consuming retries.
	ClassPermanent
	// ClassTimeout means the caller's deadline expired or the caller was
	// torn down. Surfaced distinctly so callers can tell "relay is down"
	// from "you gave up".
	ClassTimeout
)

// relayRejections are machine-readable message prefixes relays use when
// refusing a record for good.
var relayRejections = []string{
	"invalid:",
	"auth-required:",
	"restricted:",
	"blocked:",
	"banned:",
	"forbidden:",
}

// Classify decides how a transport failure is handled. Anything not
// provably permanent or caller-imposed is transient; timeouts on the relay
// side look like transient errors and are retried, while the caller's own
// context expiry is a timeout.
func Classify(err error) Class {
	if err == nil {
		return ClassTransient
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTimeout
	}
	switch {
	case errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrBlocked):
		return ClassPermanent
	}
	msg := strings.ToLower(err.Error())
	for _, prefix := range relayRejections {
		if strings.Contains(msg, prefix) {
			return ClassPermanent
		}
	}
	return ClassTransient
}
