// Package identity models the owner's cryptographic capability. An identity
// either holds raw key material locally (direct) or forwards seal-layer
// operations to an external signing agent (delegated). Callers branch on the
// capability tag, never on concrete types.
package identity

import (
	"context"
	"crypto/ecdh"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
)

type Capability int

const (
	// CapabilityDirect means the raw private key is available locally and
	// every operation completes without leaving the process.
	CapabilityDirect Capability = iota
	// CapabilityDelegated means the real key lives in an external agent and
	// Sign/EncryptTo/DecryptFrom may suspend on a round trip to it.
	CapabilityDelegated
)

func (c Capability) String() string {
	if c == CapabilityDirect {
		return "direct"
	}
	return "delegated"
}

var ErrNoKey = errors.New("identity: key material unavailable")

// PublicKey is the public half of an identity: an ed25519 key for signing
// and record addressing, and an X25519 key for conversation derivation.
type PublicKey struct {
	Sign ed25519.PublicKey
	DH   *ecdh.PublicKey
}

// Hex renders the signing key as lowercase hex, the form used in record
// pubkey fields and recipient tags.
func (p PublicKey) Hex() string { return hex.EncodeToString(p.Sign) }

// Signer is the owner capability consumed by the onion codec. All methods
// take a context because a delegated implementation may block on an external
// agent; direct implementations ignore it.
type Signer interface {
	Public() PublicKey
	Capability() Capability

	// Sign produces an ed25519 signature over a record digest.
	Sign(ctx context.Context, digest []byte) ([]byte, error)

	// EncryptTo seals plaintext to the given X25519 public key.
	EncryptTo(ctx context.Context, to *ecdh.PublicKey, plaintext []byte) ([]byte, error)

	// DecryptFrom opens a sealed box addressed to this identity. The sender
	// key is advisory: the box embeds the ephemeral key actually used.
	DecryptFrom(ctx context.Context, from *ecdh.PublicKey, box []byte) ([]byte, error)
}
