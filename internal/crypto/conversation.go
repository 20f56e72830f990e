package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// XPubSize is the wire size of an X25519 public key.
const XPubSize = 32

var ErrBadPeerKey = errors.New("crypto: invalid peer public key")

// DHKey is an X25519 key pair used for deriving conversation keys.
type DHKey struct {
	Priv *ecdh.PrivateKey
	Pub  *ecdh.PublicKey
}

func NewX25519() (*DHKey, error) {
	dh := ecdh.X25519()
	priv, err := dh.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &DHKey{Priv: priv, Pub: priv.PublicKey()}, nil
}

// X25519FromSeed builds a key pair from 32 seed bytes. Used for
// passphrase-derived identities; the seed must come from a KDF.
func X25519FromSeed(seed []byte) (*DHKey, error) {
	priv, err := ecdh.X25519().NewPrivateKey(seed)
	if err != nil {
		return nil, err
	}
	return &DHKey{Priv: priv, Pub: priv.PublicKey()}, nil
}

func ParseXPub(b []byte) (*ecdh.PublicKey, error) {
	if len(b) != XPubSize {
		return nil, ErrBadPeerKey
	}
	pub, err := ecdh.X25519().NewPublicKey(b)
	if err != nil {
		return nil, ErrBadPeerKey
	}
	return pub, nil
}

// ConversationKey derives the symmetric key shared between priv and peer.
// The raw X25519 shared secret is expanded with HKDF-SHA256 under a fixed
// domain-separation label so the same pair never produces keys usable in
// another protocol.
func ConversationKey(priv *ecdh.PrivateKey, peer *ecdh.PublicKey) ([]byte, error) {
	secret, err := priv.ECDH(peer)
	if err != nil {
		return nil, err
	}
	defer Zero(secret)

	stream := hkdf.New(sha256.New, secret, nil, []byte("relayvault/conv/v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(stream, key); err != nil {
		return nil, err
	}
	return key, nil
}
