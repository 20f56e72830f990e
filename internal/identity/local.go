package identity

import (
	"context"
	"crypto/ecdh"
	"crypto/ed25519"
	"errors"

	"relayvault/internal/crypto"
)

// LocalSigner holds raw key material in process memory. The ed25519 private
// key is pinned with mlock where the platform supports it.
type LocalSigner struct {
	signPriv ed25519.PrivateKey
	signPub  ed25519.PublicKey
	dh       *crypto.DHKey
}

var _ Signer = (*LocalSigner)(nil)

// NewLocalSigner generates a fresh identity.
func NewLocalSigner() (*LocalSigner, error) {
	priv, pub, err := crypto.NewSigningKey()
	if err != nil {
		return nil, err
	}
	dh, err := crypto.NewX25519()
	if err != nil {
		return nil, err
	}
	s := &LocalSigner{signPriv: priv, signPub: pub, dh: dh}
	_ = crypto.LockMemory(s.signPriv)
	return s, nil
}

// FromSeed builds a deterministic identity from 64 seed bytes: the first 32
// seed the ed25519 key, the last 32 the X25519 key.
func FromSeed(seed []byte) (*LocalSigner, error) {
	if len(seed) != 64 {
		return nil, errors.New("identity: seed must be 64 bytes")
	}
	priv := ed25519.NewKeyFromSeed(seed[:32])
	dh, err := crypto.X25519FromSeed(seed[32:])
	if err != nil {
		return nil, err
	}
	s := &LocalSigner{
		signPriv: priv,
		signPub:  priv.Public().(ed25519.PublicKey),
		dh:       dh,
	}
	_ = crypto.LockMemory(s.signPriv)
	return s, nil
}

// FromPassphrase derives a portable identity with Argon2id. The same
// passphrase and label always yield the same identity.
func FromPassphrase(passphrase []byte, label string) (*LocalSigner, error) {
	seed := crypto.DeriveSeed(passphrase, crypto.DefaultIdentityKDF(label), 64)
	defer crypto.Zero(seed)
	return FromSeed(seed)
}

// Close wipes the signing key. The signer must not be used afterwards.
func (s *LocalSigner) Close() {
	_ = crypto.UnlockMemory(s.signPriv)
	crypto.Zero(s.signPriv)
	s.signPriv = nil
}

func (s *LocalSigner) Public() PublicKey {
	return PublicKey{Sign: s.signPub, DH: s.dh.Pub}
}

func (s *LocalSigner) Capability() Capability { return CapabilityDirect }

func (s *LocalSigner) Sign(_ context.Context, digest []byte) ([]byte, error) {
	if len(s.signPriv) == 0 {
		return nil, ErrNoKey
	}
	return crypto.Sign(s.signPriv, digest), nil
}

func (s *LocalSigner) EncryptTo(_ context.Context, to *ecdh.PublicKey, plaintext []byte) ([]byte, error) {
	return crypto.SealBox(to, plaintext, nil)
}

func (s *LocalSigner) DecryptFrom(_ context.Context, _ *ecdh.PublicKey, box []byte) ([]byte, error) {
	return crypto.OpenBox(s.dh.Priv, box, nil)
}
