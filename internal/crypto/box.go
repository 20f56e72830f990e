package crypto

import (
	"crypto/ecdh"
	"errors"
)

var ErrBoxTooShort = errors.New("crypto: box too short")

// SealBox encrypts plaintext to the recipient's X25519 public key. A fresh
// ephemeral key pair is generated per call, so sealing the same plaintext
// twice yields unrelated ciphertexts. Returned layout:
// [ephemeralXPub(32)||nonce(24)||ct||tag].
func SealBox(to *ecdh.PublicKey, plaintext, aad []byte) ([]byte, error) {
	eph, err := NewX25519()
	if err != nil {
		return nil, err
	}
	key, err := ConversationKey(eph.Priv, to)
	if err != nil {
		return nil, err
	}
	defer Zero(key)

	sealed, err := SealX(key, plaintext, aad)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, XPubSize+len(sealed))
	out = append(out, eph.Pub.Bytes()...)
	out = append(out, sealed...)
	return out, nil
}

// OpenBox decrypts data previously sealed with SealBox using the recipient's
// X25519 private key against the embedded ephemeral public key.
func OpenBox(priv *ecdh.PrivateKey, box, aad []byte) ([]byte, error) {
	if len(box) < XPubSize {
		return nil, ErrBoxTooShort
	}
	ephPub, err := ParseXPub(box[:XPubSize])
	if err != nil {
		return nil, err
	}
	key, err := ConversationKey(priv, ephPub)
	if err != nil {
		return nil, err
	}
	defer Zero(key)
	return OpenX(key, box[XPubSize:], aad)
}
