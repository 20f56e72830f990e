package crypto

import (
	"golang.org/x/crypto/argon2"
)

type KDFParams struct {
	M    uint32
	T    uint32
	P    uint8
	Salt []byte
}

// DefaultIdentityKDF returns the Argon2id parameters used to derive identity
// key seeds from a passphrase. The salt is fixed per deployment label so the
// same passphrase always yields the same identity.
func DefaultIdentityKDF(label string) KDFParams {
	return KDFParams{M: 256 * 1024, T: 3, P: 4, Salt: []byte("relayvault/id/" + label)}
}

// DeriveSeed stretches a passphrase into n bytes of key seed material.
func DeriveSeed(passphrase []byte, p KDFParams, n uint32) []byte {
	return argon2.IDKey(passphrase, p.Salt, p.T, p.M, p.P, n)
}
