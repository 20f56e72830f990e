package agent

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenMinter issues short-lived EdDSA bearer tokens for agent calls. The
// agent pins the transport public key at pairing time and checks the session
// claim, so a stolen token is useless outside its session and TTL.
type tokenMinter struct {
	priv    ed25519.PrivateKey
	session string
	ttl     time.Duration
}

func newTokenMinter(priv ed25519.PrivateKey, session string, ttl time.Duration) *tokenMinter {
	return &tokenMinter{priv: priv, session: session, ttl: ttl}
}

func (m *tokenMinter) mint() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": "relayvault-client",
		"sub": m.session,
		"iat": now.Unix(),
		"exp": now.Add(m.ttl).Unix(),
		"jti": randomJTI(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(m.priv)
}

func randomJTI() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
