// Package agent implements the delegated-signer capability against an
// external signing agent reached over HTTP. The agent holds the owner's real
// key; this client only ever sees public keys, ciphertexts, and signatures.
package agent

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"relayvault/internal/crypto"
	"relayvault/internal/identity"
)

// ErrSignerTimeout means the agent (or the user approving on it) did not
// answer within the caller's deadline. Distinct from transport failure so
// callers can say "check your device" instead of "try again".
var ErrSignerTimeout = errors.New("agent: signer timed out")

var ErrAgentRejected = errors.New("agent: request rejected")

// Config for a remote signer session.
type Config struct {
	BaseURL string
	// OpTimeout bounds every agent round trip, including interactive
	// approval on the agent side.
	OpTimeout time.Duration
	// TransportKey signs the session's bearer tokens. Generated if nil.
	TransportKey ed25519.PrivateKey
}

func (c *Config) setDefaults() error {
	if c.BaseURL == "" {
		return errors.New("agent: BaseURL required")
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 60 * time.Second
	}
	if c.TransportKey == nil {
		priv, _, err := crypto.NewSigningKey()
		if err != nil {
			return err
		}
		c.TransportKey = priv
	}
	return nil
}

// RemoteSigner is an identity.Signer whose seal-layer operations round-trip
// to the agent.
type RemoteSigner struct {
	cfg     Config
	http    *http.Client
	tokens  *tokenMinter
	session string
	pub     identity.PublicKey
}

var _ identity.Signer = (*RemoteSigner)(nil)

// Connect establishes a session and fetches the owner's public identity.
func Connect(ctx context.Context, cfg Config) (*RemoteSigner, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	session := uuid.NewString()
	s := &RemoteSigner{
		cfg:     cfg,
		http:    &http.Client{},
		tokens:  newTokenMinter(cfg.TransportKey, session, cfg.OpTimeout),
		session: session,
	}

	var resp struct {
		SignPubkey string `json:"sign_pubkey"`
		DHPubkey   string `json:"dh_pubkey"`
	}
	if err := s.call(ctx, "/v1/identity", nil, &resp); err != nil {
		return nil, err
	}
	signPub, err := hex.DecodeString(resp.SignPubkey)
	if err != nil || len(signPub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("agent: malformed identity response")
	}
	dhRaw, err := hex.DecodeString(resp.DHPubkey)
	if err != nil {
		return nil, fmt.Errorf("agent: malformed identity response")
	}
	dhPub, err := crypto.ParseXPub(dhRaw)
	if err != nil {
		return nil, fmt.Errorf("agent: malformed identity response")
	}
	s.pub = identity.PublicKey{Sign: ed25519.PublicKey(signPub), DH: dhPub}
	return s, nil
}

func (s *RemoteSigner) Public() identity.PublicKey      { return s.pub }
func (s *RemoteSigner) Capability() identity.Capability { return identity.CapabilityDelegated }

func (s *RemoteSigner) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	var resp struct {
		Sig string `json:"sig"`
	}
	req := map[string]string{"digest": base64.StdEncoding.EncodeToString(digest)}
	if err := s.call(ctx, "/v1/sign", req, &resp); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(resp.Sig)
}

func (s *RemoteSigner) EncryptTo(ctx context.Context, to *ecdh.PublicKey, plaintext []byte) ([]byte, error) {
	var resp struct {
		Box string `json:"box"`
	}
	req := map[string]string{
		"to":        hex.EncodeToString(to.Bytes()),
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
	}
	if err := s.call(ctx, "/v1/encrypt", req, &resp); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(resp.Box)
}

func (s *RemoteSigner) DecryptFrom(ctx context.Context, from *ecdh.PublicKey, box []byte) ([]byte, error) {
	var resp struct {
		Plaintext string `json:"plaintext"`
	}
	req := map[string]string{"box": base64.StdEncoding.EncodeToString(box)}
	if from != nil {
		req["from"] = hex.EncodeToString(from.Bytes())
	}
	if err := s.call(ctx, "/v1/decrypt", req, &resp); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(resp.Plaintext)
}

func (s *RemoteSigner) call(ctx context.Context, path string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, &body)
	if err != nil {
		return err
	}
	token, err := s.tokens.mint()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return ErrSignerTimeout
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrAgentRejected, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
