// Package onion implements the three-layer encryption codec. The innermost
// rumor carries the plaintext bundle and the only authoritative timestamp;
// the seal proves authorship; the envelope is the only layer a relay ever
// sees and is signed by a single-use ephemeral key.
package onion

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"time"

	"relayvault/internal/address"
	"relayvault/internal/crypto"
	"relayvault/internal/identity"
	"relayvault/internal/record"
)

// ErrNotDecryptable is the only failure Unwrap reports for a record it
// cannot open. Wrong recipient, corruption, and malformed content are
// deliberately indistinguishable to the caller.
var ErrNotDecryptable = errors.New("onion: record not decryptable")

// ErrInvalidBundle rejects a write before any encryption happens.
var ErrInvalidBundle = errors.New("onion: bundle must be a flat string map")

// timestampWindow is the span into the past from which seal and envelope
// timestamps are drawn. Only the rumor's timestamp is real.
const timestampWindow = 2 * 24 * time.Hour

// Opened is the result of fully unwrapping an envelope.
type Opened struct {
	Bundle     map[string]string
	Address    address.Address
	CreatedAt  int64
	Author     string
	EnvelopeID string
}

// Tombstone reports whether the opened record logically deletes its address.
func (o *Opened) Tombstone() bool { return len(o.Bundle) == 0 }

// Wrap encrypts a bundle for the signer's own identity and returns the
// envelope for transmission plus the plaintext rumor for local bookkeeping.
// The rumor must never be transmitted.
func Wrap(ctx context.Context, bundle map[string]string, addr address.Address, signer identity.Signer) (envelope, rumor *record.Record, err error) {
	if bundle == nil {
		bundle = map[string]string{}
	}
	payload, err := json.Marshal(bundle)
	if err != nil {
		return nil, nil, ErrInvalidBundle
	}
	owner := signer.Public()
	now := time.Now().Unix()

	rumor = &record.Record{
		Pubkey:    owner.Hex(),
		CreatedAt: now,
		Kind:      record.KindSecretBundle,
		Tags:      [][]string{{record.TagAddress, addr.Token()}},
		Content:   string(payload),
	}
	rumor.ComputeID()

	seal, err := buildSeal(ctx, rumor, signer, now)
	if err != nil {
		return nil, nil, err
	}
	envelope, err = buildEnvelope(seal, owner, now)
	if err != nil {
		return nil, nil, err
	}
	return envelope, rumor, nil
}

// buildSeal encrypts the rumor to the owner's own key and signs the result
// with the owner's real key. Both steps go through the Signer so delegated
// identities work.
func buildSeal(ctx context.Context, rumor *record.Record, signer identity.Signer, now int64) (*record.Record, error) {
	serialized, err := json.Marshal(rumor)
	if err != nil {
		return nil, err
	}
	owner := signer.Public()
	box, err := signer.EncryptTo(ctx, owner.DH, serialized)
	if err != nil {
		return nil, err
	}
	seal := &record.Record{
		Pubkey:    owner.Hex(),
		CreatedAt: jitteredTimestamp(now),
		Kind:      record.KindSeal,
		Tags:      [][]string{},
		Content:   base64.StdEncoding.EncodeToString(box),
	}
	seal.ComputeID()
	digest := seal.Digest()
	sig, err := signer.Sign(ctx, digest[:])
	if err != nil {
		return nil, err
	}
	seal.Sig = hex.EncodeToString(sig)
	return seal, nil
}

// buildEnvelope wraps the signed seal under a fresh single-use ephemeral
// signing key. This layer never needs the owner's real key and is always
// performed locally.
func buildEnvelope(seal *record.Record, owner identity.PublicKey, now int64) (*record.Record, error) {
	serialized, err := json.Marshal(seal)
	if err != nil {
		return nil, err
	}
	box, err := crypto.SealBox(owner.DH, serialized, nil)
	if err != nil {
		return nil, err
	}
	ephPriv, ephPub, err := crypto.NewSigningKey()
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(ephPriv)

	envelope := &record.Record{
		Pubkey:    hex.EncodeToString(ephPub),
		CreatedAt: jitteredTimestamp(now),
		Kind:      record.KindEnvelope,
		Tags: [][]string{
			{record.TagRecipient, owner.Hex()},
			{record.TagType, record.TypeDiscriminator},
		},
		Content: base64.StdEncoding.EncodeToString(box),
	}
	envelope.ComputeID()
	digest := envelope.Digest()
	envelope.Sig = hex.EncodeToString(crypto.Sign(ephPriv, digest[:]))
	return envelope, nil
}

// Unwrap decrypts all three layers. It fails closed: any failure aborts with
// ErrNotDecryptable and no partial data.
func Unwrap(ctx context.Context, envelope *record.Record, signer identity.Signer) (*Opened, error) {
	if envelope == nil || envelope.Kind != record.KindEnvelope {
		return nil, ErrNotDecryptable
	}
	if err := envelope.Verify(); err != nil {
		return nil, ErrNotDecryptable
	}

	sealBytes, err := decryptLayer(ctx, envelope.Content, signer)
	if err != nil {
		return nil, ErrNotDecryptable
	}
	var seal record.Record
	if err := json.Unmarshal(sealBytes, &seal); err != nil || seal.Kind != record.KindSeal {
		return nil, ErrNotDecryptable
	}
	if err := seal.Verify(); err != nil {
		return nil, ErrNotDecryptable
	}

	rumorBytes, err := decryptLayer(ctx, seal.Content, signer)
	if err != nil {
		return nil, ErrNotDecryptable
	}
	var rumor record.Record
	if err := json.Unmarshal(rumorBytes, &rumor); err != nil || rumor.Kind != record.KindSecretBundle {
		return nil, ErrNotDecryptable
	}
	// The seal's signing key and the rumor's stated author must agree,
	// otherwise a valid seal could smuggle someone else's rumor.
	if rumor.Pubkey != seal.Pubkey {
		return nil, ErrNotDecryptable
	}

	bundle, err := parseBundle(rumor.Content)
	if err != nil {
		return nil, ErrNotDecryptable
	}
	token := rumor.TagValue(record.TagAddress)
	if token == "" {
		return nil, ErrNotDecryptable
	}
	addr, err := address.Parse(token)
	if err != nil {
		return nil, ErrNotDecryptable
	}

	return &Opened{
		Bundle:     bundle,
		Address:    addr,
		CreatedAt:  rumor.CreatedAt,
		Author:     rumor.Pubkey,
		EnvelopeID: envelope.ID,
	}, nil
}

func decryptLayer(ctx context.Context, content string, signer identity.Signer) ([]byte, error) {
	box, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, err
	}
	return signer.DecryptFrom(ctx, nil, box)
}

// parseBundle enforces the flat string-to-string shape. Arrays, scalars,
// null, and nested objects are all rejected.
func parseBundle(content string) (map[string]string, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, ErrInvalidBundle
	}
	bundle := map[string]string{}
	if err := json.Unmarshal([]byte(trimmed), &bundle); err != nil {
		return nil, ErrInvalidBundle
	}
	return bundle, nil
}

// jitteredTimestamp draws a timestamp uniformly from [now-2d, now] so relay
// metadata does not reveal when the write actually happened.
func jitteredTimestamp(now int64) int64 {
	window := int64(timestampWindow / time.Second)
	n, err := rand.Int(rand.Reader, big.NewInt(window+1))
	if err != nil {
		return now
	}
	return now - n.Int64()
}
