// Package record defines the wire shape shared by every layer of the onion
// scheme and by relay queries. A record is immutable once its id is computed;
// updates are always expressed as new records.
package record

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
)

// Record kinds. Envelope is the only kind that reaches a relay; Seal exists
// only inside an Envelope's content, SecretBundle only inside a Seal's.
const (
	KindSeal         = 13
	KindEnvelope     = 1059
	KindSecretBundle = 30081
)

// Tag markers.
const (
	TagRecipient = "p"
	TagType      = "t"
	TagAddress   = "d"
)

// TypeDiscriminator lets relays and non-participants cheaply filter this
// application's envelopes without decrypting anything.
const TypeDiscriminator = "relayvault.secrets.v1"

var (
	ErrBadPubkey    = errors.New("record: malformed pubkey")
	ErrBadSignature = errors.New("record: signature verification failed")
	ErrBadID        = errors.New("record: id does not match content")
)

type Record struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig,omitempty"`
}

// Digest returns the canonical digest of the record: SHA-256 over the JSON
// array [0, pubkey, created_at, kind, tags, content]. Field order is fixed by
// the array form, so the digest is stable across implementations.
func (r *Record) Digest() [32]byte {
	tags := r.Tags
	if tags == nil {
		tags = [][]string{}
	}
	canonical, _ := json.Marshal([]any{0, r.Pubkey, r.CreatedAt, r.Kind, tags, r.Content})
	return sha256.Sum256(canonical)
}

// ComputeID fills in the record id from the canonical digest.
func (r *Record) ComputeID() string {
	d := r.Digest()
	r.ID = hex.EncodeToString(d[:])
	return r.ID
}

// Verify checks that the id matches the content and that the signature was
// produced by the stated pubkey over the digest.
func (r *Record) Verify() error {
	d := r.Digest()
	if r.ID != hex.EncodeToString(d[:]) {
		return ErrBadID
	}
	pub, err := hex.DecodeString(r.Pubkey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return ErrBadPubkey
	}
	sig, err := hex.DecodeString(r.Sig)
	if err != nil {
		return ErrBadSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), d[:], sig) {
		return ErrBadSignature
	}
	return nil
}

// TagValue returns the value of the first tag with the given marker, or "".
func (r *Record) TagValue(marker string) string {
	for _, tag := range r.Tags {
		if len(tag) >= 2 && tag[0] == marker {
			return tag[1]
		}
	}
	return ""
}

// Recipient returns the pubkey hex from the recipient tag, if present.
func (r *Record) Recipient() string { return r.TagValue(TagRecipient) }
