// Package audit keeps a hash-chained journal of the session's write
// operations. Entries record envelope ids and addresses, never secret
// content, so the journal itself leaks nothing beyond what relays see.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

var ErrChainBroken = errors.New("audit: journal chain broken")

type Entry struct {
	TS         int64  `json:"ts"`
	Op         string `json:"op"`
	Address    string `json:"address"`
	EnvelopeID string `json:"envelope_id"`
	Hash       string `json:"hash"`
}

// Journal chains each entry over the previous one's hash; rewriting history
// breaks verification.
type Journal struct {
	mu       sync.Mutex
	lastHash []byte
	entries  []Entry
}

func NewJournal() *Journal { return &Journal{} }

func (j *Journal) Record(op, addr, envelopeID string) Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	h := sha256.New()
	h.Write(j.lastHash)
	h.Write([]byte(op))
	h.Write([]byte(addr))
	h.Write([]byte(envelopeID))
	sum := h.Sum(nil)
	j.lastHash = sum
	e := Entry{
		TS:         time.Now().Unix(),
		Op:         op,
		Address:    addr,
		EnvelopeID: envelopeID,
		Hash:       hex.EncodeToString(sum),
	}
	j.entries = append(j.entries, e)
	return e
}

func (j *Journal) Verify() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var prev []byte
	for _, e := range j.entries {
		h := sha256.New()
		h.Write(prev)
		h.Write([]byte(e.Op))
		h.Write([]byte(e.Address))
		h.Write([]byte(e.EnvelopeID))
		sum := h.Sum(nil)
		if hex.EncodeToString(sum) != e.Hash {
			return ErrChainBroken
		}
		prev = sum
	}
	return nil
}

func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...)
}
