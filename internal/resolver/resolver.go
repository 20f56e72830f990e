// Package resolver picks the authoritative record per (author, address) out
// of an unordered, possibly duplicated snapshot of opened records. It is
// pure: inputs are never mutated and output depends only on the set, not on
// encounter order.
package resolver

import (
	"relayvault/internal/address"
	"relayvault/internal/onion"
)

// Key groups records that compete for the same logical slot.
type Key struct {
	Author  string
	Address address.Address
}

// Resolve returns the winning record for every (author, address) group.
// Within a group the record with the maximum authoritative timestamp wins;
// exact ties break to the lexicographically smallest envelope id, so every
// process observing the same set resolves identically.
func Resolve(records []*onion.Opened) map[Key]*onion.Opened {
	out := make(map[Key]*onion.Opened)
	for _, r := range records {
		if r == nil {
			continue
		}
		k := Key{Author: r.Author, Address: r.Address}
		cur, ok := out[k]
		if !ok || newer(r, cur) {
			out[k] = r
		}
	}
	return out
}

func newer(a, b *onion.Opened) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.EnvelopeID < b.EnvelopeID
}

// ResolveAddress returns the winning bundle for one exact (author, address)
// slot. A tombstone resolves to an empty bundle; a slot with no record at
// all returns ok=false.
func ResolveAddress(records []*onion.Opened, author string, addr address.Address) (map[string]string, bool) {
	winner, ok := Resolve(records)[Key{Author: author, Address: addr}]
	if !ok {
		return nil, false
	}
	return winner.Bundle, true
}

// ResolveEnvironments returns one bundle per known environment slug under a
// project. Environments with no record at all get an empty bundle, so the
// caller always sees every slug it asked about.
func ResolveEnvironments(records []*onion.Opened, author, project string, slugs []string) map[string]map[string]string {
	resolved := Resolve(records)
	out := make(map[string]map[string]string, len(slugs))
	for _, slug := range slugs {
		addr := address.Address{Project: project, Environment: slug}
		if winner, ok := resolved[Key{Author: author, Address: addr}]; ok {
			out[slug] = winner.Bundle
		} else {
			out[slug] = map[string]string{}
		}
	}
	return out
}

// Addresses returns the distinct addresses observed for an author, letting
// callers enumerate projects and environments without a separate index.
func Addresses(records []*onion.Opened, author string) []address.Address {
	seen := make(map[address.Address]bool)
	var out []address.Address
	for _, r := range records {
		if r == nil || r.Author != author {
			continue
		}
		if !seen[r.Address] {
			seen[r.Address] = true
			out = append(out, r.Address)
		}
	}
	return out
}
