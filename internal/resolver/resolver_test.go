package resolver

import (
	"math/rand"
	"reflect"
	"testing"

	"relayvault/internal/address"
	"relayvault/internal/onion"
)

func opened(author, project, env string, createdAt int64, envelopeID string, bundle map[string]string) *onion.Opened {
	return &onion.Opened{
		Bundle:     bundle,
		Address:    address.Address{Project: project, Environment: env},
		CreatedAt:  createdAt,
		Author:     author,
		EnvelopeID: envelopeID,
	}
}

func TestResolveNewestWinsAnyOrder(t *testing.T) {
	records := []*onion.Opened{
		opened("alice", "app", "prod", 1000, "e1", map[string]string{"KEY": "old"}),
		opened("alice", "app", "prod", 2000, "e2", map[string]string{"KEY": "new"}),
		opened("alice", "app", "prod", 1500, "e3", map[string]string{"KEY": "mid"}),
	}

	for trial := 0; trial < 10; trial++ {
		shuffled := append([]*onion.Opened(nil), records...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		bundle, ok := ResolveAddress(shuffled, "alice", address.Address{Project: "app", Environment: "prod"})
		if !ok {
			t.Fatal("expected a winner")
		}
		if bundle["KEY"] != "new" {
			t.Fatalf("trial %d: got %q, want \"new\"", trial, bundle["KEY"])
		}
	}
}

func TestResolveTieBreakDeterministic(t *testing.T) {
	a := opened("alice", "app", "prod", 1000, "bbbb", map[string]string{"KEY": "b"})
	b := opened("alice", "app", "prod", 1000, "aaaa", map[string]string{"KEY": "a"})

	for _, in := range [][]*onion.Opened{{a, b}, {b, a}} {
		bundle, ok := ResolveAddress(in, "alice", address.Address{Project: "app", Environment: "prod"})
		if !ok {
			t.Fatal("expected a winner")
		}
		if bundle["KEY"] != "a" {
			t.Fatalf("tie-break picked %q, want smallest envelope id", bundle["KEY"])
		}
	}
}

func TestResolveSeparatesOwnersAndAddresses(t *testing.T) {
	records := []*onion.Opened{
		opened("alice", "app", "prod", 100, "e1", map[string]string{"A": "1"}),
		opened("alice", "app", "staging", 200, "e2", map[string]string{"B": "2"}),
		opened("bob", "app", "prod", 300, "e3", map[string]string{"C": "3"}),
	}
	resolved := Resolve(records)
	if len(resolved) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(resolved))
	}
	bundle, ok := ResolveAddress(records, "alice", address.Address{Project: "app", Environment: "prod"})
	if !ok || bundle["A"] != "1" {
		t.Fatalf("alice prod resolved wrong: %v", bundle)
	}
}

func TestTombstoneWinsLikeAnyRecord(t *testing.T) {
	records := []*onion.Opened{
		opened("alice", "app", "prod", 1000, "e1", map[string]string{"KEY": "live"}),
		opened("alice", "app", "prod", 2000, "e2", map[string]string{}),
	}
	bundle, ok := ResolveAddress(records, "alice", address.Address{Project: "app", Environment: "prod"})
	if !ok {
		t.Fatal("tombstone must resolve to a record, not to absence")
	}
	if len(bundle) != 0 {
		t.Fatalf("expected empty bundle, got %v", bundle)
	}
}

func TestResolveEnvironmentsFillsMissing(t *testing.T) {
	records := []*onion.Opened{
		opened("alice", "app", "prod", 100, "e1", map[string]string{"K": "v"}),
	}
	got := ResolveEnvironments(records, "alice", "app", []string{"prod", "staging", "dev"})
	want := map[string]map[string]string{
		"prod":    {"K": "v"},
		"staging": {},
		"dev":     {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolveAddressNoRecord(t *testing.T) {
	if _, ok := ResolveAddress(nil, "alice", address.Address{Project: "app", Environment: "prod"}); ok {
		t.Fatal("expected no winner for empty snapshot")
	}
}

func TestAddressesDistinct(t *testing.T) {
	records := []*onion.Opened{
		opened("alice", "app", "prod", 100, "e1", nil),
		opened("alice", "app", "prod", 200, "e2", nil),
		opened("alice", "web", "dev", 300, "e3", nil),
		opened("bob", "other", "prod", 400, "e4", nil),
	}
	got := Addresses(records, "alice")
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct addresses, got %v", got)
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	records := []*onion.Opened{
		opened("alice", "app", "prod", 100, "e1", map[string]string{"K": "v"}),
	}
	before := *records[0]
	Resolve(records)
	if !reflect.DeepEqual(before, *records[0]) {
		t.Fatal("Resolve mutated its input")
	}
}
