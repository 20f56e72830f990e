package vault

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"
	"time"

	"relayvault/internal/address"
	"relayvault/internal/channel"
	"relayvault/internal/configs"
	"relayvault/internal/identity"
	"relayvault/internal/logging"
	"relayvault/internal/record"
	"relayvault/internal/store"
)

func fastConfig() configs.Config {
	return configs.Config{
		Publish: configs.ClassConfig{Ops: 1000, WindowSeconds: 1, MinGapMillis: 1, MaxAttempts: 2, BaseDelayMilli: 1, MaxDelayMilli: 2},
		Query:   configs.ClassConfig{Ops: 1000, WindowSeconds: 1, MinGapMillis: 1, MaxAttempts: 2, BaseDelayMilli: 1, MaxDelayMilli: 2},
	}
}

func newVault(t *testing.T, relay channel.Transport) *Vault {
	t.Helper()
	signer, err := identity.NewLocalSigner()
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	t.Cleanup(signer.Close)
	v := New(signer, relay, fastConfig(), WithLogger(logging.Logger{}))
	t.Cleanup(v.Close)
	return v
}

func mustAddr(t *testing.T, project, env string) address.Address {
	t.Helper()
	a, err := address.New(project, env)
	if err != nil {
		t.Fatalf("address.New: %v", err)
	}
	return a
}

func TestPublishFetchRoundTrip(t *testing.T) {
	relay := store.NewMemoryRelay()
	v := newVault(t, relay)
	addr := mustAddr(t, "myproj", "production")
	bundle := map[string]string{"API_KEY": "sk_live_abc", "DEBUG": "false"}

	if err := v.PublishSecrets(context.Background(), bundle, addr); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, err := v.FetchSecrets(context.Background(), addr)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !reflect.DeepEqual(got, bundle) {
		t.Fatalf("fetched %v, want %v", got, bundle)
	}
}

func TestFetchIgnoresOtherOwnersRecords(t *testing.T) {
	relay := store.NewMemoryRelay()
	owner := newVault(t, relay)
	other := newVault(t, relay)
	addr := mustAddr(t, "myproj", "production")

	bundle := map[string]string{"API_KEY": "sk_live_abc", "DEBUG": "false"}
	if err := owner.PublishSecrets(context.Background(), bundle, addr); err != nil {
		t.Fatalf("owner publish: %v", err)
	}
	if err := other.PublishSecrets(context.Background(), map[string]string{"THEIRS": "1"}, addr); err != nil {
		t.Fatalf("other publish: %v", err)
	}
	if relay.Len() != 2 {
		t.Fatalf("relay holds %d records, want 2", relay.Len())
	}

	got, err := owner.FetchSecrets(context.Background(), addr)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !reflect.DeepEqual(got, bundle) {
		t.Fatalf("fetched %v, want exactly the owner's bundle", got)
	}
}

func TestUpdateSupersedes(t *testing.T) {
	relay := store.NewMemoryRelay()
	v := newVault(t, relay)
	addr := mustAddr(t, "app", "prod")

	if err := v.PublishSecrets(context.Background(), map[string]string{"KEY": "old"}, addr); err != nil {
		t.Fatalf("publish old: %v", err)
	}
	// Authoritative timestamps have second precision; make sure the second
	// write lands on a later one.
	time.Sleep(1100 * time.Millisecond)
	if err := v.PublishSecrets(context.Background(), map[string]string{"KEY": "new"}, addr); err != nil {
		t.Fatalf("publish new: %v", err)
	}

	got, err := v.FetchSecrets(context.Background(), addr)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got["KEY"] != "new" {
		t.Fatalf("fetched %v, want the newer write", got)
	}
	if relay.Len() != 2 {
		t.Fatal("update must append a new envelope, not replace the old one")
	}
}

func TestDeleteEnvironment(t *testing.T) {
	relay := store.NewMemoryRelay()
	v := newVault(t, relay)
	addr := mustAddr(t, "app", "prod")

	if err := v.PublishSecrets(context.Background(), map[string]string{"KEY": "v"}, addr); err != nil {
		t.Fatalf("publish: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if err := v.DeleteEnvironment(context.Background(), addr); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := v.FetchSecrets(context.Background(), addr)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("fetched %v after delete, want empty bundle", got)
	}
	// Deletion is a tombstone, not a removal: the address stays listed.
	addrs, err := v.ListAddresses(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(addrs) != 1 || addrs[0] != addr {
		t.Fatalf("addresses after delete: %v", addrs)
	}
}

func TestFetchAllEnvironments(t *testing.T) {
	relay := store.NewMemoryRelay()
	v := newVault(t, relay)

	if err := v.PublishSecrets(context.Background(), map[string]string{"K": "v"}, mustAddr(t, "app", "prod")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, err := v.FetchAllEnvironments(context.Background(), "app", []string{"prod", "staging"})
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	want := map[string]map[string]string{
		"prod":    {"K": "v"},
		"staging": {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestListAddresses(t *testing.T) {
	relay := store.NewMemoryRelay()
	v := newVault(t, relay)

	for _, pair := range [][2]string{{"app", "prod"}, {"app", "staging"}, {"web", "dev"}} {
		if err := v.PublishSecrets(context.Background(), map[string]string{"K": "v"}, mustAddr(t, pair[0], pair[1])); err != nil {
			t.Fatalf("publish %v: %v", pair, err)
		}
	}
	addrs, err := v.ListAddresses(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(addrs) != 3 {
		t.Fatalf("listed %d addresses, want 3: %v", len(addrs), addrs)
	}
}

func TestPublishRejectsInvalidAddress(t *testing.T) {
	relay := store.NewMemoryRelay()
	v := newVault(t, relay)

	err := v.PublishSecrets(context.Background(), map[string]string{"K": "v"}, address.Address{Project: "bad|name", Environment: "prod"})
	if !errors.Is(err, address.ErrSeparatorInValue) {
		t.Fatalf("expected ErrSeparatorInValue, got %v", err)
	}
	if relay.Len() != 0 {
		t.Fatal("invalid address reached the network")
	}
}

func TestFetchSecretsNoRecords(t *testing.T) {
	relay := store.NewMemoryRelay()
	v := newVault(t, relay)

	got, err := v.FetchSecrets(context.Background(), mustAddr(t, "app", "prod"))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty bundle, got %v", got)
	}
}

func TestFetchSurvivesUndecryptableRecord(t *testing.T) {
	relay := store.NewMemoryRelay()
	v := newVault(t, relay)
	addr := mustAddr(t, "app", "prod")

	if err := v.PublishSecrets(context.Background(), map[string]string{"K": "v"}, addr); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// Plant a correctly tagged, correctly signed envelope whose content this
	// identity cannot decrypt. It passes the relay filter, so the fetch path
	// must skip it during decryption instead of aborting the batch.
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	garbage := &record.Record{
		Pubkey:    hex.EncodeToString(pub),
		CreatedAt: time.Now().Unix(),
		Kind:      record.KindEnvelope,
		Tags: [][]string{
			{record.TagRecipient, v.Owner()},
			{record.TagType, record.TypeDiscriminator},
		},
		Content: base64.StdEncoding.EncodeToString([]byte("not a real onion layer, just noise bytes")),
	}
	garbage.ComputeID()
	digest := garbage.Digest()
	garbage.Sig = hex.EncodeToString(ed25519.Sign(priv, digest[:]))
	if err := relay.Publish(context.Background(), garbage); err != nil {
		t.Fatalf("plant garbage: %v", err)
	}

	got, err := v.FetchSecrets(context.Background(), addr)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got["K"] != "v" {
		t.Fatalf("fetched %v", got)
	}
}

func TestJournalTracksWrites(t *testing.T) {
	relay := store.NewMemoryRelay()
	v := newVault(t, relay)
	addr := mustAddr(t, "app", "prod")

	if err := v.PublishSecrets(context.Background(), map[string]string{"K": "v"}, addr); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := v.DeleteEnvironment(context.Background(), addr); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entries := v.Journal()
	if len(entries) != 2 {
		t.Fatalf("journal has %d entries, want 2", len(entries))
	}
	if entries[0].Op != "publish" || entries[1].Op != "tombstone" {
		t.Fatalf("journal ops: %s, %s", entries[0].Op, entries[1].Op)
	}
	if entries[0].Address != addr.Token() {
		t.Fatalf("journal address: %s", entries[0].Address)
	}
}

func TestWatchDeliversLiveUpdates(t *testing.T) {
	relay := store.NewMemoryRelay()
	v := newVault(t, relay)
	addr := mustAddr(t, "app", "prod")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := v.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := v.PublishSecrets(context.Background(), map[string]string{"K": "live"}, addr); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case opened := <-updates:
		if opened.Bundle["K"] != "live" || opened.Address != addr {
			t.Fatalf("watch delivered %+v", opened)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch delivered nothing")
	}
}
