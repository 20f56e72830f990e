// Package vault is the facade external collaborators call. It composes the
// onion codec, the resolver, the resilient channel, and the session record
// cache into the write and read paths described by the protocol: writes
// encrypt then publish, reads query then decrypt then resolve.
package vault

import (
	"context"
	"fmt"

	"relayvault/internal/address"
	"relayvault/internal/audit"
	"relayvault/internal/channel"
	"relayvault/internal/configs"
	"relayvault/internal/identity"
	"relayvault/internal/logging"
	"relayvault/internal/onion"
	"relayvault/internal/record"
	"relayvault/internal/resolver"
	"relayvault/internal/store"
)

// Vault is constructed once per session and torn down with Close. It owns
// its record cache; nothing here is process-global.
type Vault struct {
	signer  identity.Signer
	ch      *channel.Channel
	cache   *store.RecordCache
	journal *audit.Journal
	log     logging.Logger
}

type Option func(*Vault)

func WithLogger(l logging.Logger) Option {
	return func(v *Vault) { v.log = l }
}

func New(signer identity.Signer, transport channel.Transport, cfg configs.Config, opts ...Option) *Vault {
	v := &Vault{
		signer:  signer,
		cache:   store.NewRecordCache(),
		journal: audit.NewJournal(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.ch = channel.New(transport, cfg.ChannelConfig(), v.log)
	return v
}

// Close tears down the session cache. The signer is owned by the caller.
func (v *Vault) Close() { v.cache.Reset() }

// Owner returns the identity all operations read and write for.
func (v *Vault) Owner() string { return v.signer.Public().Hex() }

// SecretsFilter is the relay filter retrieving only this owner's envelopes.
func (v *Vault) SecretsFilter() record.Filter {
	return record.SecretsFilter(v.Owner())
}

// PublishSecrets encrypts the bundle for addr and broadcasts it. The address
// is re-validated before any encryption or network work; an updated secret
// is always a new envelope, never a mutation of an old one.
func (v *Vault) PublishSecrets(ctx context.Context, bundle map[string]string, addr address.Address) error {
	valid, err := address.New(addr.Project, addr.Environment)
	if err != nil {
		return err
	}
	envelope, rumor, err := onion.Wrap(ctx, bundle, valid, v.signer)
	if err != nil {
		return fmt.Errorf("vault: wrap: %w", err)
	}
	if err := v.ch.Publish(ctx, envelope); err != nil {
		return fmt.Errorf("vault: publish: %w", err)
	}
	// Cache our own write so a fetch right after sees it even if the relay
	// is slow to serve it back.
	v.cache.Merge([]*onion.Opened{{
		Bundle:     bundle,
		Address:    valid,
		CreatedAt:  rumor.CreatedAt,
		Author:     v.Owner(),
		EnvelopeID: envelope.ID,
	}})
	op := "publish"
	if len(bundle) == 0 {
		op = "tombstone"
	}
	v.journal.Record(op, valid.Token(), envelope.ID)
	v.log.Infof("published secrets for %s", valid)
	return nil
}

// Journal returns the session's tamper-evident write journal.
func (v *Vault) Journal() []audit.Entry { return v.journal.Entries() }

// FetchSecrets returns the current bundle for addr. An address whose newest
// record is a tombstone, or that has no record at all, yields an empty
// bundle.
func (v *Vault) FetchSecrets(ctx context.Context, addr address.Address) (map[string]string, error) {
	valid, err := address.New(addr.Project, addr.Environment)
	if err != nil {
		return nil, err
	}
	if err := v.sync(ctx); err != nil {
		return nil, err
	}
	bundle, ok := resolver.ResolveAddress(v.cache.Snapshot(), v.Owner(), valid)
	if !ok {
		return map[string]string{}, nil
	}
	return bundle, nil
}

// FetchAllEnvironments returns one bundle per known slug under project,
// with empty bundles for environments that have no record.
func (v *Vault) FetchAllEnvironments(ctx context.Context, project string, knownSlugs []string) (map[string]map[string]string, error) {
	if err := v.sync(ctx); err != nil {
		return nil, err
	}
	return resolver.ResolveEnvironments(v.cache.Snapshot(), v.Owner(), project, knownSlugs), nil
}

// ListAddresses enumerates every (project, environment) this owner has ever
// written, including tombstoned ones.
func (v *Vault) ListAddresses(ctx context.Context) ([]address.Address, error) {
	if err := v.sync(ctx); err != nil {
		return nil, err
	}
	return resolver.Addresses(v.cache.Snapshot(), v.Owner()), nil
}

// DeleteEnvironment publishes a tombstone for addr. History is append only;
// this supersedes prior records rather than removing them.
func (v *Vault) DeleteEnvironment(ctx context.Context, addr address.Address) error {
	return v.PublishSecrets(ctx, map[string]string{}, addr)
}

// Watch delivers records for this owner as they arrive, already decrypted.
// Undecryptable records are dropped, like on the fetch path. Only available
// when the transport supports live subscriptions.
func (v *Vault) Watch(ctx context.Context) (<-chan *onion.Opened, error) {
	raw, err := v.ch.Subscribe(ctx, v.SecretsFilter())
	if err != nil {
		return nil, err
	}
	out := make(chan *onion.Opened, 16)
	go func() {
		defer close(out)
		for rec := range raw {
			rec := rec
			opened, err := onion.Unwrap(ctx, &rec, v.signer)
			if err != nil {
				v.log.Debugf("watch: skipping record %s", rec.ID)
				continue
			}
			v.cache.Merge([]*onion.Opened{opened})
			select {
			case out <- opened:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// sync queries the relays and folds every record we can open into the
// session cache. Records for other owners, corrupted records, and foreign
// content all fail decryption identically and are skipped without aborting
// the batch.
func (v *Vault) sync(ctx context.Context) error {
	batch, err := v.ch.Query(ctx, v.SecretsFilter())
	if err != nil {
		return fmt.Errorf("vault: query: %w", err)
	}
	opened := make([]*onion.Opened, 0, len(batch))
	skipped := 0
	for i := range batch {
		o, err := onion.Unwrap(ctx, &batch[i], v.signer)
		if err != nil {
			skipped++
			continue
		}
		opened = append(opened, o)
	}
	added := v.cache.Merge(opened)
	v.log.Debugf("sync: %d records, %d opened, %d new, %d skipped", len(batch), len(opened), added, skipped)
	return nil
}
