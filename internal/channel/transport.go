// Package channel wraps a caller-supplied relay transport with rate
// limiting, retry with backoff, and permanent/transient error
// classification. It performs no cryptography and never inspects record
// content.
package channel

import (
	"context"

	"relayvault/internal/record"
)

// Transport is the publish/query primitive supplied by the caller. It is
// assumed connected enough to attempt, not assumed to succeed.
type Transport interface {
	Publish(ctx context.Context, rec *record.Record) error
	Query(ctx context.Context, f record.Filter) ([]record.Record, error)
}

// LiveTransport is optionally implemented by transports that can push
// matching records as they arrive. The returned channel closes when ctx is
// done or the transport tears down the subscription.
type LiveTransport interface {
	Transport
	Subscribe(ctx context.Context, f record.Filter) (<-chan record.Record, error)
}
