// Package notify delivers coaching notifications over user-selected
// channels, enforcing quiet hours and falling back across providers.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperengineering/cadence/internal/types"
)

// Channel identifies a delivery channel kind.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ErrPermanent marks a provider failure that retrying cannot fix, such as a
// missing phone number. The dispatcher fails the channel immediately.
var ErrPermanent = errors.New("permanent delivery failure")

// Provider delivers a message over one channel kind.
type Provider interface {
	// Kind reports the channel this provider serves.
	Kind() Channel
	// Name identifies the concrete provider in logs, metrics, and audit rows.
	Name() string
	// Send delivers one message. Errors wrapping ErrPermanent are not retried.
	Send(ctx context.Context, user types.User, subject, body string) error
}

// Registry maps channel kinds to providers. Adding a channel means
// registering a new provider, not modifying the dispatcher.
type Registry struct {
	providers map[Channel]Provider
}

// NewRegistry creates a registry over the given providers. Registering two
// providers for the same channel is a wiring bug and fails loudly.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[Channel]Provider, len(providers))}
	for _, p := range providers {
		if _, dup := r.providers[p.Kind()]; dup {
			return nil, fmt.Errorf("duplicate provider for channel %q", p.Kind())
		}
		r.providers[p.Kind()] = p
	}
	return r, nil
}

// Get returns the provider for a channel, or nil when none is registered.
func (r *Registry) Get(ch Channel) Provider {
	return r.providers[ch]
}
