// Package delivery implements the DeliveryRouter (spec §4.E): PMA output
// and dispatch fan-out to every configured target, with deterministic
// per-chunk outbox ids, per-target dedupe, and a durable attempt mirror.
package delivery

import (
	"context"
	"fmt"

	"autorunner/internal/model"
)

// Adapter delivers one chunk to one target. Implementations MUST treat
// outboxID as an idempotency key where the underlying transport allows it;
// where it does not (most chat bot APIs have no native dedupe-by-key), the
// adapter is at-least-once and relies on the router's turn-level dedupe
// (spec §4.E.2 step 3b) to avoid routine re-sends on ordinary retries.
type Adapter interface {
	Deliver(ctx context.Context, target model.DeliveryTarget, outboxID string, chunk string, attachments []model.Attachment) error
}

// InboundAdapter is the optional other half of a chat platform's ChatAdapter
// capability (spec.md: "stream_inbound() -> lazy sequence of InboundMsg").
// Only chat adapters implement it — a web or local target has no inbound
// direction — so it is a separate interface rather than a method on Adapter,
// type-asserted by callers that care (InboundListener).
type InboundAdapter interface {
	// StreamInbound starts listening for inbound messages and returns a
	// channel that receives one InboundMsg per observed message. The
	// channel is closed when ctx is cancelled.
	StreamInbound(ctx context.Context) (<-chan model.InboundMsg, error)
}

// Registry resolves a DeliveryTarget to the Adapter that serves its kind
// (and, for chat targets, its platform).
type Registry struct {
	web   Adapter
	local Adapter
	chat  map[model.ChatPlatform]Adapter
}

// NewRegistry builds an empty registry; callers wire in whichever adapters
// their deployment has credentials for via the With* methods.
func NewRegistry() *Registry {
	return &Registry{chat: make(map[model.ChatPlatform]Adapter)}
}

// WithWeb registers the web-publisher adapter (spec §4.E target kind "web").
func (r *Registry) WithWeb(a Adapter) *Registry { r.web = a; return r }

// WithLocal registers the local-file adapter (target kind "local").
func (r *Registry) WithLocal(a Adapter) *Registry { r.local = a; return r }

// WithChat registers the adapter for one chat platform (target kind "chat").
func (r *Registry) WithChat(platform model.ChatPlatform, a Adapter) *Registry {
	r.chat[platform] = a
	return r
}

// ChatAdapters returns every registered chat adapter, keyed by platform, for
// callers that need to range over all of them (InboundListener).
func (r *Registry) ChatAdapters() map[model.ChatPlatform]Adapter {
	return r.chat
}

// Resolve returns the adapter for target's kind/platform, or an error if
// none was registered.
func (r *Registry) Resolve(target model.DeliveryTarget) (Adapter, error) {
	switch target.Kind {
	case model.TargetWeb:
		if r.web == nil {
			return nil, fmt.Errorf("no web adapter registered")
		}
		return r.web, nil
	case model.TargetLocal:
		if r.local == nil {
			return nil, fmt.Errorf("no local adapter registered")
		}
		return r.local, nil
	case model.TargetChat:
		a, ok := r.chat[target.Platform]
		if !ok {
			return nil, fmt.Errorf("no chat adapter registered for platform %s", target.Platform)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown delivery target kind %q", target.Kind)
	}
}
