// Package hub implements the process-wide coordinator: the single entry point for connection lifecycle and channel
// traffic. It owns no per-connection state itself — that lives in each app's Namespace — and instead
// resolves an app, finds (or creates) its Namespace, and dispatches one of four operations against it.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pusherd/pusherd/internal/app"
	"github.com/pusherd/pusherd/internal/channelpolicy"
	"github.com/pusherd/pusherd/internal/credentials"
	"github.com/pusherd/pusherd/internal/frame"
	"github.com/pusherd/pusherd/internal/namespace"
	"github.com/pusherd/pusherd/internal/presence"
	"github.com/pusherd/pusherd/internal/socketid"
)

// EventKind tags the closed set of events a Session can forward to the Hub on behalf of a client frame.
type EventKind int

const (
	EventSubscribe EventKind = iota
	EventUnsubscribe
	EventBroadcast
)

// ClientEvt is a client-originated event forwarded from a Session to the Hub.
type ClientEvt struct {
	Kind EventKind

	// Channel applies to every kind.
	Channel string

	// Auth and ChannelData apply to Subscribe only. ChannelData is preserved exactly as the client sent it (the raw
	// JSON-encoded string), since the auth signature for presence channels is computed over those exact bytes.
	Auth        string
	ChannelData string

	// Event and Data apply to Broadcast only (a client-* event).
	Event string
	Data  json.RawMessage
}

// Hub is the dispatcher for Connect, Disconnect, ClientEvent, and Broadcast. Calls are not serialized: sessions call
// it concurrently, and each Namespace guards its own state.
type Hub struct {
	apps app.Repository

	mu         sync.RWMutex
	namespaces map[int64]*namespace.Namespace

	maxConnPerApp int
	log           zerolog.Logger
}

// New builds a Hub backed by the given app repository. maxConnPerApp caps how many sockets a single app's namespace
// may hold; 0 means unlimited.
func New(apps app.Repository, maxConnPerApp int, logger zerolog.Logger) *Hub {
	return &Hub{
		apps:          apps,
		namespaces:    make(map[int64]*namespace.Namespace),
		maxConnPerApp: maxConnPerApp,
		log:           logger.With().Str("component", "hub").Logger(),
	}
}

// namespaceFor returns the Namespace for an app id, creating it on first use.
func (h *Hub) namespaceFor(appID int64) *namespace.Namespace {
	h.mu.RLock()
	ns, ok := h.namespaces[appID]
	h.mu.RUnlock()
	if ok {
		return ns
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if ns, ok = h.namespaces[appID]; ok {
		return ns
	}
	ns = namespace.New()
	h.namespaces[appID] = ns
	return ns
}

// Connect resolves app_id against the app repository, allocates a fresh socket id, and registers out as that
// socket's outbox. The Session is responsible for sending pusher:connection_established itself once this returns.
func (h *Hub) Connect(ctx context.Context, appID int64, out namespace.Outbox) (socketid.ID, error) {
	if _, err := h.apps.FindByID(ctx, appID); err != nil {
		if errors.Is(err, app.ErrNotFound) {
			return 0, frame.ErrAppNotFound
		}
		return 0, fmt.Errorf("hub: resolve app %d: %w", appID, err)
	}

	ns := h.namespaceFor(appID)

	if h.maxConnPerApp > 0 && ns.SocketCount() >= h.maxConnPerApp {
		return 0, frame.ErrOverCapacity
	}

	var sid socketid.ID
	for {
		sid = socketid.New()
		if !ns.HasSocket(sid) {
			break
		}
	}
	ns.AddSocket(sid, out)

	return sid, nil
}

// Disconnect removes a socket from its app's namespace, notifying the remaining members of any presence channel it
// belonged to. Membership is removed before the notification is sent, so the leaver is never among the recipients.
func (h *Hub) Disconnect(appID int64, sid socketid.ID) {
	ns := h.namespaceFor(appID)

	for _, ch := range ns.ChannelsFor(sid) {
		left, rec, hadPresence := ns.Unsubscribe(ch, sid)
		if !left || !hadPresence {
			continue
		}

		removed, err := frame.NewMemberRemoved(ch, rec.UserID)
		if err != nil {
			h.log.Warn().Err(err).Str("channel", ch).Msg("failed to build member_removed frame")
			continue
		}
		ns.Broadcast(ch, removed, sid)
	}

	ns.RemoveSocket(sid)
}

// ClientEvent dispatches a client-originated event to the appropriate handler. If the app can no longer be resolved
// (it was deleted after the socket connected), the socket is sent an error frame rather than being silently ignored.
func (h *Hub) ClientEvent(ctx context.Context, appID int64, sid socketid.ID, evt ClientEvt) {
	a, err := h.apps.FindByID(ctx, appID)
	if err != nil {
		h.log.Debug().Err(err).Int64("app_id", appID).Msg("client event for unknown app")
		ns := h.namespaceFor(appID)
		if f, ferr := frame.NewError(frame.CloseAppNotFound, "App key does not exist"); ferr == nil {
			ns.SendTo(sid, f)
		}
		return
	}

	ns := h.namespaceFor(appID)

	switch evt.Kind {
	case EventSubscribe:
		h.handleSubscribe(ns, a, sid, evt)
	case EventUnsubscribe:
		h.handleUnsubscribe(ns, sid, evt.Channel)
	case EventBroadcast:
		h.handleClientBroadcast(ns, sid, evt)
	}
}

// handleSubscribe implements the channel-policy subscribe state machine (spec §4.4). A socket already subscribed to
// the channel is a silent no-op: it does not re-verify auth and does not re-emit subscription_succeeded.
func (h *Hub) handleSubscribe(ns *namespace.Namespace, a *app.App, sid socketid.ID, evt ClientEvt) {
	if ns.IsMember(evt.Channel, sid) {
		return
	}

	switch channelpolicy.KindOf(evt.Channel) {
	case channelpolicy.Public:
		ns.Subscribe(evt.Channel, sid)
		h.sendSubscriptionSucceeded(ns, sid, evt.Channel, nil)

	case channelpolicy.Private:
		if !credentials.Verify(a.Key, a.Secret, evt.Auth, sid.String(), evt.Channel) {
			h.sendSubscriptionError(ns, sid, "Not authorized")
			return
		}
		ns.Subscribe(evt.Channel, sid)
		h.sendSubscriptionSucceeded(ns, sid, evt.Channel, nil)

	case channelpolicy.Presence:
		rec, err := presence.Parse([]byte(evt.ChannelData))
		if err != nil {
			h.sendSubscriptionError(ns, sid, "Invalid channel_data")
			return
		}
		if !credentials.Verify(a.Key, a.Secret, evt.Auth, sid.String(), evt.Channel, evt.ChannelData) {
			h.sendSubscriptionError(ns, sid, "Not authorized")
			return
		}

		ns.Subscribe(evt.Channel, sid)
		ns.SubscribePresence(evt.Channel, sid, rec)

		added, err := frame.NewMemberAdded(evt.Channel, rec)
		if err != nil {
			h.log.Warn().Err(err).Str("channel", evt.Channel).Msg("failed to build member_added frame")
		} else {
			ns.Broadcast(evt.Channel, added, sid)
		}

		roster := presence.Rollup(ns.PresenceSnapshot(evt.Channel))
		h.sendSubscriptionSucceeded(ns, sid, evt.Channel, &roster)
	}
}

// handleUnsubscribe mirrors Disconnect but is restricted to a single channel.
func (h *Hub) handleUnsubscribe(ns *namespace.Namespace, sid socketid.ID, channel string) {
	left, rec, hadPresence := ns.Unsubscribe(channel, sid)
	if !left || !hadPresence {
		return
	}

	removed, err := frame.NewMemberRemoved(channel, rec.UserID)
	if err != nil {
		h.log.Warn().Err(err).Str("channel", channel).Msg("failed to build member_removed frame")
		return
	}
	ns.Broadcast(channel, removed, sid)
}

// handleClientBroadcast forwards a client-* event to every other member of the channel. No persistence, no ack.
func (h *Hub) handleClientBroadcast(ns *namespace.Namespace, sid socketid.ID, evt ClientEvt) {
	out, err := frame.NewBroadcast(evt.Channel, evt.Event, evt.Data)
	if err != nil {
		h.log.Warn().Err(err).Str("channel", evt.Channel).Msg("failed to build client broadcast frame")
		return
	}
	ns.Broadcast(evt.Channel, out, sid)
}

// Broadcast implements the HTTP-originated publish operation: fan out event/data to every member of each channel,
// excluding the socket identified by except (pass 0 to exclude nothing — 0 is never a valid socket id). Unknown
// channels are silently skipped since Namespace.Broadcast on an absent channel is simply a no-op.
func (h *Hub) Broadcast(appID int64, channels []string, event string, data json.RawMessage, except socketid.ID) error {
	ns := h.namespaceFor(appID)
	for _, ch := range channels {
		out, err := frame.NewBroadcast(ch, event, data)
		if err != nil {
			return fmt.Errorf("hub: build broadcast frame for channel %q: %w", ch, err)
		}
		ns.Broadcast(ch, out, except)
	}
	return nil
}

// sendSubscriptionSucceeded encodes and sends a subscription_succeeded frame to a single socket.
func (h *Hub) sendSubscriptionSucceeded(ns *namespace.Namespace, sid socketid.ID, channel string, roster *presence.Data) {
	f, err := frame.NewSubscriptionSucceeded(channel, roster)
	if err != nil {
		h.log.Warn().Err(err).Str("channel", channel).Msg("failed to build subscription_succeeded frame")
		return
	}
	ns.SendTo(sid, f)
}

// sendSubscriptionError encodes and sends a 403 subscription_error frame to a single socket.
func (h *Hub) sendSubscriptionError(ns *namespace.Namespace, sid socketid.ID, message string) {
	f, err := frame.NewSubscriptionError(403, message)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to build subscription_error frame")
		return
	}
	ns.SendTo(sid, f)
}

// Namespace exposes the Namespace for an app id for HTTP introspection handlers (channel listing, member listing).
// It never creates a namespace as a side effect of introspection — callers get nil for an app with no connections.
func (h *Hub) Namespace(appID int64) *namespace.Namespace {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.namespaces[appID]
}
