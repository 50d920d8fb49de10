// Package namespace holds the live state of a single app: which sockets are connected, which channels they have
// joined, and the presence roster for presence channels. A Namespace never talks to the network or to storage; it is
// pure bookkeeping, driven entirely by the Hub.
package namespace

import (
	"sync"

	"github.com/pusherd/pusherd/internal/presence"
	"github.com/pusherd/pusherd/internal/socketid"
)

// Outbox is anything that can receive a raw outbound frame. The Hub's session type implements this; Namespace only
// depends on the interface so it never needs to know about WebSocket connections.
type Outbox interface {
	Send(frame []byte)
}

// Namespace tracks one app's connected sockets, channel membership, and presence rosters. The three maps are guarded
// by independent locks so that an HTTP introspection read (ChannelNames, PresenceSnapshot) never blocks a concurrent
// Hub mutation for longer than it takes to read a single map, and vice versa.
type Namespace struct {
	socketsMu sync.RWMutex
	sockets   map[socketid.ID]Outbox

	channelsMu sync.RWMutex
	channels   map[string]map[socketid.ID]struct{}

	presenceMu sync.RWMutex
	presence   map[string]map[socketid.ID]presence.Record
}

// New returns an empty Namespace.
func New() *Namespace {
	return &Namespace{
		sockets:  make(map[socketid.ID]Outbox),
		channels: make(map[string]map[socketid.ID]struct{}),
		presence: make(map[string]map[socketid.ID]presence.Record),
	}
}

// AddSocket registers a newly connected socket. It is a no-op if the id is already registered.
func (n *Namespace) AddSocket(id socketid.ID, out Outbox) {
	n.socketsMu.Lock()
	defer n.socketsMu.Unlock()
	if _, ok := n.sockets[id]; ok {
		return
	}
	n.sockets[id] = out
}

// RemoveSocket removes a socket from the registry. It assumes the caller has already removed the socket from every
// channel it belonged to (via Unsubscribe) — see ChannelsFor for discovering that set first.
func (n *Namespace) RemoveSocket(id socketid.ID) {
	n.socketsMu.Lock()
	defer n.socketsMu.Unlock()
	delete(n.sockets, id)
}

// ChannelsFor returns every channel a socket currently belongs to.
func (n *Namespace) ChannelsFor(id socketid.ID) []string {
	n.channelsMu.RLock()
	defer n.channelsMu.RUnlock()

	var out []string
	for name, members := range n.channels {
		if _, ok := members[id]; ok {
			out = append(out, name)
		}
	}
	return out
}

// HasSocket reports whether a socket is currently registered.
func (n *Namespace) HasSocket(id socketid.ID) bool {
	n.socketsMu.RLock()
	defer n.socketsMu.RUnlock()
	_, ok := n.sockets[id]
	return ok
}

// SocketCount returns the number of connected sockets.
func (n *Namespace) SocketCount() int {
	n.socketsMu.RLock()
	defer n.socketsMu.RUnlock()
	return len(n.sockets)
}

// Subscribe adds a socket to a channel's member set. It reports false if the socket was already a member (the caller
// should treat a repeat subscribe as a no-op per the protocol's idempotent re-subscribe semantics).
func (n *Namespace) Subscribe(channel string, id socketid.ID) (joined bool) {
	n.channelsMu.Lock()
	defer n.channelsMu.Unlock()

	members, ok := n.channels[channel]
	if !ok {
		members = make(map[socketid.ID]struct{})
		n.channels[channel] = members
	}
	if _, already := members[id]; already {
		return false
	}
	members[id] = struct{}{}
	return true
}

// IsMember reports whether a socket is currently subscribed to a channel.
func (n *Namespace) IsMember(channel string, id socketid.ID) bool {
	n.channelsMu.RLock()
	defer n.channelsMu.RUnlock()
	_, ok := n.channels[channel][id]
	return ok
}

// SendTo delivers frame to a single socket, if it is still registered. It reports whether the socket was found.
func (n *Namespace) SendTo(id socketid.ID, frame []byte) bool {
	n.socketsMu.RLock()
	out, ok := n.sockets[id]
	n.socketsMu.RUnlock()
	if !ok {
		return false
	}
	out.Send(frame)
	return true
}

// Unsubscribe removes a socket from a channel. It also removes any presence record for that socket on that channel
// (I1: presence membership never outlives channel membership), reporting whether the socket had been a member and,
// if it held a presence record, that record (so the caller can build a member_removed notification without a
// separate lookup racing the removal).
func (n *Namespace) Unsubscribe(channel string, id socketid.ID) (left bool, rec presence.Record, hadPresence bool) {
	n.channelsMu.Lock()
	if members, ok := n.channels[channel]; ok {
		if _, wasMember := members[id]; wasMember {
			left = true
			delete(members, id)
			if len(members) == 0 {
				delete(n.channels, channel)
			}
		}
	}
	n.channelsMu.Unlock()

	if left {
		n.presenceMu.Lock()
		if members, ok := n.presence[channel]; ok {
			rec, hadPresence = members[id]
			delete(members, id)
			if len(members) == 0 {
				delete(n.presence, channel)
			}
		}
		n.presenceMu.Unlock()
	}

	return left, rec, hadPresence
}

// SubscribePresence joins a presence channel, recording the member's presence data. The channel membership (via
// Subscribe) must be established by the caller before or atomically with this call; SubscribePresence assumes it.
func (n *Namespace) SubscribePresence(channel string, id socketid.ID, rec presence.Record) {
	n.presenceMu.Lock()
	defer n.presenceMu.Unlock()

	members, ok := n.presence[channel]
	if !ok {
		members = make(map[socketid.ID]presence.Record)
		n.presence[channel] = members
	}
	members[id] = rec
}

// Members returns a snapshot of the sockets currently subscribed to a channel. The returned slice is safe to use
// without further locking.
func (n *Namespace) Members(channel string) []socketid.ID {
	n.channelsMu.RLock()
	defer n.channelsMu.RUnlock()

	members, ok := n.channels[channel]
	if !ok {
		return nil
	}
	out := make([]socketid.ID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// MemberCount returns the number of sockets subscribed to a channel.
func (n *Namespace) MemberCount(channel string) int {
	n.channelsMu.RLock()
	defer n.channelsMu.RUnlock()
	return len(n.channels[channel])
}

// PresenceSnapshot returns a copy of the presence roster for a channel.
func (n *Namespace) PresenceSnapshot(channel string) map[socketid.ID]presence.Record {
	n.presenceMu.RLock()
	defer n.presenceMu.RUnlock()

	members, ok := n.presence[channel]
	if !ok {
		return nil
	}
	out := make(map[socketid.ID]presence.Record, len(members))
	for id, rec := range members {
		out[id] = rec
	}
	return out
}

// ChannelNames returns a snapshot of every non-empty channel name currently tracked (I3: the map never holds
// empty-set entries, so this is simply every key).
func (n *Namespace) ChannelNames() []string {
	n.channelsMu.RLock()
	defer n.channelsMu.RUnlock()

	out := make([]string, 0, len(n.channels))
	for name := range n.channels {
		out = append(out, name)
	}
	return out
}

// Broadcast delivers frame to every socket subscribed to channel, skipping the socket identified by except (pass 0
// to exclude nothing — 0 is never a valid socket id, see internal/socketid).
func (n *Namespace) Broadcast(channel string, frame []byte, except socketid.ID) {
	n.channelsMu.RLock()
	members := n.channels[channel]
	ids := make([]socketid.ID, 0, len(members))
	for id := range members {
		if id != except {
			ids = append(ids, id)
		}
	}
	n.channelsMu.RUnlock()

	n.socketsMu.RLock()
	defer n.socketsMu.RUnlock()
	for _, id := range ids {
		if out, ok := n.sockets[id]; ok {
			out.Send(frame)
		}
	}
}
