// Package channelpolicy classifies channel names into the closed set of kinds the protocol defines and carries the
// small amount of per-kind behavior (whether a subscribe requires auth, whether membership is tracked with presence
// data) as a tagged variant rather than dynamic dispatch, since the set of kinds never grows.
package channelpolicy

import "strings"

// Kind is the closed set of channel kinds.
type Kind int

const (
	// Public channels require no authentication to subscribe.
	Public Kind = iota
	// Private channels require a valid per-subscribe HMAC signature.
	Private
	// Presence channels require the same signature as Private, plus channel_data describing the subscribing user,
	// and maintain a visible member roster.
	Presence
)

const (
	privatePrefix  = "private-"
	presencePrefix = "presence-"
)

// KindOf classifies a channel name by its prefix.
func KindOf(name string) Kind {
	switch {
	case strings.HasPrefix(name, presencePrefix):
		return Presence
	case strings.HasPrefix(name, privatePrefix):
		return Private
	default:
		return Public
	}
}

// RequiresAuth reports whether subscribing to a channel of this kind requires a valid HMAC signature.
func (k Kind) RequiresAuth() bool {
	return k == Private || k == Presence
}

// TracksPresence reports whether this channel kind maintains a member roster and emits member_added/member_removed.
func (k Kind) TracksPresence() bool {
	return k == Presence
}

// String names the kind for logging.
func (k Kind) String() string {
	switch k {
	case Public:
		return "public"
	case Private:
		return "private"
	case Presence:
		return "presence"
	default:
		return "unknown"
	}
}
