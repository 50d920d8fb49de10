// Package presence holds the per-member data attached to a presence channel subscription and the rollup broadcast to
// every other member of that channel.
package presence

import (
	"encoding/json"

	"github.com/microcosm-cc/bluemonday"

	"github.com/pusherd/pusherd/internal/socketid"
)

// sanitizer strips markup from presence user_info strings before they are stored or echoed to other browsers. A
// presence channel's channel_data is attacker-controlled (any client that can sign a subscribe request supplies it)
// and is later broadcast verbatim to every other subscriber, so every string leaf in it is sanitized before it is
// stored.
var sanitizer = bluemonday.StrictPolicy()

// Record is what a single socket contributed when it subscribed to a presence channel.
type Record struct {
	UserID   string          `json:"user_id"`
	UserInfo json.RawMessage `json:"user_info,omitempty"`
}

// ChannelData is the raw "channel_data" JSON object a client sends on a presence subscribe.
type ChannelData struct {
	UserID   string          `json:"user_id"`
	UserInfo json.RawMessage `json:"user_info,omitempty"`
}

// Parse decodes and sanitizes raw presence channel_data into a Record. String leaves inside UserInfo are passed
// through a strict HTML sanitizer; the JSON structure itself is preserved.
func Parse(raw []byte) (Record, error) {
	var cd ChannelData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return Record{}, err
	}

	clean, err := sanitizeRaw(cd.UserInfo)
	if err != nil {
		return Record{}, err
	}

	return Record{UserID: cd.UserID, UserInfo: clean}, nil
}

// sanitizeRaw walks an arbitrary JSON value and sanitizes every string leaf it finds, re-encoding the result.
func sanitizeRaw(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}

	cleaned := sanitizeValue(v)

	out, err := json.Marshal(cleaned)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return sanitizer.Sanitize(t)
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = sanitizeValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, elem := range t {
			out[k] = sanitizeValue(elem)
		}
		return out
	default:
		return v
	}
}

// Data is the roster payload sent in pusher_internal:subscription_succeeded for a presence channel: the distinct user
// ids currently subscribed (a user present on several sockets is listed and counted once), plus a user-keyed hash of
// user_info for display.
type Data struct {
	IDs   []string                   `json:"ids"`
	Hash  map[string]json.RawMessage `json:"hash"`
	Count int                        `json:"count"`
}

// Rollup builds the Data payload from the current member records of a presence channel. members maps each presence
// socket in the channel to the record it registered with.
func Rollup(members map[socketid.ID]Record) Data {
	seen := make(map[string]bool, len(members))
	ids := make([]string, 0, len(members))
	hash := make(map[string]json.RawMessage, len(members))

	for _, rec := range members {
		if seen[rec.UserID] {
			continue
		}
		seen[rec.UserID] = true
		ids = append(ids, rec.UserID)
		hash[rec.UserID] = rec.UserInfo
	}

	return Data{IDs: ids, Hash: hash, Count: len(ids)}
}
