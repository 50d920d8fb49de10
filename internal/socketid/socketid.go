// Package socketid generates and codes the numeric connection identifiers exchanged with clients on the wire.
package socketid

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
)

// ID identifies a single WebSocket connection for the lifetime of that connection.
type ID uint64

// ErrInvalidFormat is returned by Parse when the input is not a valid rendered socket id.
var ErrInvalidFormat = errors.New("socketid: invalid format")

// New returns a fresh, uniformly random non-zero ID. It uses crypto/rand rather than math/rand: a socket id is
// included in the message an authenticated client signs to prove access to a channel, and a predictable id would
// let one connection guess another's.
func New() ID {
	for {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			panic("socketid: failed to read random bytes: " + err.Error())
		}
		id := ID(binary.BigEndian.Uint64(buf[:]))
		if id != 0 {
			return id
		}
	}
}

// Render formats the id the way it is sent to clients: decimal digits with a "." inserted after the fourth digit,
// e.g. the id 12341234 renders as "1234.1234" (the reference test vector). Ids of four digits or fewer are rendered
// without a dot.
func Render(id ID) string {
	s := strconv.FormatUint(uint64(id), 10)
	if len(s) <= 4 {
		return s
	}
	return s[:4] + "." + s[4:]
}

// Parse reverses Render: it strips any "." characters and parses the remaining digits as a decimal ID.
func Parse(s string) (ID, error) {
	stripped := strings.ReplaceAll(s, ".", "")
	if stripped == "" {
		return 0, ErrInvalidFormat
	}
	n, err := strconv.ParseUint(stripped, 10, 64)
	if err != nil {
		return 0, ErrInvalidFormat
	}
	return ID(n), nil
}

// String implements fmt.Stringer using the same rendering sent to clients.
func (id ID) String() string {
	return Render(id)
}
