package frame

import "errors"

// WebSocket close codes defined by the protocol. Standard codes (1000, 1001) are defined by RFC 6455; the 4000 range
// is reserved for application use.
const (
	CloseAppRequiresSSL             = 4000
	CloseAppNotFound                = 4001
	CloseAppDisabled                = 4003
	CloseOverQuota                  = 4004
	ClosePathNotFound               = 4005
	CloseInvalidVersion             = 4006
	CloseUnsupportedProtocolVersion = 4007
	CloseNoProtocolVersion          = 4008
	CloseUnauthorized               = 4009
	CloseOverCapacity               = 4100
	CloseGenericReconnect           = 4200
	ClosePongNotReceived            = 4201
	CloseClosedAfterInactivity      = 4202
	CloseExceededRateLimit          = 4301
)

// Sentinel errors for connection-fatal failure modes. Each maps to a close code above.
var (
	ErrAppNotFound      = errors.New("app not found")
	ErrAppDisabled      = errors.New("app disabled")
	ErrOverCapacity     = errors.New("over capacity")
	ErrPongNotReceived  = errors.New("pong not received")
	ErrClosedInactivity = errors.New("closed after inactivity")
	ErrUnauthorized     = errors.New("unauthorized")
)

// errorMessages pairs each sentinel with the human-readable message sent in the pusher:error frame alongside its
// close code.
var errorMessages = map[error]struct {
	code    int
	message string
}{
	ErrAppNotFound:      {CloseAppNotFound, "App key does not exist"},
	ErrAppDisabled:      {CloseAppDisabled, "App disabled"},
	ErrOverCapacity:     {CloseOverCapacity, "Over capacity"},
	ErrPongNotReceived:  {ClosePongNotReceived, "Pong reply not received in time"},
	ErrClosedInactivity: {CloseClosedAfterInactivity, "Connection closed after inactivity"},
	ErrUnauthorized:     {CloseUnauthorized, "Unauthorized"},
}

// CloseCodeAndMessage maps a connection-fatal sentinel error to its close code and pusher:error message. Unknown
// errors map to a generic reconnect code so a programming mistake never leaves a connection silently open.
func CloseCodeAndMessage(err error) (code int, message string) {
	if m, ok := errorMessages[err]; ok {
		return m.code, m.message
	}
	return CloseGenericReconnect, "Internal error"
}
