package frame

import (
	"errors"
	"testing"
)

func TestCloseCodeAndMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err      error
		wantCode int
	}{
		{ErrAppNotFound, CloseAppNotFound},
		{ErrAppDisabled, CloseAppDisabled},
		{ErrOverCapacity, CloseOverCapacity},
		{ErrPongNotReceived, ClosePongNotReceived},
		{ErrClosedInactivity, CloseClosedAfterInactivity},
		{ErrUnauthorized, CloseUnauthorized},
	}

	for _, tt := range tests {
		code, message := CloseCodeAndMessage(tt.err)
		if code != tt.wantCode {
			t.Errorf("CloseCodeAndMessage(%v) code = %d, want %d", tt.err, code, tt.wantCode)
		}
		if message == "" {
			t.Errorf("CloseCodeAndMessage(%v) message is empty", tt.err)
		}
	}
}

func TestCloseCodeAndMessageUnknownError(t *testing.T) {
	t.Parallel()
	code, message := CloseCodeAndMessage(errors.New("surprise"))
	if code != CloseGenericReconnect {
		t.Errorf("code = %d, want %d", code, CloseGenericReconnect)
	}
	if message == "" {
		t.Error("message is empty")
	}
}
