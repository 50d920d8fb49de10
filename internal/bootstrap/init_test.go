package bootstrap

import (
	"testing"

	"github.com/pusherd/pusherd/internal/config"
)

func TestRunFirstInitRequiresAdminPassword(t *testing.T) {
	cfg := &config.Config{}
	if err := RunFirstInit(nil, nil, cfg); err == nil {
		t.Fatal("expected an error when ADMIN_PASSWORD is unset")
	}
}
