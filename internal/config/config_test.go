package config

import (
	"strings"
	"testing"
	"time"
)

// TestLoadDefaults is not t.Parallel because it mutates process-wide environment variables.
func TestLoadDefaults(t *testing.T) {
	keys := []string{
		"SERVER_PORT", "SERVER_ENV",
		"DATABASE_URL", "DATABASE_MAX_CONNS", "DATABASE_MIN_CONNS",
		"PING_INTERVAL", "PONG_TIMEOUT", "MAX_FRAME_BYTES",
		"ADMIN_PASSWORD", "ADMIN_JWT_SECRET", "ADMIN_JWT_ISSUER", "ADMIN_TOKEN_TTL",
		"ARGON2_MEMORY", "ARGON2_ITERATIONS", "ARGON2_PARALLELISM",
		"CORS_ALLOW_ORIGINS", "MAX_CONNECTIONS_PER_APP", "OUTBOX_BUFFER_SIZE",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}

	t.Setenv("ADMIN_PASSWORD", "correct-horse-battery-staple")
	t.Setenv("ADMIN_JWT_SECRET", "test-secret-for-defaults-minimum-32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.ServerEnv != "production" {
		t.Errorf("ServerEnv = %q, want %q", cfg.ServerEnv, "production")
	}
	if cfg.DatabaseMaxConn != 25 {
		t.Errorf("DatabaseMaxConn = %d, want 25", cfg.DatabaseMaxConn)
	}
	if cfg.DatabaseMinConn != 5 {
		t.Errorf("DatabaseMinConn = %d, want 5", cfg.DatabaseMinConn)
	}
	if cfg.PingInterval != 5*time.Second {
		t.Errorf("PingInterval = %v, want 5s", cfg.PingInterval)
	}
	if cfg.PongTimeout != 10*time.Second {
		t.Errorf("PongTimeout = %v, want 10s", cfg.PongTimeout)
	}
	if cfg.Argon2Memory != 65536 {
		t.Errorf("Argon2Memory = %d, want 65536", cfg.Argon2Memory)
	}
	if cfg.IsDevelopment() {
		t.Errorf("IsDevelopment() = true, want false for default production env")
	}
	if cfg.AdminJWTIssuer != "pusherd" {
		t.Errorf("AdminJWTIssuer = %q, want %q", cfg.AdminJWTIssuer, "pusherd")
	}
	if cfg.MaxConnectionsPerApp != 0 {
		t.Errorf("MaxConnectionsPerApp = %d, want 0 (unlimited)", cfg.MaxConnectionsPerApp)
	}
	if cfg.OutboxBufferSize != 256 {
		t.Errorf("OutboxBufferSize = %d, want 256", cfg.OutboxBufferSize)
	}
}

func TestLoadRequiresAdminSecrets(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("ADMIN_JWT_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() with no admin secrets, want error")
	}
	if !strings.Contains(err.Error(), "ADMIN_PASSWORD") {
		t.Errorf("error = %v, want mention of ADMIN_PASSWORD", err)
	}
	if !strings.Contains(err.Error(), "ADMIN_JWT_SECRET") {
		t.Errorf("error = %v, want mention of ADMIN_JWT_SECRET", err)
	}
}

func TestLoadRejectsShortJWTSecret(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "correct-horse-battery-staple")
	t.Setenv("ADMIN_JWT_SECRET", "too-short")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() with short ADMIN_JWT_SECRET, want error")
	}
	if !strings.Contains(err.Error(), "at least 32 characters") {
		t.Errorf("error = %v, want length complaint", err)
	}
}

func TestLoadRejectsBadInteger(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "correct-horse-battery-staple")
	t.Setenv("ADMIN_JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("SERVER_PORT", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() with invalid SERVER_PORT, want error")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("error = %v, want mention of SERVER_PORT", err)
	}
}

func TestLoadRejectsPongTimeoutNotGreaterThanPingInterval(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "correct-horse-battery-staple")
	t.Setenv("ADMIN_JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("PING_INTERVAL", "10s")
	t.Setenv("PONG_TIMEOUT", "5s")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() with PONG_TIMEOUT <= PING_INTERVAL, want error")
	}
	if !strings.Contains(err.Error(), "PONG_TIMEOUT") {
		t.Errorf("error = %v, want mention of PONG_TIMEOUT", err)
	}
}
