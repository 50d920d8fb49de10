// Package bootstrap handles first-run initialization: seeding the single admin credential so the control-plane API
// has something to authenticate against before any operator has logged in.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pusherd/pusherd/internal/adminauth"
	"github.com/pusherd/pusherd/internal/config"
)

// IsFirstRun returns true when the admin_credentials table has no rows.
func IsFirstRun(ctx context.Context, db *pgxpool.Pool) (bool, error) {
	var count int
	err := db.QueryRow(ctx, "SELECT COUNT(*) FROM admin_credentials").Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check first run: %w", err)
	}
	return count == 0, nil
}

// RunFirstInit hashes cfg.AdminPassword and persists it as the admin credential. It is the only way an
// admin_credentials row comes to exist; there is no signup flow.
func RunFirstInit(ctx context.Context, db *pgxpool.Pool, cfg *config.Config) error {
	if cfg.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD must be set for first-run initialization")
	}

	hash, err := adminauth.HashPassword(cfg.AdminPassword, adminauth.HashParams{
		Memory:      cfg.Argon2Memory,
		Iterations:  cfg.Argon2Iterations,
		Parallelism: cfg.Argon2Parallelism,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	repo := adminauth.NewPGRepository(db)
	if err := repo.SetPasswordHash(ctx, hash); err != nil {
		return fmt.Errorf("seed admin credentials: %w", err)
	}

	return nil
}
