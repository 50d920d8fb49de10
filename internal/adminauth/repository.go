package adminauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository stores the admin password hash in the admin_credentials singleton table.
type PGRepository struct {
	db *pgxpool.Pool
}

// NewPGRepository builds a PGRepository backed by db.
func NewPGRepository(db *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: db}
}

// GetPasswordHash returns the stored admin password hash, or "" if none has been set yet.
func (r *PGRepository) GetPasswordHash(ctx context.Context) (string, error) {
	var hash string
	err := r.db.QueryRow(ctx, `SELECT password_hash FROM admin_credentials WHERE id = true`).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get admin password hash: %w", err)
	}
	return hash, nil
}

// SetPasswordHash upserts the admin password hash.
func (r *PGRepository) SetPasswordHash(ctx context.Context, hash string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO admin_credentials (id, password_hash, updated_at)
		VALUES (true, $1, now())
		ON CONFLICT (id) DO UPDATE SET password_hash = excluded.password_hash, updated_at = now()
	`, hash)
	if err != nil {
		return fmt.Errorf("set admin password hash: %w", err)
	}
	return nil
}
