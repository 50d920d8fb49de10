// Package app holds the App tenant model and its Postgres-backed repository.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pusherd/pusherd/internal/credentials"
	"github.com/pusherd/pusherd/internal/postgres"
)

// Sentinel errors for the app package.
var (
	ErrNotFound   = errors.New("app not found")
	ErrNameLength = errors.New("name must be between 1 and 100 characters")
)

// ValidateName checks that name is between 1 and 100 characters (runes) after trimming whitespace, and returns the
// trimmed value.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if n := utf8.RuneCountInString(trimmed); n < 1 || n > 100 {
		return "", ErrNameLength
	}
	return trimmed, nil
}

// App is a tenant: every socket connection, channel, and publish call is scoped to one App.
type App struct {
	ID     int64
	Name   string
	Key    string
	Secret string
}

// Repository is the storage boundary for App records.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*App, error)
	FindByKey(ctx context.Context, key string) (*App, error)
	List(ctx context.Context) ([]App, error)
	Insert(ctx context.Context, name string) (*App, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPGRepository creates a new PostgreSQL-backed app repository.
func NewPGRepository(db *pgxpool.Pool, logger zerolog.Logger) *PGRepository {
	return &PGRepository{db: db, log: logger}
}

const selectColumns = "id, name, key, secret"

// FindByID returns the app with the given numeric id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*App, error) {
	row := r.db.QueryRow(ctx, "SELECT "+selectColumns+" FROM apps WHERE id = $1", id)
	return scanApp(row)
}

// FindByKey returns the app with the given public key.
func (r *PGRepository) FindByKey(ctx context.Context, key string) (*App, error) {
	row := r.db.QueryRow(ctx, "SELECT "+selectColumns+" FROM apps WHERE key = $1", key)
	return scanApp(row)
}

// List returns every app, ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]App, error) {
	rows, err := r.db.Query(ctx, "SELECT "+selectColumns+" FROM apps ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query apps: %w", err)
	}
	defer rows.Close()

	var apps []App
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate apps: %w", err)
	}
	return apps, nil
}

// Insert creates a new app with a freshly generated key and secret. On the vanishingly unlikely event of a key
// collision it retries once with a new key before giving up.
func (r *PGRepository) Insert(ctx context.Context, name string) (*App, error) {
	for attempt := 0; attempt < 2; attempt++ {
		key := credentials.GenerateKey()
		secret := credentials.GenerateSecret()

		row := r.db.QueryRow(ctx,
			"INSERT INTO apps (name, key, secret) VALUES ($1, $2, $3) RETURNING "+selectColumns,
			name, key, secret,
		)
		a, err := scanApp(row)
		if err == nil {
			return a, nil
		}
		if postgres.IsUniqueViolation(err) {
			r.log.Warn().Str("key", key).Msg("Generated app key collided, retrying")
			continue
		}
		return nil, fmt.Errorf("insert app: %w", err)
	}
	return nil, fmt.Errorf("insert app: exhausted retries generating a unique key")
}

// Delete removes an app by id. It is not an error to delete an id that does not exist.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM apps WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete app: %w", err)
	}
	return nil
}

func scanApp(row pgx.Row) (*App, error) {
	var a App
	if err := row.Scan(&a.ID, &a.Name, &a.Key, &a.Secret); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan app: %w", err)
	}
	return &a, nil
}
