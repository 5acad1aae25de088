package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mrkeshav-05/learning-backend/auth"
)

// Directory persists identities in the users table. Refresh slot writes are
// single-column UPDATE statements.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

const identityColumns = `id, username, email, full_name, password_hash, COALESCE(refresh_token, ''), created_at, updated_at`

func (d *Directory) FindByID(ctx context.Context, id string) (auth.Identity, error) {
	if id == "" {
		return auth.Identity{}, auth.ErrNotFound
	}
	row := d.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM users WHERE id = $1`, id)
	return scanIdentity(row)
}

// FindByUsernameOrEmail prefers a username match when both arguments match
// different rows.
func (d *Directory) FindByUsernameOrEmail(ctx context.Context, username, email string) (auth.Identity, error) {
	username = auth.NormalizeHandle(username)
	email = auth.NormalizeHandle(email)
	if username == "" && email == "" {
		return auth.Identity{}, auth.ErrNotFound
	}
	const query = `SELECT ` + identityColumns + ` FROM users
                   WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
                   ORDER BY (username = $1) DESC
                   LIMIT 1`
	return scanIdentity(d.db.QueryRowContext(ctx, query, username, email))
}

func (d *Directory) Create(ctx context.Context, identity auth.Identity) (auth.Identity, error) {
	identity.Username = auth.NormalizeHandle(identity.Username)
	identity.Email = auth.NormalizeHandle(identity.Email)
	if identity.Username == "" || identity.Email == "" {
		return auth.Identity{}, &auth.ValidationError{Msg: "username and email are required"}
	}
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	identity.CurrentRefreshToken = ""

	const query = `INSERT INTO users (id, username, email, full_name, password_hash)
                   VALUES ($1, $2, $3, $4, $5)
                   RETURNING created_at, updated_at`
	err := d.db.QueryRowContext(ctx, query,
		identity.ID, identity.Username, identity.Email, identity.FullName, identity.PasswordHash,
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		return auth.Identity{}, translateError(err)
	}
	identity.CreatedAt = identity.CreatedAt.UTC()
	identity.UpdatedAt = identity.UpdatedAt.UTC()
	return identity, nil
}

func (d *Directory) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return d.execOne(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
}

func (d *Directory) UpdateRefreshToken(ctx context.Context, id, token string) error {
	return d.execOne(ctx, `UPDATE users SET refresh_token = NULLIF($2, '') WHERE id = $1`, id, token)
}

func (d *Directory) SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	if id == "" || current == "" || next == "" {
		return false, nil
	}
	res, err := d.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $3 WHERE id = $1 AND refresh_token = $2`,
		id, current, next,
	)
	if err != nil {
		if errors.Is(translateError(err), auth.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("postgres: swap refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: swap refresh token: %w", err)
	}
	return affected == 1, nil
}

func (d *Directory) execOne(ctx context.Context, query string, id, arg string) error {
	if id == "" {
		return auth.ErrNotFound
	}
	res, err := d.db.ExecContext(ctx, query, id, arg)
	if err != nil {
		return translateError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (auth.Identity, error) {
	var identity auth.Identity
	err := row.Scan(
		&identity.ID,
		&identity.Username,
		&identity.Email,
		&identity.FullName,
		&identity.PasswordHash,
		&identity.CurrentRefreshToken,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Identity{}, auth.ErrNotFound
		}
		return auth.Identity{}, translateError(err)
	}
	identity.CreatedAt = identity.CreatedAt.UTC()
	identity.UpdatedAt = identity.UpdatedAt.UTC()
	return identity, nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", auth.ErrConflict, pqErr.Constraint)
		case "22P02":
			// invalid_text_representation: the id is not a UUID, so no row can match.
			return auth.ErrNotFound
		}
	}
	return err
}
