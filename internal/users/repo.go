package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const userColumns = `id, email, password_hash, first_name, last_name, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create stores u and fills its id. A taken email is ErrConflict.
func (r *Repo) Create(ctx context.Context, u *User) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		strings.ToLower(u.Email), u.PasswordHash, u.FirstName, u.LastName,
	).Scan(&u.ID, &u.CreatedAt)
	if postgres.IsUniqueViolation(err, "users_email_key") {
		return fmt.Errorf("email %s: %w", u.Email, apperr.ErrConflict)
	}
	return err
}

func (r *Repo) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, apperr.ErrNotFound)
	}
	return u, err
}

func (r *Repo) FindByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, apperr.ErrNotFound)
	}
	return u, err
}

func (r *Repo) Addresses(ctx context.Context, userID int64) ([]Address, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, address_type, street_address, apt_suite, city, state, postal_code, country, is_default, created_at
		FROM addresses WHERE user_id = $1
		ORDER BY is_default DESC, created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Address])
}

// AddAddress stores a; a default address demotes the user's previous default.
func (r *Repo) AddAddress(ctx context.Context, a *Address) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if a.IsDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE addresses SET is_default = false
			WHERE user_id = $1 AND address_type = $2 AND is_default`, a.UserID, a.Type); err != nil {
			return err
		}
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO addresses (user_id, address_type, street_address, apt_suite, city, state, postal_code, country, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		a.UserID, a.Type, a.StreetAddress, a.AptSuite, a.City, a.State, a.PostalCode, a.Country, a.IsDefault,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return tx.Commit(ctx)
}
