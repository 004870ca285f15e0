package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/imagine-it/storefront/internal/models"
)

var errNotCovered = errors.New("balance does not cover debit")

// ProfileRepository owns the profiles table and is the credit ledger the
// generation gate debits against.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	const query = `
SELECT id, COALESCE(email, ''), COALESCE(display_name, ''), credits, created_at, updated_at
FROM profiles WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)
	var p models.Profile
	var credits sql.NullInt64
	if err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &credits, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, lookupErr("get profile", err)
	}
	if credits.Valid {
		c := int(credits.Int64)
		p.Credits = &c
	}
	return &p, nil
}

// Ensure creates the profile with the signup credits, or refreshes the
// contact fields of an existing one. A profile whose balance was never set
// gets the signup credits too. The boolean reports whether a row was created.
func (r *ProfileRepository) Ensure(ctx context.Context, userID, email, displayName string, signupCredits int) (*models.Profile, bool, error) {
	const insert = `
INSERT INTO profiles (id, email, display_name, credits)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?)
ON DUPLICATE KEY UPDATE
    email = COALESCE(VALUES(email), email),
    display_name = COALESCE(VALUES(display_name), display_name),
    credits = COALESCE(credits, VALUES(credits)),
    updated_at = NOW()`
	res, err := r.db.ExecContext(ctx, insert, userID, email, displayName, signupCredits)
	if err != nil {
		return nil, false, fmt.Errorf("ensure profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("profile rows affected: %w", err)
	}
	profile, err := r.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	// MySQL reports 1 for an insert and 2 for an update of an existing row.
	return profile, affected == 1, nil
}

// Balance returns nil when the profile does not exist or has no balance yet.
func (r *ProfileRepository) Balance(ctx context.Context, userID string) (*int, error) {
	const query = `SELECT credits FROM profiles WHERE id = ?`
	var credits sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&credits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read balance: %w", err)
	}
	if !credits.Valid {
		return nil, nil
	}
	c := int(credits.Int64)
	return &c, nil
}

// Debit subtracts amount only if the balance covers it. The conditional
// update is the only write; ok is false when it matched no row.
func (r *ProfileRepository) Debit(ctx context.Context, userID string, amount int) (int, bool, error) {
	const query = `
UPDATE profiles SET credits = credits - ?, updated_at = NOW()
WHERE id = ? AND credits >= ?`

	var remaining int
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, amount, userID, amount)
		if err != nil {
			return fmt.Errorf("debit credits: %w", err)
		}
		if err := requireRow(res, errNotCovered); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT credits FROM profiles WHERE id = ?`, userID).Scan(&remaining)
	})
	if errors.Is(err, errNotCovered) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return remaining, true, nil
}

// AddCredits applies delta to the balance, initializing a NULL balance and
// clamping at zero.
func (r *ProfileRepository) AddCredits(ctx context.Context, userID string, delta int) error {
	const query = `
UPDATE profiles SET credits = GREATEST(COALESCE(credits, 0) + ?, 0), updated_at = NOW()
WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	return requireRow(res, ErrNotFound)
}
