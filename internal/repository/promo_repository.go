package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/imagine-it/storefront/internal/models"
)

// PromoRepository stores promo codes and who redeemed them.
type PromoRepository struct {
	db *sql.DB
}

func NewPromoRepository(db *sql.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

const selectPromo = `SELECT id, code, max_uses, uses, created_at FROM promo_codes`

func scanPromo(row rowScanner) (*models.PromoCode, error) {
	p := new(models.PromoCode)
	if err := row.Scan(&p.ID, &p.Code, &p.MaxUses, &p.Uses, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PromoRepository) GetByID(ctx context.Context, id int64) (*models.PromoCode, error) {
	promo, err := scanPromo(r.db.QueryRowContext(ctx, selectPromo+` WHERE id = ?`, id))
	if err != nil {
		return nil, lookupErr("promo by id", err)
	}
	return promo, nil
}

// List returns the newest codes first.
func (r *PromoRepository) List(ctx context.Context) ([]models.PromoCode, error) {
	rows, err := r.db.QueryContext(ctx, selectPromo+` ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	return collect(rows, scanPromo)
}

func (r *PromoRepository) Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO promo_codes (code, max_uses) VALUES (?, ?)`, promo.Code, promo.MaxUses)
	if err != nil {
		return nil, fmt.Errorf("insert promo %q: %w", promo.Code, err)
	}
	id, err := insertedID(res)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *PromoRepository) Update(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	if _, err := r.db.ExecContext(ctx, `UPDATE promo_codes SET code = ?, max_uses = ?, uses = ? WHERE id = ?`, promo.Code, promo.MaxUses, promo.Uses, promo.ID); err != nil {
		return nil, fmt.Errorf("update promo %d: %w", promo.ID, err)
	}
	return r.GetByID(ctx, promo.ID)
}

func (r *PromoRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM promo_codes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete promo %d: %w", id, err)
	}
	return requireRow(res, ErrNotFound)
}

// Redeem records a redemption of code by userID and adds bonus credits while
// holding a row lock on the code. It returns the new balance.
func (r *PromoRepository) Redeem(ctx context.Context, userID, code string, bonus int) (int, error) {
	var balance int
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		var promoID int64
		var uses, maxUses int
		err := tx.QueryRowContext(ctx, `SELECT id, uses, max_uses FROM promo_codes WHERE code = ? FOR UPDATE`, code).Scan(&promoID, &uses, &maxUses)
		if err != nil {
			return lookupErr("lock promo", err)
		}
		if uses >= maxUses {
			return ErrPromoExhausted
		}

		var seen int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM promo_redemptions WHERE user_id = ? AND promo_code_id = ?`, userID, promoID).Scan(&seen)
		if err == nil {
			return ErrAlreadyRedeemed
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check redemption: %w", err)
		}

		res, err := tx.ExecContext(ctx, addCreditsSQL, bonus, userID)
		if err != nil {
			return fmt.Errorf("add promo credits: %w", err)
		}
		if err := requireRow(res, ErrNoProfile); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO promo_redemptions (user_id, promo_code_id) VALUES (?, ?)`, userID, promoID); err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE promo_codes SET uses = uses + 1 WHERE id = ?`, promoID); err != nil {
			return fmt.Errorf("count promo use: %w", err)
		}
		return tx.QueryRowContext(ctx, `SELECT credits FROM profiles WHERE id = ?`, userID).Scan(&balance)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}
