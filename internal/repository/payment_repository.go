package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/imagine-it/storefront/internal/models"
)

// PaymentRepository records credit pack purchases.
type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const addCreditsSQL = `UPDATE profiles SET credits = COALESCE(credits, 0) + ?, updated_at = NOW() WHERE id = ?`

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (user_id, plan_id, provider, provider_payment_charge_id, currency, amount, status, raw_payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.PlanID, p.Provider, p.ProviderCharge, p.Currency, p.Amount, p.Status, p.RawPayload)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	p.ID, err = insertedID(res)
	return err
}

// UpdateStatus never touches a payment that is already paid.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, paymentID int64, status string, payload string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ?, raw_payload = ?, updated_at = NOW() WHERE id = ? AND status <> ?`,
		status, payload, paymentID, models.PaymentPaid)
	if err != nil {
		return fmt.Errorf("update payment %d: %w", paymentID, err)
	}
	return nil
}

func (r *PaymentRepository) FindByProviderCharge(ctx context.Context, provider, chargeID string) (*models.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, plan_id, provider, provider_payment_charge_id, currency, amount, status, COALESCE(raw_payload, ''), created_at, updated_at
FROM payments WHERE provider = ? AND provider_payment_charge_id = ?`, provider, chargeID)

	p := new(models.Payment)
	var planID sql.NullInt64
	if err := row.Scan(&p.ID, &p.UserID, &planID, &p.Provider, &p.ProviderCharge, &p.Currency, &p.Amount, &p.Status, &p.RawPayload, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, lookupErr("payment by charge", err)
	}
	if planID.Valid {
		p.PlanID = &planID.Int64
	}
	return p, nil
}

// MarkPaidAndCredit flips the payment to paid and adds credits to its owner in
// one transaction. It returns false when the payment was already paid, in
// which case nothing is written.
func (r *PaymentRepository) MarkPaidAndCredit(ctx context.Context, paymentID int64, credits int, payload string) (bool, error) {
	applied := false
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		var userID, status string
		err := tx.QueryRowContext(ctx, `SELECT user_id, status FROM payments WHERE id = ? FOR UPDATE`, paymentID).Scan(&userID, &status)
		if err != nil {
			return lookupErr("lock payment", err)
		}
		if status == models.PaymentPaid {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE payments SET status = ?, raw_payload = ?, updated_at = NOW() WHERE id = ?`, models.PaymentPaid, payload, paymentID); err != nil {
			return fmt.Errorf("mark payment paid: %w", err)
		}
		res, err := tx.ExecContext(ctx, addCreditsSQL, credits, userID)
		if err != nil {
			return fmt.Errorf("credit purchase: %w", err)
		}
		if err := requireRow(res, ErrNoProfile); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
