package db

import (
	"context"
	"log/slog"
	"time"

	"blueprint/internal/types"
)

// AppliedPaymentRepo records which payment references have been credited.
// The table's primary key on payment_ref makes Record insert-once: a second
// confirmation for the same reference (client verify racing the gateway
// webhook, or webhook redelivery) matches the conflict clause and reports
// applied=false with no side effects.
type AppliedPaymentRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewAppliedPaymentRepo creates an AppliedPaymentRepo backed by the given
// database connection (pool or transaction).
func NewAppliedPaymentRepo(db DBTX, logger *slog.Logger) *AppliedPaymentRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppliedPaymentRepo{db: db, logger: logger}
}

// Record claims the payment reference. Returns true if this call claimed it,
// false if it was already claimed.
func (r *AppliedPaymentRepo) Record(ctx context.Context, paymentRef, accountID string, plan types.PlanTier) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO applied_payments (payment_ref, account_id, plan, applied_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (payment_ref) DO NOTHING`,
		paymentRef,
		accountID,
		plan,
		time.Now().UTC(),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to record applied payment", err)
	}

	applied := tag.RowsAffected() > 0
	if !applied {
		r.logger.InfoContext(ctx, "payment reference already applied",
			"payment_ref", paymentRef,
			"account_id", accountID,
		)
	}
	return applied, nil
}
