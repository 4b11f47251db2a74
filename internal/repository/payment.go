package repository

import (
	"context"

	"github.com/flipwise/flipwise/internal/db"
	"github.com/flipwise/flipwise/internal/model"
	"github.com/jmoiron/sqlx"
)

type PaymentRepository interface {
	// ApplyPaid records the payment in the ledger and grants premium to its
	// user in one transaction. duplicate is true when the invoice was
	// already recorded. ErrUserNotFound rolls the ledger insert back.
	ApplyPaid(ctx context.Context, payment *model.ProcessedPayment) (duplicate bool, err error)
	ByInvoice(ctx context.Context, provider, invoiceID string) (*model.ProcessedPayment, error)
}

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) ApplyPaid(ctx context.Context, p *model.ProcessedPayment) (bool, error) {
	insert := `INSERT INTO processed_payments (id, provider, invoice_id, user_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, invoice_id) DO NOTHING`

	duplicate := false
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		// Setting the flag again on redelivery is harmless. Running it first
		// turns an unknown user into ErrUserNotFound instead of a foreign key
		// failure on the ledger insert.
		err := setPremium(ctx, tx, p.UserID, true)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, insert, p.ID, p.Provider, p.InvoiceID, p.UserID, p.Status, p.CreatedAt)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		duplicate = rows == 0
		return nil
	})
	if err != nil {
		return false, err
	}

	return duplicate, nil
}

func (r *paymentRepository) ByInvoice(ctx context.Context, provider, invoiceID string) (*model.ProcessedPayment, error) {
	p := &model.ProcessedPayment{}
	query := `SELECT id, provider, invoice_id, user_id, status, created_at FROM processed_payments WHERE provider = $1 AND invoice_id = $2`

	err := r.db.GetContext(ctx, p, query, provider, invoiceID)
	if err != nil {
		return nil, err
	}

	return p, nil
}
