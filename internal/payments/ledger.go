// internal/payments/ledger.go
package payments

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"internship-portal/internal/common/database"
	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/models"
)

const transactionCodeConstraint = "payments_transaction_code_key"

const paymentColumns = `id, application_id, user_id, amount, transaction_code, phone_number, status, source,
	warnings, verified_by, verified_at, verification_notes, rejection_reason, rejected_by, rejected_at,
	created_at, updated_at`

// Ledger is the Postgres store of payment attempts. Rows are inserted as
// pending and moved at most once to a terminal status. Nothing is deleted.
type Ledger struct {
	q database.Querier
}

// NewLedger binds the ledger to a *sql.DB or a *sql.Tx.
func NewLedger(q database.Querier) *Ledger {
	return &Ledger{q: q}
}

// Insert stores p as a new pending attempt. A collision on the transaction
// code constraint is reported as DuplicateTransactionCode.
func (l *Ledger) Insert(ctx context.Context, p *models.Payment) error {
	warnings, err := json.Marshal(nonNil(p.Warnings))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if p.Source == "" {
		p.Source = models.SourceManual
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Status = models.PaymentRecordPending

	row := l.q.QueryRowContext(ctx, `
		INSERT INTO payments (id, application_id, user_id, amount, transaction_code, phone_number, status, source, warnings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING created_at, updated_at`,
		p.ID, p.ApplicationID, p.UserID, p.Amount, p.TransactionCode, p.PhoneNumber,
		string(p.Status), string(p.Source), warnings, p.CreatedAt,
	)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		if database.IsUniqueViolationOn(err, transactionCodeConstraint) {
			return apperrors.NewDuplicateTransactionCodeError(p.TransactionCode, "unknown")
		}
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// Get loads a payment by id.
func (l *Ledger) Get(ctx context.Context, id string) (*models.Payment, error) {
	return l.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetForUpdate loads a payment and row-locks it for the enclosing transaction.
func (l *Ledger) GetForUpdate(ctx context.Context, id string) (*models.Payment, error) {
	return l.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

func (l *Ledger) getOne(ctx context.Context, query, id string) (*models.Payment, error) {
	p, err := scanPayment(l.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("payment", id)
		}
		return nil, apperrors.NewQueryExecutionFailedError("get_payment", err)
	}
	return p, nil
}

// FindByCode returns the attempt holding code in any status.
func (l *Ledger) FindByCode(ctx context.Context, code string) (*models.Payment, bool, error) {
	p, err := scanPayment(l.q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_code = $1`, code))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, false, nil
		}
		return nil, false, apperrors.NewQueryExecutionFailedError("find_payment_by_code", err)
	}
	return p, true, nil
}

// FindByApplication returns every attempt for an application, newest first.
func (l *Ledger) FindByApplication(ctx context.Context, applicationID string) ([]models.Payment, error) {
	return l.list(ctx, "find_payments_by_application",
		`SELECT `+paymentColumns+` FROM payments WHERE application_id = $1 ORDER BY created_at DESC, id`,
		applicationID)
}

// FindRecentByPhoneAmount returns attempts with the same phone and amount created after since.
func (l *Ledger) FindRecentByPhoneAmount(ctx context.Context, phone string, amount int64, since time.Time) ([]models.Payment, error) {
	return l.list(ctx, "find_recent_payments",
		`SELECT `+paymentColumns+` FROM payments
		 WHERE phone_number = $1 AND amount = $2 AND created_at >= $3
		 ORDER BY created_at DESC`,
		phone, amount, since)
}

// ListByStatus returns one page of attempts in status, oldest first so the
// review queue is worked in submission order.
func (l *Ledger) ListByStatus(ctx context.Context, status models.PaymentRecordStatus, page, limit int) (*models.PaymentPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := l.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE status = $1`, string(status)).Scan(&total); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count_payments", err)
	}

	items, err := l.list(ctx, "list_payments",
		`SELECT `+paymentColumns+` FROM payments WHERE status = $1
		 ORDER BY created_at ASC, id LIMIT $2 OFFSET $3`,
		string(status), limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &models.PaymentPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Stats aggregates counts and sums grouped by status.
func (l *Ledger) Stats(ctx context.Context) ([]models.PaymentStats, error) {
	rows, err := l.q.QueryContext(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(amount), 0) FROM payments GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("payment_stats", err)
	}
	defer rows.Close()

	var out []models.PaymentStats
	for rows.Next() {
		var s models.PaymentStats
		var status string
		if err := rows.Scan(&status, &s.Count, &s.TotalAmount); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("payment_stats", err)
		}
		s.Status = models.PaymentRecordStatus(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("payment_stats", err)
	}
	return out, nil
}

// Transition moves a pending attempt to a terminal status. The update is
// conditional on status = 'pending'; when it matches nothing the current
// status is reported as PaymentAlreadyProcessed.
func (l *Ledger) Transition(ctx context.Context, id string, to models.PaymentRecordStatus, d models.PaymentDecision) (*models.Payment, error) {
	var set string
	switch to {
	case models.PaymentRecordVerified:
		set = `verified_by = $3, verified_at = $4, verification_notes = NULLIF($5, '')`
	case models.PaymentRecordRejected, models.PaymentRecordDuplicate:
		set = `rejected_by = $3, rejected_at = $4, rejection_reason = NULLIF($5, '')`
	default:
		return nil, apperrors.NewInvalidTransitionError(string(models.PaymentRecordPending), string(to))
	}

	text := d.Notes
	if to != models.PaymentRecordVerified {
		text = d.Reason
	}

	p, err := scanPayment(l.q.QueryRowContext(ctx, `
		UPDATE payments SET status = $2, `+set+`, updated_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+paymentColumns,
		id, string(to), nullString(d.ActorID), d.At, text,
	))
	if err == nil {
		return p, nil
	}
	if !database.IsNoRows(err) {
		return nil, apperrors.NewQueryExecutionFailedError("transition_payment", err)
	}

	current, getErr := l.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.NewPaymentAlreadyProcessedError(id, string(current.Status))
}

func (l *Ledger) list(ctx context.Context, op, query string, args ...interface{}) ([]models.Payment, error) {
	rows, err := l.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(op, err)
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError(op, err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(op, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(s scanner) (*models.Payment, error) {
	var (
		p                                     models.Payment
		status, source                        string
		warnings                              []byte
		verifiedBy, notes, reason, rejectedBy sql.NullString
		verifiedAt, rejectedAt                sql.NullTime
	)
	if err := s.Scan(
		&p.ID, &p.ApplicationID, &p.UserID, &p.Amount, &p.TransactionCode, &p.PhoneNumber,
		&status, &source, &warnings, &verifiedBy, &verifiedAt, &notes, &reason, &rejectedBy, &rejectedAt,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = models.PaymentRecordStatus(status)
	p.Source = models.PaymentSource(source)
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &p.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	p.VerifiedBy = stringPtr(verifiedBy)
	p.VerifiedAt = timePtr(verifiedAt)
	p.VerificationNotes = stringPtr(notes)
	p.RejectionReason = stringPtr(reason)
	p.RejectedBy = stringPtr(rejectedBy)
	p.RejectedAt = timePtr(rejectedAt)
	return &p, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
