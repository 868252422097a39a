// internal/applications/repository.go
package applications

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

const (
	pairConstraint    = "applications_applicant_opportunity_key"
	receiptConstraint = "applications_mpesa_receipt_key"
)

const applicationColumns = `id, applicant_id, opportunity_id, full_name, email, phone, institution, course,
	year_of_study, cover_letter, documents, status, payment_status, payment_id, mpesa_receipt_number,
	payment_amount, payment_phone, payment_submitted_at, payment_verified_at, rejection_reason,
	reviewed_by, reviewed_at, submitted_at, created_at, updated_at`

// Repository persists applications and their append-only timeline.
type Repository struct {
	q database.Querier
}

func NewRepository(q database.Querier) *Repository {
	return &Repository{q: q}
}

// ExistsForPair is the fast-path duplicate check; the unique constraint decides.
func (r *Repository) ExistsForPair(ctx context.Context, applicantID, opportunityID string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM applications WHERE applicant_id = $1 AND opportunity_id = $2)`,
		applicantID, opportunityID).Scan(&exists)
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("application_exists", err)
	}
	return exists, nil
}

func (r *Repository) Create(ctx context.Context, app *models.Application) error {
	docs, err := json.Marshal(app.Documents)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO applications (id, applicant_id, opportunity_id, full_name, email, phone, institution, course,
			year_of_study, cover_letter, documents, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		app.ID, app.ApplicantID, app.OpportunityID, app.FullName, app.Email, app.Phone, app.Institution,
		app.Course, app.YearOfStudy, app.CoverLetter, docs, string(app.Status), string(app.Payment.Status),
		app.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolationOn(err, pairConstraint) {
			return apperrors.NewDuplicateApplicationError(app.ApplicantID, app.OpportunityID)
		}
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	app.UpdatedAt = app.CreatedAt
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Application, error) {
	return r.getOne(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
}

// GetForUpdate row-locks the application for the enclosing transaction.
func (r *Repository) GetForUpdate(ctx context.Context, id string) (*models.Application, error) {
	return r.getOne(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) getOne(ctx context.Context, query, id string) (*models.Application, error) {
	app, err := scanApplication(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("application", id)
		}
		return nil, apperrors.NewQueryExecutionFailedError("get_application", err)
	}
	return app, nil
}

// ListByApplicant returns the caller's applications, newest first.
func (r *Repository) ListByApplicant(ctx context.Context, applicantID string) ([]models.Application, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE applicant_id = $1 ORDER BY created_at DESC`,
		applicantID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_applications", err)
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("list_applications", err)
		}
		out = append(out, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_applications", err)
	}
	return out, nil
}

// UpdateForm writes the applicant-editable fields and status.
func (r *Repository) UpdateForm(ctx context.Context, app *models.Application) error {
	docs, err := json.Marshal(app.Documents)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE applications SET full_name = $2, email = $3, phone = $4, institution = $5, course = $6,
			year_of_study = $7, cover_letter = $8, documents = $9, status = $10, submitted_at = $11, updated_at = $12
		WHERE id = $1`,
		app.ID, app.FullName, app.Email, app.Phone, app.Institution, app.Course, app.YearOfStudy,
		app.CoverLetter, docs, string(app.Status), app.SubmittedAt, app.UpdatedAt,
	)
	return r.checkUpdated(res, err, app.ID, "update_application_form")
}

// SaveState writes status, payment summary, review fields and submittedAt. Setting a
// receipt already held by another application yields DuplicatePaymentCode.
func (r *Repository) SaveState(ctx context.Context, app *models.Application) error {
	p := app.Payment
	res, err := r.q.ExecContext(ctx, `
		UPDATE applications SET status = $2, payment_status = $3, payment_id = $4, mpesa_receipt_number = $5,
			payment_amount = $6, payment_phone = $7, payment_submitted_at = $8, payment_verified_at = $9,
			rejection_reason = $10, reviewed_by = $11, reviewed_at = $12, submitted_at = $13, updated_at = $14
		WHERE id = $1`,
		app.ID, string(app.Status), string(p.Status), p.PaymentID, p.MpesaReceiptNumber,
		p.Amount, p.Phone, p.SubmittedAt, p.VerifiedAt,
		app.RejectionReason, app.ReviewedBy, app.ReviewedAt, app.SubmittedAt, app.UpdatedAt,
	)
	if err != nil && database.IsUniqueViolationOn(err, receiptConstraint) {
		receipt := ""
		if p.MpesaReceiptNumber != nil {
			receipt = *p.MpesaReceiptNumber
		}
		return apperrors.NewDuplicatePaymentCodeError(receipt)
	}
	return r.checkUpdated(res, err, app.ID, "save_application_state")
}

// ReceiptHolder returns the id of the application holding receipt, if any.
func (r *Repository) ReceiptHolder(ctx context.Context, receipt string) (string, bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx,
		`SELECT id FROM applications WHERE mpesa_receipt_number = $1`, receipt).Scan(&id)
	if err != nil {
		if database.IsNoRows(err) {
			return "", false, nil
		}
		return "", false, apperrors.NewQueryExecutionFailedError("receipt_holder", err)
	}
	return id, true, nil
}

func (r *Repository) checkUpdated(res sql.Result, err error, id, op string) error {
	if err != nil {
		return apperrors.NewQueryExecutionFailedError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError(op, err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError("application", id)
	}
	return nil
}

// AppendTimeline inserts one audit entry. Timeline rows are never updated.
func (r *Repository) AppendTimeline(ctx context.Context, e *models.TimelineEntry) error {
	var actor sql.NullString
	if e.ActorID != "" {
		actor = sql.NullString{String: e.ActorID, Valid: true}
	}
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO application_timeline (application_id, status, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		e.ApplicationID, string(e.Status), actor, e.Note, e.At,
	).Scan(&e.ID)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// Timeline returns entries in insertion order.
func (r *Repository) Timeline(ctx context.Context, applicationID string) ([]models.TimelineEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, application_id, status, actor_id, note, created_at
		FROM application_timeline WHERE application_id = $1 ORDER BY id`, applicationID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("timeline", err)
	}
	defer rows.Close()

	var out []models.TimelineEntry
	for rows.Next() {
		var (
			e      models.TimelineEntry
			status string
			actor  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ApplicationID, &status, &actor, &e.Note, &e.At); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("timeline", err)
		}
		e.Status = models.ApplicationStatus(status)
		e.ActorID = actor.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("timeline", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(s scanner) (*models.Application, error) {
	var (
		app                                   models.Application
		docs                                  []byte
		status, paymentStatus                 string
		paymentID, receipt, payPhone, reason  sql.NullString
		reviewedBy                            sql.NullString
		amount                                sql.NullInt64
		paySubmitted, payVerified, reviewedAt sql.NullTime
		submittedAt                           sql.NullTime
	)
	if err := s.Scan(
		&app.ID, &app.ApplicantID, &app.OpportunityID, &app.FullName, &app.Email, &app.Phone,
		&app.Institution, &app.Course, &app.YearOfStudy, &app.CoverLetter, &docs, &status, &paymentStatus,
		&paymentID, &receipt, &amount, &payPhone, &paySubmitted, &payVerified, &reason,
		&reviewedBy, &reviewedAt, &submittedAt, &app.CreatedAt, &app.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &app.Documents); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
	}
	app.Status = models.ApplicationStatus(status)
	app.Payment = models.PaymentInfo{
		Status:             models.ApplicationPaymentStatus(paymentStatus),
		PaymentID:          strPtr(paymentID),
		MpesaReceiptNumber: strPtr(receipt),
		Phone:              strPtr(payPhone),
		SubmittedAt:        timePtr(paySubmitted),
		VerifiedAt:         timePtr(payVerified),
	}
	if amount.Valid {
		v := amount.Int64
		app.Payment.Amount = &v
	}
	app.RejectionReason = strPtr(reason)
	app.ReviewedBy = strPtr(reviewedBy)
	app.ReviewedAt = timePtr(reviewedAt)
	app.SubmittedAt = timePtr(submittedAt)
	return &app, nil
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}
