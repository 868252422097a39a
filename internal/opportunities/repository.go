// internal/opportunities/repository.go
package opportunities

import (
	"context"
	"database/sql"
	"time"

	"internship-portal/internal/common/database"
	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/models"
)

const opportunityColumns = `id, owner_id, title, organization, description, location, deadline, slots,
	slots_available, status, closed_at, created_at, updated_at`

type Repository struct {
	q database.Querier
}

func NewRepository(q database.Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) Create(ctx context.Context, o *models.Opportunity) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO opportunities (id, owner_id, title, organization, description, location, deadline, slots,
			slots_available, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		o.ID, o.OwnerID, o.Title, o.Organization, o.Description, o.Location, o.Deadline, o.Slots,
		o.SlotsAvailable, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	o.UpdatedAt = o.CreatedAt
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Opportunity, error) {
	return r.getOne(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1`, id)
}

// GetForShare loads the opportunity with a shared row lock, which blocks the
// closing UPDATE until the enclosing transaction ends.
func (r *Repository) GetForShare(ctx context.Context, id string) (*models.Opportunity, error) {
	return r.getOne(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1 FOR SHARE`, id)
}

func (r *Repository) getOne(ctx context.Context, query, id string) (*models.Opportunity, error) {
	o, err := scanOpportunity(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("opportunity", id)
		}
		return nil, apperrors.NewQueryExecutionFailedError("get_opportunity", err)
	}
	return o, nil
}

// List returns opportunities ordered by deadline; openOnly hides closed ones.
func (r *Repository) List(ctx context.Context, openOnly bool) ([]models.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities`
	if openOnly {
		query += ` WHERE status = 'open'`
	}
	query += ` ORDER BY deadline ASC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_opportunities", err)
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("list_opportunities", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_opportunities", err)
	}
	return out, nil
}

// ConsumeSlot takes one slot. It fails with OpportunityClosed when none is left.
func (r *Repository) ConsumeSlot(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE opportunities SET slots_available = slots_available - 1, updated_at = $2
		WHERE id = $1 AND slots_available > 0`, id, at)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("consume_slot", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("consume_slot", err)
	}
	if n == 0 {
		return apperrors.NewOpportunityClosedError(id).WithMetadata("reason", "no slots available")
	}
	return nil
}

// CloseExpired closes every open opportunity past its deadline or out of
// slots and returns the ids it closed. Already closed rows are untouched.
func (r *Repository) CloseExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		UPDATE opportunities SET status = 'closed', closed_at = $1, updated_at = $1
		WHERE status = 'open' AND (deadline <= $1 OR slots_available <= 0)
		RETURNING id`, now)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("close_expired_opportunities", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("close_expired_opportunities", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("close_expired_opportunities", err)
	}
	return ids, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOpportunity(s scanner) (*models.Opportunity, error) {
	var (
		o        models.Opportunity
		status   string
		closedAt sql.NullTime
	)
	if err := s.Scan(&o.ID, &o.OwnerID, &o.Title, &o.Organization, &o.Description, &o.Location,
		&o.Deadline, &o.Slots, &o.SlotsAvailable, &status, &closedAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = models.OpportunityStatus(status)
	if closedAt.Valid {
		t := closedAt.Time
		o.ClosedAt = &t
	}
	return &o, nil
}
