// internal/store/store.go

// Package store groups the domain repositories behind one transactional
// boundary so a workflow step can change an application, a payment and the
// outbox atomically.
package store

import (
	"context"
	"database/sql"
	"time"

	"internship-portal/internal/applications"
	"internship-portal/internal/common/database"
	"internship-portal/internal/models"
	"internship-portal/internal/opportunities"
	"internship-portal/internal/outbox"
	"internship-portal/internal/payments"
)

type ApplicationStore interface {
	ExistsForPair(ctx context.Context, applicantID, opportunityID string) (bool, error)
	Create(ctx context.Context, app *models.Application) error
	Get(ctx context.Context, id string) (*models.Application, error)
	GetForUpdate(ctx context.Context, id string) (*models.Application, error)
	ListByApplicant(ctx context.Context, applicantID string) ([]models.Application, error)
	UpdateForm(ctx context.Context, app *models.Application) error
	SaveState(ctx context.Context, app *models.Application) error
	ReceiptHolder(ctx context.Context, receipt string) (string, bool, error)
	AppendTimeline(ctx context.Context, e *models.TimelineEntry) error
	Timeline(ctx context.Context, applicationID string) ([]models.TimelineEntry, error)
}

type PaymentStore interface {
	payments.Lookup
	Insert(ctx context.Context, p *models.Payment) error
	Get(ctx context.Context, id string) (*models.Payment, error)
	GetForUpdate(ctx context.Context, id string) (*models.Payment, error)
	FindByApplication(ctx context.Context, applicationID string) ([]models.Payment, error)
	ListByStatus(ctx context.Context, status models.PaymentRecordStatus, page, limit int) (*models.PaymentPage, error)
	Stats(ctx context.Context) ([]models.PaymentStats, error)
	Transition(ctx context.Context, id string, to models.PaymentRecordStatus, d models.PaymentDecision) (*models.Payment, error)
}

type OpportunityStore interface {
	Create(ctx context.Context, o *models.Opportunity) error
	Get(ctx context.Context, id string) (*models.Opportunity, error)
	GetForShare(ctx context.Context, id string) (*models.Opportunity, error)
	List(ctx context.Context, openOnly bool) ([]models.Opportunity, error)
	ConsumeSlot(ctx context.Context, id string, at time.Time) error
	CloseExpired(ctx context.Context, now time.Time) ([]string, error)
}

type OutboxStore interface {
	Enqueue(ctx context.Context, e *models.OutboxEvent) error
}

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Applications() ApplicationStore
	Payments() PaymentStore
	Opportunities() OpportunityStore
	Outbox() OutboxStore
}

// Store is a Tx outside any transaction plus the ability to open one. fn
// must not call back into the non-transactional accessors.
type Store interface {
	Tx
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Postgres is the production Store.
type Postgres struct {
	db *sql.DB
	querierTx
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, querierTx: querierTx{q: db}}
}

// RunInTx commits when fn returns nil and rolls back otherwise.
func (p *Postgres) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		return fn(querierTx{q: tx})
	})
}

type querierTx struct {
	q database.Querier
}

func (t querierTx) Applications() ApplicationStore { return applications.NewRepository(t.q) }
func (t querierTx) Payments() PaymentStore { return payments.NewLedger(t.q) }
func (t querierTx) Opportunities() OpportunityStore { return opportunities.NewRepository(t.q) }
func (t querierTx) Outbox() OutboxStore { return outbox.NewStore(t.q) }
