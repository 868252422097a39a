// internal/store/memstore/memstore.go

// Package memstore is an in-memory store.Store for tests. Transactions are
// serialized by one mutex and rolled back by restoring a snapshot, and the
// same unique constraints as the SQL schema are enforced.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/models"
	"internship-portal/internal/store"
)

type state struct {
	apps       map[string]models.Application
	timeline   []models.TimelineEntry
	timelineID int64
	payments   map[string]models.Payment
	opps       map[string]models.Opportunity
	outbox     []models.OutboxEvent
}

func newState() *state {
	return &state{
		apps:     map[string]models.Application{},
		payments: map[string]models.Payment{},
		opps:     map[string]models.Opportunity{},
	}
}

func (s *state) clone() *state {
	c := &state{
		apps:       make(map[string]models.Application, len(s.apps)),
		timeline:   append([]models.TimelineEntry(nil), s.timeline...),
		timelineID: s.timelineID,
		payments:   make(map[string]models.Payment, len(s.payments)),
		opps:       make(map[string]models.Opportunity, len(s.opps)),
		outbox:     append([]models.OutboxEvent(nil), s.outbox...),
	}
	for k, v := range s.apps {
		c.apps[k] = v
	}
	for k, v := range s.payments {
		v.Warnings = append([]string(nil), v.Warnings...)
		c.payments[k] = v
	}
	for k, v := range s.opps {
		c.opps[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state

	// FailNextCommit makes the next RunInTx roll back with this error after
	// fn succeeds. Tests use it to simulate a lost commit.
	FailNextCommit error
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err == nil && s.FailNextCommit != nil {
			err, s.FailNextCommit = s.FailNextCommit, nil
		}
		if err != nil {
			s.st = snapshot
		}
	}()
	return fn(&view{s: s})
}

func (s *Store) Applications() store.ApplicationStore { return &apps{v: &view{s: s, auto: true}} }
func (s *Store) Payments() store.PaymentStore { return &pays{v: &view{s: s, auto: true}} }
func (s *Store) Opportunities() store.OpportunityStore { return &opps{v: &view{s: s, auto: true}} }
func (s *Store) Outbox() store.OutboxStore { return &events{v: &view{s: s, auto: true}} }

// Events returns a copy of every enqueued outbox event in order.
func (s *Store) Events() []models.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OutboxEvent(nil), s.st.outbox...)
}

// PutOpportunity seeds an opportunity directly.
func (s *Store) PutOpportunity(o models.Opportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.opps[o.ID] = o
}

// PutApplication seeds an application in any state.
func (s *Store) PutApplication(app models.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app.Timeline = nil
	s.st.apps[app.ID] = app
}

// PutPayment seeds a payment directly, bypassing the pending-only insert.
func (s *Store) PutPayment(p models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.payments[p.ID] = p
}

// view is the Tx handed to fn. Outside a transaction (auto) each call takes
// the store mutex itself.
type view struct {
	s    *Store
	auto bool
}

func (v *view) enter() func() {
	if !v.auto {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

func (v *view) Applications() store.ApplicationStore { return &apps{v: v} }
func (v *view) Payments() store.PaymentStore { return &pays{v: v} }
func (v *view) Opportunities() store.OpportunityStore { return &opps{v: v} }
func (v *view) Outbox() store.OutboxStore { return &events{v: v} }

// ==========================
// Applications
// ==========================

type apps struct{ v *view }

func (a *apps) ExistsForPair(ctx context.Context, applicantID, opportunityID string) (bool, error) {
	defer a.v.enter()()
	for _, app := range a.v.s.st.apps {
		if app.ApplicantID == applicantID && app.OpportunityID == opportunityID {
			return true, nil
		}
	}
	return false, nil
}

func (a *apps) Create(ctx context.Context, app *models.Application) error {
	defer a.v.enter()()
	st := a.v.s.st
	if _, ok := st.apps[app.ID]; ok {
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("application %s already exists", app.ID))
	}
	for _, other := range st.apps {
		if other.ApplicantID == app.ApplicantID && other.OpportunityID == app.OpportunityID {
			return apperrors.NewDuplicateApplicationError(app.ApplicantID, app.OpportunityID)
		}
	}
	app.UpdatedAt = app.CreatedAt
	stored := *app
	stored.Timeline = nil
	st.apps[app.ID] = stored
	return nil
}

func (a *apps) Get(ctx context.Context, id string) (*models.Application, error) {
	defer a.v.enter()()
	app, ok := a.v.s.st.apps[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("application", id)
	}
	return &app, nil
}

func (a *apps) GetForUpdate(ctx context.Context, id string) (*models.Application, error) {
	return a.Get(ctx, id)
}

func (a *apps) ListByApplicant(ctx context.Context, applicantID string) ([]models.Application, error) {
	defer a.v.enter()()
	var out []models.Application
	for _, app := range a.v.s.st.apps {
		if app.ApplicantID == applicantID {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (a *apps) UpdateForm(ctx context.Context, app *models.Application) error {
	defer a.v.enter()()
	cur, ok := a.v.s.st.apps[app.ID]
	if !ok {
		return apperrors.NewNotFoundError("application", app.ID)
	}
	cur.FullName, cur.Email, cur.Phone = app.FullName, app.Email, app.Phone
	cur.Institution, cur.Course, cur.YearOfStudy = app.Institution, app.Course, app.YearOfStudy
	cur.CoverLetter, cur.Documents = app.CoverLetter, app.Documents
	cur.Status, cur.SubmittedAt, cur.UpdatedAt = app.Status, app.SubmittedAt, app.UpdatedAt
	a.v.s.st.apps[app.ID] = cur
	return nil
}

func (a *apps) SaveState(ctx context.Context, app *models.Application) error {
	defer a.v.enter()()
	st := a.v.s.st
	cur, ok := st.apps[app.ID]
	if !ok {
		return apperrors.NewNotFoundError("application", app.ID)
	}
	if r := app.Payment.MpesaReceiptNumber; r != nil {
		for id, other := range st.apps {
			if id != app.ID && other.Payment.MpesaReceiptNumber != nil && *other.Payment.MpesaReceiptNumber == *r {
				return apperrors.NewDuplicatePaymentCodeError(*r)
			}
		}
	}
	cur.Status, cur.Payment = app.Status, app.Payment
	cur.RejectionReason, cur.ReviewedBy, cur.ReviewedAt = app.RejectionReason, app.ReviewedBy, app.ReviewedAt
	cur.SubmittedAt, cur.UpdatedAt = app.SubmittedAt, app.UpdatedAt
	st.apps[app.ID] = cur
	return nil
}

func (a *apps) ReceiptHolder(ctx context.Context, receipt string) (string, bool, error) {
	defer a.v.enter()()
	for id, app := range a.v.s.st.apps {
		if app.Payment.MpesaReceiptNumber != nil && *app.Payment.MpesaReceiptNumber == receipt {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (a *apps) AppendTimeline(ctx context.Context, e *models.TimelineEntry) error {
	defer a.v.enter()()
	st := a.v.s.st
	st.timelineID++
	e.ID = st.timelineID
	st.timeline = append(st.timeline, *e)
	return nil
}

func (a *apps) Timeline(ctx context.Context, applicationID string) ([]models.TimelineEntry, error) {
	defer a.v.enter()()
	var out []models.TimelineEntry
	for _, e := range a.v.s.st.timeline {
		if e.ApplicationID == applicationID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ==========================
// Payments
// ==========================

type pays struct{ v *view }

func copyPayment(p models.Payment) *models.Payment {
	p.Warnings = append([]string(nil), p.Warnings...)
	return &p
}

func (p *pays) Insert(ctx context.Context, pay *models.Payment) error {
	defer p.v.enter()()
	st := p.v.s.st
	for _, other := range st.payments {
		if other.TransactionCode == pay.TransactionCode {
			return apperrors.NewDuplicateTransactionCodeError(pay.TransactionCode, "unknown")
		}
	}
	if pay.Source == "" {
		pay.Source = models.SourceManual
	}
	if pay.CreatedAt.IsZero() {
		pay.CreatedAt = time.Now().UTC()
	}
	pay.Status = models.PaymentRecordPending
	pay.UpdatedAt = pay.CreatedAt
	st.payments[pay.ID] = *copyPayment(*pay)
	return nil
}

func (p *pays) Get(ctx context.Context, id string) (*models.Payment, error) {
	defer p.v.enter()()
	pay, ok := p.v.s.st.payments[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("payment", id)
	}
	return copyPayment(pay), nil
}

func (p *pays) GetForUpdate(ctx context.Context, id string) (*models.Payment, error) {
	return p.Get(ctx, id)
}

func (p *pays) FindByCode(ctx context.Context, code string) (*models.Payment, bool, error) {
	defer p.v.enter()()
	for _, pay := range p.v.s.st.payments {
		if pay.TransactionCode == code {
			return copyPayment(pay), true, nil
		}
	}
	return nil, false, nil
}

func (p *pays) filter(keep func(models.Payment) bool) []models.Payment {
	var out []models.Payment
	for _, pay := range p.v.s.st.payments {
		if keep(pay) {
			out = append(out, *copyPayment(pay))
		}
	}
	return out
}

func (p *pays) FindByApplication(ctx context.Context, applicationID string) ([]models.Payment, error) {
	defer p.v.enter()()
	out := p.filter(func(pay models.Payment) bool { return pay.ApplicationID == applicationID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (p *pays) FindRecentByPhoneAmount(ctx context.Context, phone string, amount int64, since time.Time) ([]models.Payment, error) {
	defer p.v.enter()()
	out := p.filter(func(pay models.Payment) bool {
		return pay.PhoneNumber == phone && pay.Amount == amount && !pay.CreatedAt.Before(since)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (p *pays) ListByStatus(ctx context.Context, status models.PaymentRecordStatus, page, limit int) (*models.PaymentPage, error) {
	defer p.v.enter()()
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	all := p.filter(func(pay models.Payment) bool { return pay.Status == status })
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return &models.PaymentPage{Items: all[start:end], Total: int64(len(all)), Page: page, Limit: limit}, nil
}

func (p *pays) Stats(ctx context.Context) ([]models.PaymentStats, error) {
	defer p.v.enter()()
	agg := map[models.PaymentRecordStatus]*models.PaymentStats{}
	for _, pay := range p.v.s.st.payments {
		s, ok := agg[pay.Status]
		if !ok {
			s = &models.PaymentStats{Status: pay.Status}
			agg[pay.Status] = s
		}
		s.Count++
		s.TotalAmount += pay.Amount
	}
	out := make([]models.PaymentStats, 0, len(agg))
	for _, s := range agg {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

func (p *pays) Transition(ctx context.Context, id string, to models.PaymentRecordStatus, d models.PaymentDecision) (*models.Payment, error) {
	defer p.v.enter()()
	if to == models.PaymentRecordPending {
		return nil, apperrors.NewInvalidTransitionError(string(models.PaymentRecordPending), string(to))
	}
	st := p.v.s.st
	pay, ok := st.payments[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("payment", id)
	}
	if pay.Status != models.PaymentRecordPending {
		return nil, apperrors.NewPaymentAlreadyProcessedError(id, string(pay.Status))
	}

	at := d.At
	var actor *string
	if d.ActorID != "" {
		a := d.ActorID
		actor = &a
	}
	pay.Status = to
	pay.UpdatedAt = at
	if to == models.PaymentRecordVerified {
		pay.VerifiedBy, pay.VerifiedAt = actor, &at
		if d.Notes != "" {
			n := d.Notes
			pay.VerificationNotes = &n
		}
	} else {
		pay.RejectedBy, pay.RejectedAt = actor, &at
		if d.Reason != "" {
			r := d.Reason
			pay.RejectionReason = &r
		}
	}
	st.payments[id] = pay
	return copyPayment(pay), nil
}

// ==========================
// Opportunities
// ==========================

type opps struct{ v *view }

func (o *opps) Create(ctx context.Context, opp *models.Opportunity) error {
	defer o.v.enter()()
	opp.UpdatedAt = opp.CreatedAt
	o.v.s.st.opps[opp.ID] = *opp
	return nil
}

func (o *opps) Get(ctx context.Context, id string) (*models.Opportunity, error) {
	defer o.v.enter()()
	opp, ok := o.v.s.st.opps[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("opportunity", id)
	}
	return &opp, nil
}

func (o *opps) GetForShare(ctx context.Context, id string) (*models.Opportunity, error) {
	return o.Get(ctx, id)
}

func (o *opps) List(ctx context.Context, openOnly bool) ([]models.Opportunity, error) {
	defer o.v.enter()()
	var out []models.Opportunity
	for _, opp := range o.v.s.st.opps {
		if openOnly && opp.Status != models.OpportunityOpen {
			continue
		}
		out = append(out, opp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (o *opps) ConsumeSlot(ctx context.Context, id string, at time.Time) error {
	defer o.v.enter()()
	opp, ok := o.v.s.st.opps[id]
	if !ok || opp.SlotsAvailable <= 0 {
		return apperrors.NewOpportunityClosedError(id).WithMetadata("reason", "no slots available")
	}
	opp.SlotsAvailable--
	opp.UpdatedAt = at
	o.v.s.st.opps[id] = opp
	return nil
}

func (o *opps) CloseExpired(ctx context.Context, now time.Time) ([]string, error) {
	defer o.v.enter()()
	var ids []string
	for id, opp := range o.v.s.st.opps {
		if opp.Status != models.OpportunityOpen {
			continue
		}
		if !opp.Deadline.After(now) || opp.SlotsAvailable <= 0 {
			closedAt := now
			opp.Status = models.OpportunityClosed
			opp.ClosedAt = &closedAt
			opp.UpdatedAt = now
			o.v.s.st.opps[id] = opp
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ==========================
// Outbox
// ==========================

type events struct{ v *view }

func (e *events) Enqueue(ctx context.Context, ev *models.OutboxEvent) error {
	defer e.v.enter()()
	e.v.s.st.outbox = append(e.v.s.st.outbox, *ev)
	return nil
}
