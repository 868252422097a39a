// internal/workflow/events.go
package workflow

import (
	"context"
	"time"

	"internship-portal/internal/models"
	"internship-portal/internal/outbox"
	"internship-portal/internal/store"
)

const systemActor = "system"

// enqueue writes a notification event for app inside tx. The opportunity
// title is best effort.
func enqueue(ctx context.Context, tx store.Tx, eventType models.EventType, app *models.Application, p *models.Payment, at time.Time, mutate func(*models.NotificationPayload)) error {
	payload := models.NotificationPayload{
		EventType:         eventType,
		ApplicationID:     app.ID,
		ApplicantID:       app.ApplicantID,
		RecipientName:     app.FullName,
		RecipientEmail:    app.Email,
		RecipientPhone:    app.Phone,
		ApplicationStatus: string(app.Status),
		OccurredAt:        at,
	}
	if opp, err := tx.Opportunities().Get(ctx, app.OpportunityID); err == nil {
		payload.OpportunityTitle = opp.Title
	}
	aggregateType, aggregateID := "application", app.ID
	if p != nil {
		payload.PaymentID = p.ID
		payload.TransactionCode = p.TransactionCode
		payload.Amount = p.Amount
		if p.PhoneNumber != "" {
			payload.RecipientPhone = p.PhoneNumber
		}
		if p.ID != "" {
			aggregateType, aggregateID = "payment", p.ID
		}
	}
	if mutate != nil {
		mutate(&payload)
	}

	e, err := outbox.NewEvent(aggregateType, aggregateID, eventType, payload, at)
	if err != nil {
		return err
	}
	return tx.Outbox().Enqueue(ctx, e)
}

func appendTimeline(ctx context.Context, tx store.Tx, app *models.Application, actor, note string, at time.Time) error {
	return tx.Applications().AppendTimeline(ctx, &models.TimelineEntry{
		ApplicationID: app.ID,
		Status:        app.Status,
		ActorID:       actor,
		Note:          note,
		At:            at,
	})
}

func strRef(s string) *string { return &s }

func timeRef(t time.Time) *time.Time { return &t }
