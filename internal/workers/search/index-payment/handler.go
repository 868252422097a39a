// internal/workers/search/index-payment/handler.go
package indexpayment

import (
	"context"
	"encoding/json"
	"time"

	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/common/metrics"
	"internship-portal/internal/models"
	"internship-portal/internal/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "index-payment"

type PaymentReader interface {
	Get(ctx context.Context, id string) (*models.Payment, error)
}

type Indexer interface {
	Upsert(ctx context.Context, doc search.PaymentDocument) error
}

type Output struct {
	Indexed   bool   `json:"indexed"`
	PaymentID string `json:"paymentId,omitempty"`
}

// Handler mirrors the current state of a payment into the search index
// whenever a payment event is published.
type Handler struct {
	payments   PaymentReader
	index      Indexer
	timeout    time.Duration
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
}

func NewHandler(payments PaymentReader, index Indexer, timeout time.Duration, log logger.Logger) *Handler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		payments:   payments,
		index:      index,
		timeout:    timeout,
		logger:     l,
		errHandler: apperrors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var input models.NotificationPayload
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewValidationFailedError("parse job variables: "+err.Error(), nil))
		return
	}
	out, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(out)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

// Publish is the outbox dispatcher entry point.
func (h *Handler) Publish(ctx context.Context, ev models.OutboxEvent) error {
	var input models.NotificationPayload
	if err := json.Unmarshal(ev.Payload, &input); err != nil {
		return apperrors.NewValidationFailedError("decode event payload: "+err.Error(), nil)
	}
	_, err := h.execute(ctx, &input)
	return err
}

func (h *Handler) execute(ctx context.Context, input *models.NotificationPayload) (*Output, error) {
	// fraud attempts are rejected before a payment row exists; a nil index
	// means search is disabled and the job completes as a no-op
	if input.PaymentID == "" || h.index == nil {
		return &Output{}, nil
	}
	p, err := h.payments.Get(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := h.index.Upsert(ctx, search.DocumentFromPayment(p, input.RecipientName)); err != nil {
		return nil, err
	}
	h.logger.Debug("Payment indexed", map[string]interface{}{"paymentId": p.ID, "status": p.Status})
	return &Output{Indexed: true, PaymentID: p.ID}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errHandler.HandleJobError(ctx, client, job, err)
}
