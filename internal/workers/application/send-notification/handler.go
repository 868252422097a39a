// internal/workers/application/send-notification/handler.go
package sendnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/common/metrics"
	"internship-portal/internal/models"
	"internship-portal/internal/realtime"
	"internship-portal/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "send-notification"

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type AdminAlerter interface {
	Alert(ctx context.Context, text string) error
}

// Channels bundles the delivery backends. Nil entries are treated as disabled.
type Channels struct {
	Email  EmailSender
	SMS    SMSSender
	Push   realtime.Registry
	Alerts AdminAlerter
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	channels   Channels
	templates  map[string]registry.Template
	errHandler *apperrors.ErrorHandler
	now        func() time.Time
}

func NewHandler(config *Config, channels Channels, log logger.Logger) (*Handler, error) {
	reg, err := registry.LoadRegistry(config.TemplateRegistry)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("validate templates: %w", err)
	}

	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		logger:     l,
		channels:   channels,
		templates:  reg.Index(),
		errHandler: apperrors.NewErrorHandler(l),
		now:        time.Now,
	}, nil
}

// Handle is the Zeebe job entry point.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("Processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input models.NotificationPayload
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewValidationFailedError("parse job variables: "+err.Error(), nil))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.completeJob(ctx, client, job, output)
}

// Publish adapts the handler to the in-process outbox dispatcher.
func (h *Handler) Publish(ctx context.Context, ev models.OutboxEvent) error {
	var input models.NotificationPayload
	if err := json.Unmarshal(ev.Payload, &input); err != nil {
		return apperrors.NewValidationFailedError("decode event payload: "+err.Error(), nil)
	}
	if input.EventType == "" {
		input.EventType = ev.EventType
	}
	_, err := h.execute(ctx, &input)
	return err
}

func (h *Handler) Execute(ctx context.Context, input *models.NotificationPayload) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *models.NotificationPayload) (*Output, error) {
	tmpl, ok := h.templates[string(input.EventType)]
	if !ok {
		return nil, apperrors.NewValidationFailedError("no template for event",
			map[string]string{"eventType": string(input.EventType)})
	}

	data := templateData(input)
	subject := registry.Render(tmpl.Subject, data)
	body := registry.Render(tmpl.Body, data)

	out := &Output{
		NotificationID: uuid.New().String(),
		Status:         models.NotificationDisabled,
		Channels:       map[string]models.NotificationStatus{},
		SentAt:         h.now().UTC().Format(time.RFC3339),
	}
	log := h.logger.WithFields(map[string]interface{}{
		"eventType":     input.EventType,
		"applicationId": input.ApplicationID,
	})

	// Email and SMS are the delivery guarantee: a failure is returned so the
	// caller retries the whole notification.
	switch {
	case !h.config.EmailEnabled || h.channels.Email == nil:
		out.Channels[ChannelEmail] = models.NotificationDisabled
	case input.RecipientEmail == "":
		out.Channels[ChannelEmail] = models.NotificationSkipped
	default:
		if _, err := h.channels.Email.SendEmail(ctx, input.RecipientEmail, subject, body); err != nil {
			log.Error("Email send failed", map[string]interface{}{"error": err})
			return nil, apperrors.NewNotificationSendFailedError(ChannelEmail, err)
		}
		out.Channels[ChannelEmail] = models.NotificationSent
	}

	switch {
	case !h.config.SMSEnabled || h.channels.SMS == nil:
		out.Channels[ChannelSMS] = models.NotificationDisabled
	case tmpl.SMS == "" || input.RecipientPhone == "":
		out.Channels[ChannelSMS] = models.NotificationSkipped
	default:
		if _, err := h.channels.SMS.SendSMS(ctx, input.RecipientPhone, registry.Render(tmpl.SMS, data)); err != nil {
			log.Error("SMS send failed", map[string]interface{}{"error": err})
			return nil, apperrors.NewNotificationSendFailedError(ChannelSMS, err)
		}
		out.Channels[ChannelSMS] = models.NotificationSent
	}

	out.Channels[ChannelRealtime] = h.push(ctx, log, input)
	out.Channels[ChannelAdmin] = h.alert(ctx, log, input, tmpl, data)

	for _, st := range out.Channels {
		if st == models.NotificationSent {
			out.Status = models.NotificationSent
			break
		}
	}
	return out, nil
}

// push is best effort: the applicant may simply not be connected.
func (h *Handler) push(ctx context.Context, log logger.Logger, input *models.NotificationPayload) models.NotificationStatus {
	if !h.config.RealtimeEnabled || h.channels.Push == nil {
		return models.NotificationDisabled
	}
	n, err := h.channels.Push.Send(ctx, input.ApplicantID, realtime.Message{Type: string(input.EventType), Data: input})
	if err != nil {
		log.Warn("Realtime push failed", map[string]interface{}{"error": err})
		return models.NotificationFailed
	}
	if n == 0 {
		return models.NotificationSkipped
	}
	return models.NotificationSent
}

func (h *Handler) alert(ctx context.Context, log logger.Logger, input *models.NotificationPayload, tmpl registry.Template, data map[string]interface{}) models.NotificationStatus {
	if !h.config.AdminAlerts || h.channels.Alerts == nil {
		return models.NotificationDisabled
	}
	if !input.AlertAdmins || tmpl.AdminAlert == "" {
		return models.NotificationSkipped
	}
	if err := h.channels.Alerts.Alert(ctx, registry.Render(tmpl.AdminAlert, data)); err != nil {
		log.Warn("Admin alert failed", map[string]interface{}{"error": err})
		return models.NotificationFailed
	}
	return models.NotificationSent
}

func templateData(in *models.NotificationPayload) map[string]interface{} {
	warnings := "none"
	if len(in.Warnings) > 0 {
		warnings = strings.Join(in.Warnings, "; ")
	}
	return map[string]interface{}{
		"eventType":         string(in.EventType),
		"applicationId":     in.ApplicationID,
		"applicantId":       in.ApplicantID,
		"recipientName":     in.RecipientName,
		"opportunityTitle":  in.OpportunityTitle,
		"applicationStatus": strings.ReplaceAll(in.ApplicationStatus, "-", " "),
		"paymentId":         in.PaymentID,
		"transactionCode":   in.TransactionCode,
		"amount":            in.Amount,
		"reason":            in.Reason,
		"warnings":          warnings,
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errHandler.HandleJobError(ctx, client, job, err)
}
