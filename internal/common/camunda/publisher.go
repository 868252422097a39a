// internal/common/camunda/publisher.go
package camunda

import (
	"context"
	"encoding/json"
	"fmt"

	"internship-portal/internal/common/logger"
	"internship-portal/internal/models"
)

// Publisher turns outbox events into process instances. Each event starts
// one instance of the notification process carrying the event payload as
// variables; the send-notification service task picks it up from there.
type Publisher struct {
	processID string
	logger    logger.Logger
	start     func(ctx context.Context, vars map[string]interface{}) (int64, error)
}

func NewPublisher(c *Client, processID string, log logger.Logger) *Publisher {
	p := &Publisher{
		processID: processID,
		logger:    log.WithFields(map[string]interface{}{"component": "camunda-publisher", "processId": processID}),
	}
	p.start = func(ctx context.Context, vars map[string]interface{}) (int64, error) {
		res, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
			cmd, err := c.client.NewCreateInstanceCommand().
				BPMNProcessId(processID).
				LatestVersion().
				VariablesFromMap(vars)
			if err != nil {
				return nil, err
			}
			return cmd.Send(ctx)
		}, "create-instance")
		if err != nil {
			return 0, err
		}
		if r, ok := res.(interface{ GetProcessInstanceKey() int64 }); ok {
			return r.GetProcessInstanceKey(), nil
		}
		return 0, nil
	}
	return p
}

func (p *Publisher) Publish(ctx context.Context, ev models.OutboxEvent) error {
	vars := map[string]interface{}{}
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &vars); err != nil {
			return fmt.Errorf("decode payload of event %s: %w", ev.ID, err)
		}
	}
	vars["eventId"] = ev.ID
	vars["eventType"] = string(ev.EventType)

	key, err := p.start(ctx, vars)
	if err != nil {
		return err
	}
	p.logger.Debug("Process instance created", map[string]interface{}{
		"eventId":            ev.ID,
		"eventType":          ev.EventType,
		"processInstanceKey": key,
	})
	return nil
}
