// internal/outbox/dispatcher.go
package outbox

import (
	"context"
	"errors"
	"fmt"

	"internship-portal/internal/models"
)

type HandlerFunc func(ctx context.Context, e models.OutboxEvent) error

// Dispatcher is an in-process Publisher that fans events out to handlers.
// It is used when no workflow engine is configured.
type Dispatcher struct {
	byType map[models.EventType][]HandlerFunc
	all    []HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{byType: map[models.EventType][]HandlerFunc{}}
}

// On registers h for one event type.
func (d *Dispatcher) On(t models.EventType, h HandlerFunc) {
	d.byType[t] = append(d.byType[t], h)
}

// OnAll registers h for every event.
func (d *Dispatcher) OnAll(h HandlerFunc) {
	d.all = append(d.all, h)
}

// Publish runs every matching handler and joins their errors. A failed
// handler makes the relay retry the whole event.
func (d *Dispatcher) Publish(ctx context.Context, e models.OutboxEvent) error {
	typed := d.byType[e.EventType]
	handlers := make([]HandlerFunc, 0, len(typed)+len(d.all))
	handlers = append(append(handlers, typed...), d.all...)

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.EventType, err))
		}
	}
	return errors.Join(errs...)
}
