package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/leadwise/persona-service/internal/classifier"
	"github.com/leadwise/persona-service/internal/domain"
	"github.com/leadwise/persona-service/internal/metrics"
	"github.com/leadwise/persona-service/shared/rabbitmq"
)

// Invalidator listens for broadcast events from the API service. A
// catalog.changed event invalidates this process's classifier cache; a
// job.created event nudges the poll loop. Both signals are best-effort
// optimizations: correctness is carried by the durable job store and
// by the cache reloading on its next miss.
type Invalidator struct {
	logger *slog.Logger
	rabbit *rabbitmq.Client
	cache  *classifier.Cache
	worker *Worker
}

// NewInvalidator creates a new Invalidator instance
func NewInvalidator(logger *slog.Logger, rabbit *rabbitmq.Client, cache *classifier.Cache, worker *Worker) *Invalidator {
	return &Invalidator{
		logger: logger,
		rabbit: rabbit,
		cache:  cache,
		worker: worker,
	}
}

// Start consumes broadcast events until the context is canceled or the
// delivery channel closes.
func (i *Invalidator) Start(ctx context.Context) error {
	deliveries, err := i.rabbit.ConsumeBroadcast(i.worker.WorkerID())
	if err != nil {
		return err
	}

	i.logger.Info("Event invalidator started",
		slog.String("worker_id", i.worker.WorkerID()),
	)

	for {
		select {
		case <-ctx.Done():
			i.logger.Info("Event invalidator stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				i.logger.Warn("RabbitMQ delivery channel closed")
				return nil
			}
			i.handle(delivery)
		}
	}
}

func (i *Invalidator) handle(delivery amqp.Delivery) {
	var event domain.Event
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		i.logger.Error("Failed to parse event JSON",
			slog.String("error", err.Error()),
			slog.String("body", string(delivery.Body)),
		)
		// Malformed events are dropped; there is nothing to retry.
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			i.logger.Error("Failed to NACK malformed event",
				slog.String("error", nackErr.Error()),
			)
		}
		return
	}

	switch event.Kind {
	case domain.EventCatalogChanged:
		i.cache.Invalidate()
		metrics.CacheReloads.Inc()
		i.logger.Info("Classifier cache invalidated by catalog change",
			slog.Int("keywords", len(event.Keywords)),
		)

	case domain.EventJobCreated:
		i.worker.Nudge()
		i.logger.Debug("Poll loop nudged by job creation",
			slog.String("job_id", event.JobID),
		)

	default:
		i.logger.Warn("Unknown event kind",
			slog.String("kind", event.Kind),
		)
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		i.logger.Error("Failed to ACK event",
			slog.String("error", ackErr.Error()),
		)
	}
}
