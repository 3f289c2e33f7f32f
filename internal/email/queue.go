package email

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ErrQueueFull se devuelve cuando la cola en memoria no admite mas trabajos.
var ErrQueueFull = errors.New("email queue full")

// ErrQueueClosed se devuelve al encolar despues de Close.
var ErrQueueClosed = errors.New("email queue closed")

// Delivery status reportados al observer.
const (
	StatusSent    = "sent"
	StatusDropped = "dropped"
)

// DeliveryObserver recibe el resultado final de cada trabajo.
type DeliveryObserver interface {
	ObserveDelivery(status string)
}

type job struct {
	Message    Message         `json:"message"`
	Options    DeliveryOptions `json:"options"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// deliverer aplica la politica de intentos comun a todas las colas.
type deliverer struct {
	sender   Sender
	logger   *zap.Logger
	observer DeliveryObserver
}

func (d deliverer) deliver(ctx context.Context, j job) {
	opts := normalizeOptions(j.Options)
	backoff := retry.WithMaxRetries(uint64(opts.Attempts-1), retry.NewConstant(opts.Backoff))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := d.sender.Send(ctx, j.Message); err != nil {
			d.logger.Warn("email delivery attempt failed",
				zap.Error(err),
				zap.String("subject", j.Message.Subject),
				zap.Int("attempt", attempt),
			)
			return retry.RetryableError(err)
		}
		return nil
	})

	status := StatusSent
	if err != nil {
		status = StatusDropped
		d.logger.Error("email dropped after retries",
			zap.Error(err),
			zap.String("subject", j.Message.Subject),
			zap.Int("attempts", attempt),
		)
	}
	if d.observer != nil {
		d.observer.ObserveDelivery(status)
	}
}

func normalizeOptions(opts DeliveryOptions) DeliveryOptions {
	def := DefaultDeliveryOptions()
	if opts.Attempts <= 0 {
		opts.Attempts = def.Attempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}
	return opts
}
