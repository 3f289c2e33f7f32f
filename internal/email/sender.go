package email

import (
	"context"
	"errors"
	"time"
)

// Message es un correo listo para entregar.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

// DeliveryOptions controla reintentos de un trabajo en la cola.
type DeliveryOptions struct {
	Attempts int           `json:"attempts"`
	Backoff  time.Duration `json:"backoff"`
}

// DefaultDeliveryOptions es un intento con 5s de backoff; los trabajos se
// descartan al agotarse.
func DefaultDeliveryOptions() DeliveryOptions {
	return DeliveryOptions{Attempts: 1, Backoff: 5 * time.Second}
}

// Sender define la interfaz para entrega sincronica de correos.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher encola correos para entrega asincronica. Enqueue no espera la
// entrega.
type Dispatcher interface {
	Enqueue(ctx context.Context, msg Message, opts DeliveryOptions) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Send(_ context.Context, _ Message) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
