// Package metrics expone contadores Prometheus del ciclo de credenciales.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics agrupa los contadores del servicio.
type Metrics struct {
	Registrations    prometheus.Counter
	Logins           *prometheus.CounterVec
	Confirmations    *prometheus.CounterVec
	ResetCodes       prometheus.Counter
	PasswordChanges  *prometheus.CounterVec
	AccountDeletions prometheus.Counter
	EmailDeliveries  *prometheus.CounterVec
	EmailEnqueueErrs prometheus.Counter
}

// New crea y registra los contadores en reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mentora_auth_registrations_total",
			Help: "Total number of accounts registered",
		}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentora_auth_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentora_auth_email_confirmations_total",
			Help: "Email confirmation attempts by outcome",
		}, []string{"outcome"}),
		ResetCodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mentora_auth_reset_codes_issued_total",
			Help: "Total number of password reset codes issued",
		}),
		PasswordChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentora_auth_password_changes_total",
			Help: "Password changes by flow and outcome",
		}, []string{"flow", "outcome"}),
		AccountDeletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mentora_auth_account_deletions_total",
			Help: "Total number of deleted accounts",
		}),
		EmailDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentora_auth_email_deliveries_total",
			Help: "Email jobs by final status",
		}, []string{"status"}),
		EmailEnqueueErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mentora_auth_email_enqueue_failures_total",
			Help: "Email jobs that could not be enqueued",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Registrations,
			m.Logins,
			m.Confirmations,
			m.ResetCodes,
			m.PasswordChanges,
			m.AccountDeletions,
			m.EmailDeliveries,
			m.EmailEnqueueErrs,
		)
	}
	return m
}

// NewRegistry devuelve un registry propio con los collectors de runtime.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// ObserveDelivery implementa email.DeliveryObserver.
func (m *Metrics) ObserveDelivery(status string) {
	if m == nil {
		return
	}
	m.EmailDeliveries.WithLabelValues(status).Inc()
}
