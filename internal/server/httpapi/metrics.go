package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

type metrics struct {
	transitions *prometheus.CounterVec
	otp         *prometheus.CounterVec
	photos      prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meetflow",
			Name:      "meeting_transitions_total",
			Help:      "Meeting lifecycle events by outcome.",
		}, []string{"event", "outcome"}),
		otp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meetflow",
			Name:      "otp_operations_total",
			Help:      "Completion code operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		photos: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meetflow",
			Name:      "photos_uploaded_total",
			Help:      "Completion photos stored.",
		}),
	}
	reg.MustRegister(m.transitions, m.otp, m.photos)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "rejected"
	}
	return "ok"
}

func (m *metrics) transition(ev models.Event, err error) {
	m.transitions.WithLabelValues(string(ev), outcome(err)).Inc()
}

func (m *metrics) otpOp(op string, err error) {
	m.otp.WithLabelValues(op, outcome(err)).Inc()
}
