package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bikerent"

// Admission outcomes.
const (
	OutcomeConfirmed       = "confirmed"
	OutcomeSlotUnavailable = "slot_unavailable"
	OutcomePriceMismatch   = "price_mismatch"
	OutcomeVehicleBusy     = "vehicle_busy"
	OutcomeInvalid         = "invalid"
	OutcomeError           = "error"
)

// Metrics holds every collector the service records into.
type Metrics struct {
	admissions        *prometheus.CounterVec
	admissionRetries  prometheus.Counter
	admissionDuration prometheus.Histogram
	cancellations     prometheus.Counter
	searchDuration    prometheus.Histogram
	kafkaMessages     *prometheus.CounterVec
	kafkaDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. If reg is nil a private registry is
// used. Collectors that are already registered are reused.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{gatherer: reg}
	var err error

	if m.admissions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admissions_total",
		Help:      "Booking admission attempts by outcome",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.admissionRetries, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admission_retries_total",
		Help:      "Admissions retried after losing a same-vehicle race",
	})); err != nil {
		return nil, err
	}
	if m.admissionDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "admission_duration_seconds",
		Help:      "Wall time of a booking admission including retries",
		Buckets:   prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if m.cancellations, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cancellations_total",
		Help:      "Confirmed bookings cancelled",
	})); err != nil {
		return nil, err
	}
	if m.searchDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_duration_seconds",
		Help:      "Wall time of an availability search",
		Buckets:   prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if m.kafkaMessages, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "kafka_messages_total",
		Help:      "Kafka messages handled by direction and result",
	}, []string{"direction", "topic", "result"})); err != nil {
		return nil, err
	}
	if m.kafkaDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "kafka_message_duration_seconds",
		Help:      "Time spent publishing or handling a Kafka message",
		Buckets:   prometheus.DefBuckets,
	}, []string{"direction", "topic"})); err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) ObserveAdmission(outcome string, elapsed time.Duration) {
	m.admissions.WithLabelValues(outcome).Inc()
	m.admissionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncAdmissionRetry() {
	m.admissionRetries.Inc()
}

func (m *Metrics) IncCancellation() {
	m.cancellations.Inc()
}

func (m *Metrics) ObserveSearch(elapsed time.Duration) {
	m.searchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveKafka(direction, topic string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.kafkaMessages.WithLabelValues(direction, topic, result).Inc()
	m.kafkaDuration.WithLabelValues(direction, topic).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
