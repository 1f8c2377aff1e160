package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		MatchesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtrank_matches_applied_total",
			Help: "The total number of matches applied to a league ledger.",
		}),
		MatchesRolledBack: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtrank_matches_rolled_back_total",
			Help: "The total number of matches rolled back.",
		}),
		ApplyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtrank_apply_failures_total",
			Help: "The total number of match applications that failed.",
		}),
		ApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "courtrank_apply_duration_seconds",
			Help:    "The duration of individual match applications.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		NotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtrank_notifications_sent_total",
			Help: "The total number of notifications successfully sent.",
		}),
		NotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtrank_notifications_failed_total",
			Help: "The total number of notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtrank_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.MatchesApplied,
		s.MatchesRolledBack,
		s.ApplyFailures,
		s.ApplyDuration,
		s.NotifSent,
		s.NotifFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncMatchesApplied() {
	s.MatchesApplied.Inc()
}

func (s *Service) IncMatchesRolledBack() {
	s.MatchesRolledBack.Inc()
}

func (s *Service) IncApplyFailures() {
	s.ApplyFailures.Inc()
}

func (s *Service) ObserveApplyDuration(seconds float64) {
	s.ApplyDuration.Observe(seconds)
}

func (s *Service) IncNotifSent() {
	s.NotifSent.Inc()
}

func (s *Service) IncNotifFailed() {
	s.NotifFailed.Inc()
}

func (s *Service) SetStartupTime(seconds float64) {
	s.StartupTimeSeconds.Set(seconds)
}
