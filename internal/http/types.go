package http

import (
	"net/http"

	"github.com/atekkey/courtrank/internal/config"
	"github.com/atekkey/courtrank/internal/league"
	"github.com/atekkey/courtrank/internal/metrics"
	"github.com/atekkey/courtrank/internal/notifier"
	"github.com/atekkey/courtrank/internal/processor"
	"github.com/atekkey/courtrank/internal/pubsub"
)

type Server struct {
	Store          league.LeagueStore
	Counters       metrics.MetricsStore
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	Cfg            config.Config
	Notifier       notifier.Notifier
	Processor      *processor.Processor
	Router         *http.ServeMux
	pubsub         pubsub.PubSubClient
}
