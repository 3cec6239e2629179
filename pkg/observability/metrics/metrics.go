package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

var (
	refreshesTotal       atomic.Int64
	predictionsPublished atomic.Int64
	enrichmentFailures   atomic.Int64
	staleDiscards        atomic.Int64
	sessionStartFailures atomic.Int64
	activeSession        atomic.Int64
	lastRefreshMillis    atomic.Int64
	eventsPublished      atomic.Int64
	eventsDropped        atomic.Int64
	measurementsIngested atomic.Int64
	weatherCacheHits     atomic.Int64
	weatherCacheMisses   atomic.Int64
	streamClients        atomic.Int64
)

func IncRefreshes() { refreshesTotal.Add(1) }
func IncPredictionsPublished() { predictionsPublished.Add(1) }
func IncEnrichmentFailures() { enrichmentFailures.Add(1) }
func IncStaleDiscards() { staleDiscards.Add(1) }
func IncSessionStartFailures() { sessionStartFailures.Add(1) }
func IncEventsPublished() { eventsPublished.Add(1) }
func IncEventsDropped() { eventsDropped.Add(1) }
func IncMeasurementsIngested() { measurementsIngested.Add(1) }
func IncWeatherCacheHits() { weatherCacheHits.Add(1) }
func IncWeatherCacheMisses() { weatherCacheMisses.Add(1) }
func SetStreamClients(n int) { streamClients.Store(int64(n)) }

func SetActiveSession(active bool) {
	if active {
		activeSession.Store(1)
		return
	}
	activeSession.Store(0)
}

func ObserveRefreshDuration(d time.Duration) {
	lastRefreshMillis.Store(d.Milliseconds())
}

type Snapshot struct {
	Refreshes            int64 `json:"refreshes"`
	PredictionsPublished int64 `json:"predictionsPublished"`
	EnrichmentFailures   int64 `json:"enrichmentFailures"`
	StaleDiscards        int64 `json:"staleDiscards"`
	SessionStartFailures int64 `json:"sessionStartFailures"`
	ActiveSession        bool  `json:"activeSession"`
	LastRefreshMillis    int64 `json:"lastRefreshMillis"`
	EventsPublished      int64 `json:"eventsPublished"`
	EventsDropped        int64 `json:"eventsDropped"`
	MeasurementsIngested int64 `json:"measurementsIngested"`
	WeatherCacheHits     int64 `json:"weatherCacheHits"`
	WeatherCacheMisses   int64 `json:"weatherCacheMisses"`
	StreamClients        int64 `json:"streamClients"`
}

func Current() Snapshot {
	return Snapshot{
		Refreshes:            refreshesTotal.Load(),
		PredictionsPublished: predictionsPublished.Load(),
		EnrichmentFailures:   enrichmentFailures.Load(),
		StaleDiscards:        staleDiscards.Load(),
		SessionStartFailures: sessionStartFailures.Load(),
		ActiveSession:        activeSession.Load() == 1,
		LastRefreshMillis:    lastRefreshMillis.Load(),
		EventsPublished:      eventsPublished.Load(),
		EventsDropped:        eventsDropped.Load(),
		MeasurementsIngested: measurementsIngested.Load(),
		WeatherCacheHits:     weatherCacheHits.Load(),
		WeatherCacheMisses:   weatherCacheMisses.Load(),
		StreamClients:        streamClients.Load(),
	}
}

type metric struct {
	name, help, kind string
	value            int64
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s := Current()
	var active int64
	if s.ActiveSession {
		active = 1
	}

	for _, m := range []metric{
		{"copd_prediction_refreshes_total", "Refresh cycles started.", "counter", s.Refreshes},
		{"copd_prediction_published_total", "Predictions delivered to subscribers.", "counter", s.PredictionsPublished},
		{"copd_prediction_enrichment_failures_total", "Refreshes published with a degraded narrative.", "counter", s.EnrichmentFailures},
		{"copd_prediction_stale_discards_total", "Refresh results dropped because the session changed or a newer refresh won.", "counter", s.StaleDiscards},
		{"copd_session_start_failures_total", "Monitoring starts rejected because the patient could not be loaded.", "counter", s.SessionStartFailures},
		{"copd_session_active", "Whether a monitoring session is bound.", "gauge", active},
		{"copd_prediction_last_refresh_ms", "Wall time of the latest published refresh.", "gauge", s.LastRefreshMillis},
		{"copd_events_published_total", "Prediction events written to Kafka.", "counter", s.EventsPublished},
		{"copd_events_dropped_total", "Prediction events dropped because the publish queue was full.", "counter", s.EventsDropped},
		{"copd_measurements_ingested_total", "Measurements accepted from the event stream.", "counter", s.MeasurementsIngested},
		{"copd_weather_cache_hits_total", "Weather lookups served from cache.", "counter", s.WeatherCacheHits},
		{"copd_weather_cache_misses_total", "Weather lookups that reached the provider.", "counter", s.WeatherCacheMisses},
		{"copd_stream_clients", "Connected live prediction stream clients.", "gauge", s.StreamClients},
	} {
		fmt.Fprintf(w, "# HELP %s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", m.name, m.kind)
		fmt.Fprintf(w, "%s %d\n", m.name, m.value)
	}
}
