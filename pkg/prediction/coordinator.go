// Package prediction runs live risk monitoring for one patient at a time and
// broadcasts composite predictions to subscribers.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
	"github.com/sentinel-health/copd-monitor/pkg/observability/metrics"
)

var ErrNoSession = errors.New("no active monitoring session")

type Repository interface {
	GetSnapshot(ctx context.Context, patientID string) (*models.PatientSnapshot, error)
}

type Scorer interface {
	Score(p *models.PatientSnapshot) models.RiskAssessment
}

// Enricher produces the narrative part of a prediction. It is slow and may fail.
type Enricher interface {
	Analyze(ctx context.Context, p *models.PatientSnapshot, score int, level models.RiskLevel, locale models.Locale) (models.NarrativeAnalysis, error)
}

type WeatherLookup interface {
	GetWeather(ctx context.Context, city, country string, locale models.Locale) (models.WeatherData, error)
}

// FallbackFunc builds the degraded narrative used when enrichment fails.
type FallbackFunc func(err error, locale models.Locale) models.NarrativeAnalysis

type Subscriber func(models.CompletePrediction)

type session struct {
	id        string
	patientID string
	locale    models.Locale
	snapshot  *models.PatientSnapshot
	startedAt time.Time

	// refresh tickets are handed out in order; only a ticket newer than the
	// last published one may publish.
	issued    uint64
	published uint64
}

type Coordinator struct {
	repo     Repository
	scorer   Scorer
	enricher Enricher
	weather  WeatherLookup
	series   SeriesGenerator
	rng      RandomSource
	fluct    Fluctuation
	fallback FallbackFunc
	now      func() time.Time
	timeout  time.Duration

	// publishMu orders whole publishes so subscribers see predictions in the
	// same order as Latest. mu guards the fields below and is never held
	// while calling subscribers.
	publishMu sync.Mutex

	mu          sync.Mutex
	current     *session
	last        *models.CompletePrediction
	subscribers map[uint64]Subscriber
	nextSubID   uint64
}

type Option func(*Coordinator)

func WithWeather(w WeatherLookup) Option {
	return func(c *Coordinator) { c.weather = w }
}

func WithRandomSource(r RandomSource) Option {
	return func(c *Coordinator) { c.rng = r }
}

func WithFluctuation(f Fluctuation) Option {
	return func(c *Coordinator) { c.fluct = f }
}

func WithSeries(s SeriesGenerator) Option {
	return func(c *Coordinator) { c.series = s }
}

func WithFallback(f FallbackFunc) Option {
	return func(c *Coordinator) { c.fallback = f }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithEnrichmentTimeout bounds each narrative call. Zero disables the bound.
func WithEnrichmentTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

func NewCoordinator(repo Repository, scorer Scorer, enricher Enricher, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:        repo,
		scorer:      scorer,
		enricher:    enricher,
		now:         time.Now,
		timeout:     20 * time.Second,
		fallback:    DefaultFallback,
		subscribers: make(map[uint64]Subscriber),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = defaultRandomSource()
	}
	if c.fluct == nil {
		c.fluct = JitterFluctuation(c.rng)
	}
	if c.series == nil {
		c.series = NewSyntheticSeries(c.rng)
	}
	return c
}

// Start binds the coordinator to a patient, discarding any previous session and
// its last prediction. An unknown patient leaves the coordinator idle; the
// wrapped lookup error is returned for callers that want it.
func (c *Coordinator) Start(ctx context.Context, patientID string, locale models.Locale) error {
	c.Stop()

	snapshot, err := c.repo.GetSnapshot(ctx, patientID)
	if err != nil {
		metrics.IncSessionStartFailures()
		logger.ForPatient(patientID).WithError(err).Warn("Monitoring not started, patient lookup failed")
		return fmt.Errorf("start monitoring %s: %w", patientID, err)
	}

	s := &session{
		id:        uuid.New().String(),
		patientID: patientID,
		locale:    locale,
		snapshot:  snapshot,
		startedAt: c.now(),
	}

	c.mu.Lock()
	c.current = s
	c.last = nil
	c.mu.Unlock()

	metrics.SetActiveSession(true)
	logger.Log.WithFields(logrus.Fields{
		"patient_id": patientID,
		"session_id": s.id,
		"locale":     locale,
	}).Info("Monitoring session started")
	return nil
}

// Stop returns to idle. In-flight refreshes finish but never publish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.last = nil
	c.mu.Unlock()

	if prev != nil {
		metrics.SetActiveSession(false)
		logger.Log.WithFields(logrus.Fields{
			"patient_id": prev.patientID,
			"session_id": prev.id,
		}).Info("Monitoring session stopped")
	}
}

type SessionInfo struct {
	ID        string        `json:"id"`
	PatientID string        `json:"patientId"`
	Locale    models.Locale `json:"locale"`
	StartedAt time.Time     `json:"startedAt"`
}

func (c *Coordinator) Session() (SessionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return SessionInfo{}, ErrNoSession
	}
	return SessionInfo{
		ID:        c.current.id,
		PatientID: c.current.patientID,
		Locale:    c.current.locale,
		StartedAt: c.current.startedAt,
	}, nil
}

// ActivePatient returns the patient bound to the current session.
func (c *Coordinator) ActivePatient() (string, bool) {
	info, err := c.Session()
	if err != nil {
		return "", false
	}
	return info.PatientID, true
}

func (c *Coordinator) Latest() (models.CompletePrediction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return models.CompletePrediction{}, false
	}
	return *c.last, true
}

// OnUpdate registers a subscriber. When a prediction already exists for the
// active session it is delivered before OnUpdate returns.
func (c *Coordinator) OnUpdate(cb Subscriber) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = cb
	var replay *models.CompletePrediction
	if c.last != nil {
		p := *c.last
		replay = &p
	}
	c.mu.Unlock()

	if replay != nil {
		cb(*replay)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

// Refresh recomputes and publishes the prediction for the active session. It
// is a no-op when idle. Enrichment failures degrade the prediction instead of
// failing the cycle; a result whose session ended or was overtaken by a newer
// refresh is dropped.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return nil
	}
	s.issued++
	ticket := s.issued
	c.mu.Unlock()

	metrics.IncRefreshes()
	started := time.Now()
	log := logger.Log.WithFields(logrus.Fields{
		"patient_id": s.patientID,
		"session_id": s.id,
		"ticket":     ticket,
	})

	snapshot := c.snapshotFor(ctx, s, log)
	c.overlayWeather(ctx, snapshot, s.locale, log)

	assessment := c.scorer.Score(snapshot)
	narrative := c.enrich(ctx, snapshot, assessment, s.locale, log)

	now := c.now()
	display := c.fluct(assessment.Score)
	alerts := DeriveAlerts(assessment.Level, snapshot, c.rng, now)
	SortAlerts(alerts)

	prediction := models.CompletePrediction{
		PatientID:           s.patientID,
		RiskScore:           display.RiskScore,
		BaseScore:           assessment.Score,
		RiskLevel:           assessment.Level,
		Confidence:          display.Confidence,
		TimeHorizonHours:    display.TimeHorizonHours,
		Summary:             narrative.Summary,
		ContributingFactors: narrative.ContributingFactors,
		Alerts:              alerts,
		Recommendations:     narrative.Recommendations,
		ActivityTimeSeries:  c.series.Activity(now),
		HeatmapSeries:       c.series.Heatmap(assessment.Level, s.locale),
		LastUpdate:          now,
		Error:               narrative.Error,
	}

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	if c.current != s || ticket <= s.published {
		c.mu.Unlock()
		metrics.IncStaleDiscards()
		log.Debug("Discarding stale prediction")
		return nil
	}
	s.published = ticket
	c.last = &prediction
	subs := make([]Subscriber, 0, len(c.subscribers))
	for _, cb := range c.subscribers {
		subs = append(subs, cb)
	}
	c.mu.Unlock()

	for _, cb := range subs {
		cb(prediction)
	}

	metrics.IncPredictionsPublished()
	metrics.ObserveRefreshDuration(time.Since(started))
	log.WithFields(logrus.Fields{
		"risk_score": prediction.RiskScore,
		"base_score": assessment.Score,
		"risk_level": assessment.Level,
		"degraded":   prediction.Error != "",
	}).Info("Prediction published")
	return nil
}

// snapshotFor reloads the patient so new measurements count, keeping the
// session copy when the store is unavailable.
func (c *Coordinator) snapshotFor(ctx context.Context, s *session, log *logrus.Entry) *models.PatientSnapshot {
	fresh, err := c.repo.GetSnapshot(ctx, s.patientID)
	if err != nil {
		log.WithError(err).Warn("Snapshot reload failed, using session copy")
		return s.snapshot.Clone()
	}
	return fresh.Clone()
}

func (c *Coordinator) overlayWeather(ctx context.Context, p *models.PatientSnapshot, locale models.Locale, log *logrus.Entry) {
	if c.weather == nil || p.City == "" {
		return
	}
	w, err := c.weather.GetWeather(ctx, p.City, p.Country, locale)
	if err != nil {
		log.WithError(err).Warn("Weather lookup failed, keeping stored environment")
		return
	}
	if w.Unavailable {
		log.Debug("Live weather unavailable, keeping stored environment")
		return
	}
	p.Telemetry.Environment.Weather.TemperatureC = w.TemperatureC
	p.Telemetry.Environment.Weather.HumidityPercent = w.HumidityPercent
	if w.AirQualityIndex > 0 {
		p.Telemetry.Environment.AirQualityIndex = w.AirQualityIndex
	}
}

func (c *Coordinator) enrich(ctx context.Context, p *models.PatientSnapshot, a models.RiskAssessment, locale models.Locale, log *logrus.Entry) models.NarrativeAnalysis {
	if c.enricher == nil {
		return c.fallback(errors.New("narrative enrichment not configured"), locale)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	analysis, err := c.enricher.Analyze(ctx, p, a.Score, a.Level, locale)
	if err == nil && analysis.Error == "" {
		return analysis
	}
	if err == nil {
		err = errors.New(analysis.Error)
	}

	metrics.IncEnrichmentFailures()
	log.WithError(err).Warn("Narrative enrichment failed, publishing degraded prediction")
	degraded := c.fallback(err, locale)
	if degraded.Error == "" {
		degraded.Error = err.Error()
	}
	return degraded
}

// DefaultFallback is the English degraded narrative.
func DefaultFallback(err error, _ models.Locale) models.NarrativeAnalysis {
	msg := "The AI prediction service failed to generate an analysis. Please try again."
	return models.NarrativeAnalysis{
		Summary: "The AI analysis could not be completed.",
		ContributingFactors: []models.FactorAnalysis{{
			Name:        "AI Analysis Error",
			Impact:      string(models.SeverityHigh),
			Description: msg,
		}},
		Recommendations: []string{"Manually check vitals and smartphone data."},
		Error:           msg,
	}
}
