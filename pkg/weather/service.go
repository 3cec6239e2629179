// Package weather looks up current conditions and air quality for a patient's
// city through OpenWeatherMap and caches the result per location and locale.
package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sentinel-health/copd-monitor/pkg/common/config"
	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
	"github.com/sentinel-health/copd-monitor/pkg/gateway/httpclient"
	"github.com/sentinel-health/copd-monitor/pkg/observability/metrics"
)

var (
	ErrLocationRequired = errors.New("patient city and country are required to get weather data")
	ErrCityNotFound     = errors.New("city not found")
)

const unavailableCondition = "Weather Service Unavailable"

// OpenWeatherMap reports AQI on a 1..5 scale.
var aqiScale = [...]float64{0, 25, 75, 125, 175, 250}

var pollenLevels = [...]string{"Low", "Medium", "High", "Very High"}

type geoResult struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type currentWeather struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type airPollution struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
	} `json:"list"`
}

type Service struct {
	http     *resty.Client
	apiKey   string
	cache    Cache
	ttl      time.Duration
	attempts int
	intn     func(n int) int
}

type Option func(*Service)

// WithIntn replaces the source used for the simulated pollen and UV values.
func WithIntn(fn func(n int) int) Option {
	return func(s *Service) { s.intn = fn }
}

func WithAttempts(n int) Option {
	return func(s *Service) { s.attempts = n }
}

func NewService(cfg *config.Config, cache Cache, opts ...Option) *Service {
	client := resty.NewWithClient(httpclient.New(cfg.WeatherTimeout)).
		SetBaseURL(strings.TrimRight(cfg.OpenWeatherBaseURL, "/")).
		SetHeader("Accept", "application/json")

	s := &Service{
		http:     client,
		apiKey:   cfg.OpenWeatherAPIKey,
		cache:    cache,
		ttl:      cfg.WeatherCacheTTL,
		attempts: 3,
		intn:     rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cacheKey(city, country string, locale models.Locale) string {
	return strings.ToLower(fmt.Sprintf("%s,%s,%s", city, country, locale))
}

// GetWeather returns conditions for city/country. Without an API key it
// returns a zeroed placeholder instead of failing.
func (s *Service) GetWeather(ctx context.Context, city, country string, locale models.Locale) (models.WeatherData, error) {
	city, country = strings.TrimSpace(city), strings.TrimSpace(country)
	if city == "" || country == "" {
		return models.WeatherData{}, ErrLocationRequired
	}

	key := cacheKey(city, country, locale)
	log := logger.WithFields(logrus.Fields{"location": key})

	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		if err == nil {
			metrics.IncWeatherCacheHits()
			log.Debug("Weather cache hit")
			return data, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.WithError(err).Warn("Weather cache read failed")
		}
	}
	metrics.IncWeatherCacheMisses()

	var (
		data models.WeatherData
		err  error
	)
	if s.apiKey == "" {
		log.Warn("OPENWEATHER_API_KEY not set, returning placeholder weather")
		data = models.WeatherData{
			Location:    city + ", " + country,
			Condition:   unavailableCondition,
			PollenLevel: pollenLevels[0],
			Unavailable: true,
		}
	} else {
		data, err = s.fetch(ctx, city, country, locale)
		if err != nil {
			log.WithError(err).Error("Failed to fetch weather data")
			return models.WeatherData{}, err
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			log.WithError(err).Warn("Weather cache write failed")
		}
	}
	return data, nil
}

func (s *Service) fetch(ctx context.Context, city, country string, locale models.Locale) (models.WeatherData, error) {
	var places []geoResult
	err := s.get(ctx, "/geo/1.0/direct", map[string]string{
		"q":     city + "," + country,
		"limit": "1",
	}, &places)
	if err != nil {
		return models.WeatherData{}, fmt.Errorf("geocode %s: %w", city, err)
	}
	if len(places) == 0 {
		return models.WeatherData{}, fmt.Errorf("%w: %s", ErrCityNotFound, city)
	}
	lat := fmt.Sprintf("%f", places[0].Lat)
	lon := fmt.Sprintf("%f", places[0].Lon)

	var (
		current currentWeather
		air     airPollution
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.get(gctx, "/data/2.5/weather", map[string]string{
			"lat": lat, "lon": lon, "units": "metric", "lang": string(locale),
		}, &current)
	})
	g.Go(func() error {
		return s.get(gctx, "/data/2.5/air_pollution", map[string]string{
			"lat": lat, "lon": lon,
		}, &air)
	})
	if err := g.Wait(); err != nil {
		return models.WeatherData{}, fmt.Errorf("could not retrieve real-time weather data: %w", err)
	}

	aqi := 0.0
	if len(air.List) > 0 {
		if idx := air.List[0].Main.AQI; idx > 0 && idx < len(aqiScale) {
			aqi = aqiScale[idx]
		}
	}
	description := "N/A"
	if len(current.Weather) > 0 && current.Weather[0].Description != "" {
		description = current.Weather[0].Description
	}

	return models.WeatherData{
		Location:        city + ", " + country,
		Condition:       titleCase(description),
		TemperatureC:    math.Round(current.Main.Temp),
		HumidityPercent: current.Main.Humidity,
		WindSpeedKmh:    math.Round(current.Wind.Speed * 3.6),
		AirQualityIndex: aqi,
		PollenLevel:     pollenLevels[s.intn(len(pollenLevels))],
		UVIndex:         s.intn(8),
	}, nil
}

func (s *Service) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	return httpclient.Retry(ctx, s.attempts, 200*time.Millisecond, func() error {
		resp, err := s.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetQueryParam("appid", s.apiKey).
			SetResult(out).
			Get(path)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return &httpclient.StatusError{
				Code:       resp.StatusCode(),
				Body:       resp.String(),
				RetryAfter: httpclient.ParseRetryAfter(resp.Header().Get("Retry-After"), time.Now()),
			}
		}
		return nil
	})
}

func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
