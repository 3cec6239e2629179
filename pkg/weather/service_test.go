package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-health/copd-monitor/pkg/common/config"
	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

func init() {
	logger.Silence()
}

type fakeOWM struct {
	calls        atomic.Int32
	weatherCode  int
	emptyGeocode bool
	lastLang     atomic.Value
}

func (f *fakeOWM) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/geo/1.0/direct", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if r.URL.Query().Get("appid") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if f.emptyGeocode {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"name":"Lyon","lat":45.76,"lon":4.83,"country":"FR"}]`))
	})
	mux.HandleFunc("/data/2.5/weather", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.lastLang.Store(r.URL.Query().Get("lang"))
		if f.weatherCode != 0 {
			w.WriteHeader(f.weatherCode)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"weather":[{"description":"light rain"}],"main":{"temp":11.6,"humidity":87},"wind":{"speed":5}}`))
	})
	mux.HandleFunc("/data/2.5/air_pollution", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"list":[{"main":{"aqi":3}}]}`))
	})
	return mux
}

func setup(t *testing.T, apiKey string, owm *fakeOWM) (*Service, *miniredis.Miniredis) {
	t.Helper()
	srv := httptest.NewServer(owm.handler())
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{
		OpenWeatherAPIKey:  apiKey,
		OpenWeatherBaseURL: srv.URL,
		WeatherCacheTTL:    time.Hour,
		WeatherTimeout:     2 * time.Second,
	}
	svc := NewService(cfg, NewRedisCache(client), WithAttempts(1), WithIntn(func(n int) int { return n - 1 }))
	return svc, mr
}

func TestGetWeatherTransformsProviderData(t *testing.T) {
	owm := &fakeOWM{}
	svc, _ := setup(t, "test-key", owm)

	data, err := svc.GetWeather(context.Background(), "Lyon", "FR", models.LocaleFrench)
	require.NoError(t, err)

	assert.Equal(t, models.WeatherData{
		Location:        "Lyon, FR",
		Condition:       "Light Rain",
		TemperatureC:    12,
		HumidityPercent: 87,
		WindSpeedKmh:    18,
		AirQualityIndex: 125,
		PollenLevel:     "Very High",
		UVIndex:         7,
	}, data)
	assert.Equal(t, int32(3), owm.calls.Load())
	assert.Equal(t, "fr", owm.lastLang.Load())
}

func TestGetWeatherUsesCache(t *testing.T) {
	owm := &fakeOWM{}
	svc, mr := setup(t, "test-key", owm)
	ctx := context.Background()

	first, err := svc.GetWeather(ctx, "Lyon", "FR", models.LocaleEnglish)
	require.NoError(t, err)
	second, err := svc.GetWeather(ctx, "lyon", "fr", models.LocaleEnglish)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(3), owm.calls.Load())
	assert.True(t, mr.Exists("weather:lyon,fr,en"))
	assert.Equal(t, time.Hour, mr.TTL("weather:lyon,fr,en"))

	mr.FastForward(time.Hour + time.Second)
	_, err = svc.GetWeather(ctx, "Lyon", "FR", models.LocaleEnglish)
	require.NoError(t, err)
	assert.Equal(t, int32(6), owm.calls.Load())
}

func TestGetWeatherCacheKeyIncludesLocale(t *testing.T) {
	owm := &fakeOWM{}
	svc, _ := setup(t, "test-key", owm)
	ctx := context.Background()

	_, err := svc.GetWeather(ctx, "Lyon", "FR", models.LocaleEnglish)
	require.NoError(t, err)
	_, err = svc.GetWeather(ctx, "Lyon", "FR", models.LocaleArabic)
	require.NoError(t, err)

	assert.Equal(t, int32(6), owm.calls.Load())
}

func TestGetWeatherRequiresLocation(t *testing.T) {
	owm := &fakeOWM{}
	svc, _ := setup(t, "test-key", owm)

	_, err := svc.GetWeather(context.Background(), "Lyon", " ", models.LocaleFrench)
	assert.ErrorIs(t, err, ErrLocationRequired)
	assert.Zero(t, owm.calls.Load())
}

func TestGetWeatherWithoutAPIKey(t *testing.T) {
	owm := &fakeOWM{}
	svc, _ := setup(t, "", owm)

	data, err := svc.GetWeather(context.Background(), "Tunis", "TN", models.LocaleArabic)
	require.NoError(t, err)

	assert.Equal(t, "Tunis, TN", data.Location)
	assert.Equal(t, "Weather Service Unavailable", data.Condition)
	assert.Zero(t, data.TemperatureC)
	assert.Zero(t, data.AirQualityIndex)
	assert.True(t, data.Unavailable)
	assert.Zero(t, owm.calls.Load())

	cached, err := svc.GetWeather(context.Background(), "Tunis", "TN", models.LocaleArabic)
	require.NoError(t, err)
	assert.True(t, cached.Unavailable)
}

func TestGetWeatherCityNotFound(t *testing.T) {
	owm := &fakeOWM{emptyGeocode: true}
	svc, _ := setup(t, "test-key", owm)

	_, err := svc.GetWeather(context.Background(), "Atlantis", "XX", models.LocaleEnglish)
	assert.ErrorIs(t, err, ErrCityNotFound)
}

func TestGetWeatherProviderFailureIsNotCached(t *testing.T) {
	svc, mr := setup(t, "test-key", &fakeOWM{weatherCode: http.StatusBadGateway})

	_, err := svc.GetWeather(context.Background(), "Lyon", "FR", models.LocaleEnglish)
	assert.Error(t, err)
	assert.False(t, mr.Exists("weather:lyon,fr,en"))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Broken Clouds", titleCase("broken clouds"))
	assert.Equal(t, "Légère Pluie", titleCase("légère pluie"))
	assert.Equal(t, "", titleCase(""))
}
