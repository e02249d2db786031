package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fitboard/internal/apperr"
	"fitboard/internal/config"
	"fitboard/internal/fixtures"
	"fitboard/internal/models"
	"fitboard/internal/transform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sportAPI serves the fixture set the way the historical backend does,
// wrapped in a data envelope.
func sportAPI(t *testing.T, set *fixtures.Set, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	handle := func(e models.Entity, pattern string) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			if hits != nil {
				hits.Add(1)
			}
			id, err := strconv.Atoi(r.PathValue("id"))
			if err != nil {
				http.Error(w, "bad id", http.StatusBadRequest)
				return
			}
			raw, ok := set.Get(e, id)
			if !ok {
				http.Error(w, "can not get user", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"data": %s}`, raw)
		})
	}
	handle(models.EntityUser, "GET /user/{id}")
	handle(models.EntityActivity, "GET /user/{id}/activity")
	handle(models.EntityAverageSessions, "GET /user/{id}/average-sessions")
	handle(models.EntityPerformance, "GET /user/{id}/performance")

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func remoteConfig(url string) GatewayConfig {
	return GatewayConfig{
		Origin:           OriginRemote,
		BaseURL:          url,
		Timeout:          time.Second,
		Retries:          2,
		RetryDelay:       time.Millisecond,
		BreakerThreshold: 5,
		BreakerTimeout:   time.Minute,
	}
}

func gateways(t *testing.T) map[Origin]*Gateway {
	t.Helper()
	set := fixtures.MustLoad()

	mock, err := NewGateway(GatewayConfig{Origin: OriginMock, Fixtures: set})
	require.NoError(t, err)

	srv := sportAPI(t, set, nil)
	remote, err := NewGateway(remoteConfig(srv.URL))
	require.NoError(t, err)

	return map[Origin]*Gateway{OriginMock: mock, OriginRemote: remote}
}

func TestGateway_ScoreFieldsBothOrigins(t *testing.T) {
	for origin, g := range gateways(t) {
		t.Run(string(origin), func(t *testing.T) {
			ctx := context.Background()

			u18, err := g.GetUser(ctx, 18)
			require.NoError(t, err)
			assert.Equal(t, 30, transform.ScorePercentage(u18.Score))
			assert.Equal(t, "Cecilia", u18.Profile.FirstName)

			u12, err := g.GetUser(ctx, 12)
			require.NoError(t, err)
			assert.Equal(t, 12, transform.ScorePercentage(u12.Score))
			assert.Equal(t, 1930, u12.Nutrition.CalorieCount)
		})
	}
}

func TestGateway_AllEntitiesBothOrigins(t *testing.T) {
	for origin, g := range gateways(t) {
		t.Run(string(origin), func(t *testing.T) {
			ctx := context.Background()

			activity, err := g.GetActivity(ctx, 12)
			require.NoError(t, err)
			require.Len(t, activity, 7)
			assert.Equal(t, "2020-07-01", activity[0].DayLabel)

			sessions, err := g.GetAverageSessions(ctx, 12)
			require.NoError(t, err)
			require.Len(t, sessions, 7)
			// fixture 12 has no entries for friday and saturday
			assert.Zero(t, sessions[4].DurationMinutes)
			assert.Zero(t, sessions[5].DurationMinutes)
			assert.Equal(t, 60, sessions[6].DurationMinutes)

			perf, err := g.GetPerformance(ctx, 18)
			require.NoError(t, err)
			require.Len(t, perf, 6)
			assert.Equal(t, models.PerformanceEntry{Category: models.CategoryCardio, Value: 200}, perf[0])

			bundle, err := g.GetBundle(ctx, 18)
			require.NoError(t, err)
			assert.Equal(t, 18, bundle.Profile.ID)
			assert.Len(t, bundle.Sessions, 7)
			assert.Empty(t, bundle.Anomalies)
		})
	}
}

func TestGateway_NotFoundBothOrigins(t *testing.T) {
	for origin, g := range gateways(t) {
		t.Run(string(origin), func(t *testing.T) {
			_, err := g.GetUser(context.Background(), 99)
			assert.ErrorIs(t, err, apperr.ErrNotFound)

			_, err = g.GetPerformance(context.Background(), 0)
			assert.ErrorIs(t, err, apperr.ErrNotFound)

			_, err = g.GetBundle(context.Background(), 99)
			assert.ErrorIs(t, err, apperr.ErrNotFound)
		})
	}
}

func TestGateway_RemoteNetworkError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g, err := NewGateway(remoteConfig(srv.URL))
	require.NoError(t, err)

	_, err = g.GetActivity(context.Background(), 12)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGateway_RemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g, err := NewGateway(remoteConfig(url))
	require.NoError(t, err)

	_, err = g.GetUser(context.Background(), 12)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
}

func TestGateway_RemoteSchemaErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
		call func(g *Gateway) error
	}{
		{
			name: "NotJSON",
			body: `<html>oops</html>`,
			call: func(g *Gateway) error { _, err := g.GetUser(context.Background(), 12); return err },
		},
		{
			name: "UserWithoutID",
			body: `{"userInfos": {"firstName": "Karl"}}`,
			call: func(g *Gateway) error { _, err := g.GetUser(context.Background(), 12); return err },
		},
		{
			name: "WrongUser",
			body: `{"data": {"id": 18}}`,
			call: func(g *Gateway) error { _, err := g.GetUser(context.Background(), 12); return err },
		},
		{
			name: "SessionsMissing",
			body: `{"userId": 12}`,
			call: func(g *Gateway) error { _, err := g.GetAverageSessions(context.Background(), 12); return err },
		},
		{
			name: "ActivitySessionsNull",
			body: `{"userId": 12, "sessions": null}`,
			call: func(g *Gateway) error { _, err := g.GetActivity(context.Background(), 12); return err },
		},
		{
			name: "PerformanceWithoutKind",
			body: `{"userId": 12, "data": [{"value": 1, "kind": 1}]}`,
			call: func(g *Gateway) error { _, err := g.GetPerformance(context.Background(), 12); return err },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			g, err := NewGateway(remoteConfig(srv.URL))
			require.NoError(t, err)
			assert.ErrorIs(t, tc.call(g), apperr.ErrSchema)
		})
	}
}

func TestGateway_RemoteBarePayloadAndUnknownKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/performance"))
		w.Write([]byte(`{"userId": 12, "kind": {"1": "cardio"}, "data": [{"value": 80, "kind": 1}, {"value": 10, "kind": 7}]}`))
	}))
	defer srv.Close()

	g, err := NewGateway(remoteConfig(srv.URL))
	require.NoError(t, err)

	perf, err := g.GetPerformance(context.Background(), 12)
	require.NoError(t, err)
	require.Len(t, perf, 6)
	assert.Equal(t, 80.0, perf[0].Value)
}

func TestGateway_RawCache(t *testing.T) {
	var hits atomic.Int32
	srv := sportAPI(t, fixtures.MustLoad(), &hits)

	cfg := remoteConfig(srv.URL)
	cfg.RawCacheTTL = time.Minute
	g, err := NewGateway(cfg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := g.GetUser(context.Background(), 12)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestGateway_RawCacheSkipsRejectedPayload(t *testing.T) {
	var hits atomic.Int32
	set := fixtures.MustLoad()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the first answer lacks the sessions array, later ones are well formed
		if hits.Add(1) == 1 {
			w.Write([]byte(`{"data": {"userId": 12}}`))
			return
		}
		raw, _ := set.Get(models.EntityActivity, 12)
		fmt.Fprintf(w, `{"data": %s}`, raw)
	}))
	defer srv.Close()

	cfg := remoteConfig(srv.URL)
	cfg.RawCacheTTL = time.Minute
	g, err := NewGateway(cfg)
	require.NoError(t, err)

	_, err = g.GetActivity(context.Background(), 12)
	assert.ErrorIs(t, err, apperr.ErrSchema)

	activity, err := g.GetActivity(context.Background(), 12)
	require.NoError(t, err)
	assert.NotEmpty(t, activity)

	_, err = g.GetActivity(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGateway_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := remoteConfig(srv.URL)
	cfg.Retries = 1
	cfg.BreakerThreshold = 2
	g, err := NewGateway(cfg)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := g.GetUser(context.Background(), 12)
		assert.ErrorIs(t, err, apperr.ErrNetwork)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestGateway_Config(t *testing.T) {
	_, err := NewGateway(GatewayConfig{Origin: "ftp"})
	assert.Error(t, err)
	_, err = NewGateway(GatewayConfig{Origin: OriginRemote})
	assert.Error(t, err)

	t.Setenv("DATA_ORIGIN", "Remote")
	cfg, err := NewGatewayConfig(config.NewConfig())
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, cfg.Origin)

	t.Setenv("DATA_ORIGIN", "fixtures")
	_, err = NewGatewayConfig(config.NewConfig())
	assert.Error(t, err)
}

func TestUnwrapEnvelope(t *testing.T) {
	assert.JSONEq(t, `{"id": 1}`, string(unwrapEnvelope([]byte(`{"data": {"id": 1}}`))))
	perf := `{"data": [{"value": 1, "kind": 1}]}`
	assert.Equal(t, perf, string(unwrapEnvelope([]byte(perf))))
	assert.Equal(t, "nope", string(unwrapEnvelope([]byte("nope"))))
}
