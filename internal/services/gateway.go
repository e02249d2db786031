package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"fitboard/internal/apperr"
	"fitboard/internal/config"
	"fitboard/internal/fixtures"
	"fitboard/internal/models"
	"fitboard/internal/normalize"
	"fitboard/internal/telemetry"

	"golang.org/x/sync/errgroup"
)

type GatewayConfig struct {
	Origin Origin

	// remote origin only
	BaseURL          string
	Timeout          time.Duration
	Retries          int
	RetryDelay       time.Duration
	BreakerThreshold int
	BreakerTimeout   time.Duration
	RawCacheTTL      time.Duration
	HTTPClient       *http.Client

	// mock origin only; the embedded set when nil
	Fixtures *fixtures.Set
}

func NewGatewayConfig(cfg *config.Config) (GatewayConfig, error) {
	origin, err := ParseOrigin(cfg.DataOrigin)
	if err != nil {
		return GatewayConfig{}, err
	}
	return GatewayConfig{
		Origin:           origin,
		BaseURL:          cfg.SportAPIURL,
		Timeout:          cfg.UpstreamTimeout,
		Retries:          cfg.UpstreamRetries,
		RetryDelay:       cfg.UpstreamRetryDelay,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerTimeout:   cfg.BreakerTimeout,
		RawCacheTTL:      cfg.RawCacheTTL,
	}, nil
}

// Gateway retrieves per-user entities from the configured origin and hands
// out normalized values only. Instances are independent of each other.
type Gateway struct {
	origin Origin
	src    source
}

func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	g := &Gateway{origin: cfg.Origin}

	switch cfg.Origin {
	case OriginMock:
		set := cfg.Fixtures
		if set == nil {
			var err error
			if set, err = fixtures.Load(); err != nil {
				return nil, fmt.Errorf("load fixtures: %w", err)
			}
		}
		g.src = &mockSource{set: set}
	case OriginRemote:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("remote origin needs a base URL")
		}
		g.src = newRemoteSource(cfg)
	default:
		return nil, fmt.Errorf("unknown data origin %q", cfg.Origin)
	}

	return g, nil
}

func (g *Gateway) Origin() Origin {
	return g.origin
}

func (g *Gateway) raw(ctx context.Context, e models.Entity, id int) ([]byte, error) {
	if id <= 0 {
		return nil, apperr.NotFound("gateway."+string(e), "invalid user id %d", id)
	}
	return g.src.fetch(ctx, e, id)
}

func (g *Gateway) remember(e models.Entity, id int, body []byte) {
	if pc, ok := g.src.(payloadCache); ok {
		pc.remember(e, id, body)
	}
}

func (g *Gateway) record(e models.Entity, id int, start time.Time, anomalies []models.Anomaly, err error) {
	result := "ok"
	if err != nil {
		result = apperr.KindOf(err).String()
		slog.Warn("Gateway fetch failed", "origin", g.origin, "entity", e, "user_id", id, "error", err)
	}
	telemetry.RecordGatewayFetch(string(g.origin), string(e), result, time.Since(start).Seconds())

	for _, a := range anomalies {
		telemetry.RecordAnomaly(a.Entity, a.Field)
		slog.Warn("Normalization anomaly",
			"origin", g.origin,
			"user_id", id,
			"entity", a.Entity,
			"field", a.Field,
			"value", a.Value,
			"reason", a.Reason,
		)
	}
}

// load runs retrieval, shape check and normalization for one entity.
func load[R, T any](
	ctx context.Context,
	g *Gateway,
	e models.Entity,
	id int,
	check func(int, *R) error,
	norm func(R) (T, []models.Anomaly, error),
) (out T, err error) {
	start := time.Now()
	var anomalies []models.Anomaly
	defer func() { g.record(e, id, start, anomalies, err) }()

	body, err := g.raw(ctx, e, id)
	if err != nil {
		return out, err
	}
	raw, err := decode[R]("decode."+string(e), body)
	if err != nil {
		return out, err
	}
	if err = check(id, &raw); err != nil {
		return out, err
	}
	g.remember(e, id, body)
	out, anomalies, err = norm(raw)
	return out, err
}

func (g *Gateway) GetUser(ctx context.Context, id int) (models.UserSummary, error) {
	return load(ctx, g, models.EntityUser, id, checkUser, normalize.Summary)
}

func (g *Gateway) GetActivity(ctx context.Context, id int) (models.ActivityRecord, error) {
	return load(ctx, g, models.EntityActivity, id, checkActivity, normalize.Activity)
}

func (g *Gateway) GetAverageSessions(ctx context.Context, id int) (models.SessionRecord, error) {
	return load(ctx, g, models.EntityAverageSessions, id, checkAverageSessions, normalize.Sessions)
}

func (g *Gateway) GetPerformance(ctx context.Context, id int) (models.PerformanceRecord, error) {
	return load(ctx, g, models.EntityPerformance, id, checkPerformance,
		func(raw models.RawPerformance) (models.PerformanceRecord, []models.Anomaly, error) {
			return normalize.Performance(raw.Kind, raw.Data)
		})
}

// GetBundle fetches the four entities concurrently and assembles a fresh
// canonical bundle. Any failure fails the whole bundle.
func (g *Gateway) GetBundle(ctx context.Context, id int) (*models.CanonicalUserBundle, error) {
	var (
		user        models.RawUser
		activity    models.RawActivity
		sessions    models.RawAverageSessions
		performance models.RawPerformance
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return fetchChecked(egCtx, g, models.EntityUser, id, checkUser, &user)
	})
	eg.Go(func() error {
		return fetchChecked(egCtx, g, models.EntityActivity, id, checkActivity, &activity)
	})
	eg.Go(func() error {
		return fetchChecked(egCtx, g, models.EntityAverageSessions, id, checkAverageSessions, &sessions)
	})
	eg.Go(func() error {
		return fetchChecked(egCtx, g, models.EntityPerformance, id, checkPerformance, &performance)
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	start := time.Now()
	bundle, err := normalize.Bundle(user, activity, sessions, performance)
	var anomalies []models.Anomaly
	if bundle != nil {
		anomalies = bundle.Anomalies
	}
	g.record("bundle", id, start, anomalies, err)
	return bundle, err
}

func fetchChecked[R any](ctx context.Context, g *Gateway, e models.Entity, id int, check func(int, *R) error, out *R) error {
	body, err := g.raw(ctx, e, id)
	if err == nil {
		*out, err = decode[R]("decode."+string(e), body)
	}
	if err == nil {
		err = check(id, out)
	}
	if err != nil {
		g.record(e, id, time.Now(), nil, err)
		return err
	}
	g.remember(e, id, body)
	return nil
}
