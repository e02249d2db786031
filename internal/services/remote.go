package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fitboard/internal/apperr"
	"fitboard/internal/models"
	"fitboard/internal/resilience"

	"github.com/coocood/freecache"
)

const (
	maxPayloadBytes = 1 << 20
	rawCacheBytes   = 8 * 1024 * 1024
)

type remoteSource struct {
	baseURL    string
	client     *http.Client
	breaker    *resilience.CircuitBreaker
	retries    int
	retryDelay time.Duration
	cache      *freecache.Cache
	cacheTTL   int // seconds
}

func newRemoteSource(cfg GatewayConfig) *remoteSource {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	s := &remoteSource{
		baseURL:    cfg.BaseURL,
		client:     client,
		breaker:    resilience.NewCircuitBreaker("sport-api", cfg.BreakerThreshold, cfg.BreakerTimeout),
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
	}
	if ttl := int(cfg.RawCacheTTL / time.Second); ttl > 0 {
		s.cache = freecache.NewCache(rawCacheBytes)
		s.cacheTTL = ttl
	}
	return s
}

func cacheKey(e models.Entity, id int) []byte {
	return []byte(fmt.Sprintf("%s::%d", e, id))
}

// upstreamFailure tells the breaker which errors say something about the
// health of the remote service.
func upstreamFailure(err error) bool {
	return apperr.KindOf(err) == apperr.KindNetwork
}

func (s *remoteSource) fetch(ctx context.Context, e models.Entity, id int) ([]byte, error) {
	key := cacheKey(e, id)
	if s.cache != nil {
		if body, err := s.cache.Get(key); err == nil {
			slog.Debug("Raw cache HIT", "entity", e, "user_id", id)
			return body, nil
		}
	}

	op := "remote." + string(e)
	url := s.baseURL + e.Path(id)

	var body []byte
	err := s.breaker.Execute(func() error {
		return resilience.Retry(ctx, s.retries, s.retryDelay, func() error {
			b, err := s.get(ctx, op, url)
			if err != nil {
				if !upstreamFailure(err) {
					return resilience.Permanent(err)
				}
				return err
			}
			body = b
			return nil
		})
	}, upstreamFailure)
	if errors.Is(err, resilience.ErrOpen) || errors.Is(err, resilience.ErrHalfOpen) {
		return nil, apperr.Network(op, err)
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// remember keeps a payload that passed the shape check. An entry already
// cached keeps its original expiry.
func (s *remoteSource) remember(e models.Entity, id int, body []byte) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.GetOrSet(cacheKey(e, id), body, s.cacheTTL); err != nil {
		slog.Warn("Failed to cache raw payload", "entity", e, "user_id", id, "error", err)
	}
}

func (s *remoteSource) get(ctx context.Context, op, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// caller gave up, the upstream is not to blame
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, apperr.Network(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.NotFound(op, "status %d from %s", resp.StatusCode, url)
	case resp.StatusCode >= 500:
		return nil, apperr.Network(op, fmt.Errorf("server error: %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, resilience.Permanent(apperr.Network(op, fmt.Errorf("bad status code: %d", resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, apperr.Network(op, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}
