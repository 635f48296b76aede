package entsoe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appconfig "entsoeflow/config"
	"entsoeflow/internal/metrics"
	"entsoeflow/logger"
	"entsoeflow/models"
	"entsoeflow/processor"
)

// Client fetches documents from the ENTSO-E transparency platform. Responses
// are served from the cache when fresh; fetched responses are cached and
// archived.
type Client struct {
	config     appconfig.EntsoeConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      Cache
	archives   []Archive
	loc        *time.Location
	policy     processor.Policy
	log        *logger.Log

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// NewClient builds a client from cfg. cache may be nil to disable caching;
// archives receive every successful response.
func NewClient(cfg *appconfig.Config, cache Cache, archives ...Archive) (*Client, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	policy, err := processor.ParsePolicy(cfg.Planner.DedupPolicy)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		cache = nopCache{}
	}

	rl := cfg.Entsoe.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		config:     cfg.Entsoe,
		httpClient: newHTTPClient(cfg.Entsoe),
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		cache:      cache,
		archives:   archives,
		loc:        loc,
		policy:     policy,
		log:        logger.GetLogger(),
		sleep:      sleepContext,
		jitter:     rand.Float64,
	}

	c.log.WithComponent("entsoe_client").WithFields(logger.Fields{
		"endpoint":     cfg.Entsoe.Endpoint,
		"max_attempts": cfg.Entsoe.Retry.MaxAttempts,
		"rate_limit":   rps,
		"archives":     len(archives),
		"time_zone":    loc.String(),
	}).Debug("entsoe client initialized")
	return c, nil
}

// Location is the zone used for day boundaries and hour labels.
func (c *Client) Location() *time.Location {
	return c.loc
}

// APIKeyLoaded reports whether a security token is configured.
func (c *Client) APIKeyLoaded() bool {
	return strings.TrimSpace(c.config.APIKey) != ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff is min(cap, base^attempt) seconds plus up to 10% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	secs := math.Pow(c.config.Retry.BackoffBase, float64(attempt))
	if capSecs := c.config.Retry.MaxDelay.Seconds(); capSecs > 0 && secs > capSecs {
		secs = capSecs
	}
	return time.Duration(secs * (1 + 0.1*c.jitter()) * float64(time.Second))
}

// Fetch returns the raw XML for q.
func (c *Client) Fetch(ctx context.Context, q Query) ([]byte, error) {
	log := c.log.WithComponent("entsoe_client").WithDataset(string(q.Dataset), q.Zone).WithFields(logger.Fields{
		"date": q.Date(),
	})

	params, err := q.Params(c.config)
	if err != nil {
		return nil, err
	}

	key, ttl := q.CacheKey(), q.TTL(c.config.TTL)
	if ttl > 0 {
		if data, ok := c.cache.Get(ctx, key, ttl); ok {
			metrics.ObserveCache(true)
			logger.IncrementCacheHit()
			log.WithFields(logger.Fields{"cache_key": key}).Debug("cache hit")
			return data, nil
		}
		metrics.ObserveCache(false)
		logger.IncrementCacheMiss()
	}

	token := strings.TrimSpace(c.config.APIKey)
	if token == "" {
		return nil, models.NewUnauthorized("ENTSOE_API_KEY missing. Put it in .env or environment.", nil)
	}

	start := time.Now()
	data, err := c.request(ctx, q, params, token)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if e, ok := models.AsError(err); ok {
			outcome = e.Code
		}
	}
	metrics.ObserveFetch(string(q.Dataset), outcome, time.Since(start))
	if err != nil {
		return nil, err
	}

	logger.IncrementFetch(string(q.Dataset), len(data))
	logger.LogPerformanceEntry(log, "entsoe_client", "fetch", time.Since(start), logger.Fields{"bytes": len(data)})

	if ttl > 0 {
		if err := c.cache.Set(ctx, key, data, ttl); err != nil {
			log.WithError(err).WithFields(logger.Fields{"cache_key": key}).Warn("failed to write cache")
		}
	}
	for _, a := range c.archives {
		if err := a.Save(ctx, params, data); err != nil {
			log.WithError(err).Warn("failed to archive response")
		}
	}
	return data, nil
}

func (c *Client) request(ctx context.Context, q Query, params url.Values, token string) ([]byte, error) {
	maxAttempts := c.config.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, err := c.attempt(ctx, params, token, attempt)
		if err == nil {
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err

		if e, ok := models.AsError(err); ok {
			switch e.Kind {
			case models.KindRateLimited:
				metrics.ReportRateLimited(c.log, string(q.Dataset), q.Zone, attempt)
			case models.KindUnauthorized, models.KindForbidden:
				metrics.ReportRejected(c.log, string(q.Dataset), e.Status)
			}
			if !e.Retryable() {
				return nil, e
			}
		}

		if attempt < maxAttempts {
			delay := c.backoff(attempt)
			c.log.WithComponent("entsoe_client").WithDataset(string(q.Dataset), q.Zone).WithError(err).WithFields(logger.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
				"timeout": IsTimeout(err),
			}).Warn("request failed, retrying")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	if e, ok := models.AsError(lastErr); ok {
		return nil, e
	}
	return nil, models.NewServerError("ENTSO-E request failed after retries", 0, map[string]interface{}{
		"last_exception": fmt.Sprint(lastErr),
	})
}

func (c *Client) attempt(ctx context.Context, params url.Values, token string, attempt int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("securityToken", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, models.NewClientError(fmt.Sprintf("build request: %v", err), http.StatusBadRequest, nil)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	c.log.WithComponent("entsoe_client").WithFields(logger.Fields{
		"attempt":     attempt,
		"http_status": resp.StatusCode,
		"document":    params.Get("documentType"),
	}).Debug("request completed")

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	return nil, statusError(resp.StatusCode, body, params)
}

// statusError maps a non-200 response onto the error taxonomy. Upstream 5xx
// statuses surface as 502.
func statusError(status int, body []byte, params url.Values) *models.Error {
	detail := processor.ErrorDetail(body)
	requestParams := make(map[string]string, len(params))
	for k := range params {
		if k != "securityToken" {
			requestParams[k] = params.Get(k)
		}
	}
	details := map[string]interface{}{
		"entsoe_message": detail,
		"http_status":    status,
		"request_params": requestParams,
	}

	switch {
	case status == http.StatusUnauthorized:
		return models.NewUnauthorized("401 Unauthorized: "+detail, details)
	case status == http.StatusForbidden:
		return models.NewForbidden("403 Forbidden: "+detail, details)
	case status == http.StatusNotFound:
		return models.NewNotFound("404 Not Found: "+detail, details)
	case status == http.StatusTooManyRequests:
		return models.NewRateLimited("429 Too Many Requests: "+detail, details)
	case status >= 500 && status < 600:
		return models.NewServerError(fmt.Sprintf("%d Server Error: %s", status, detail), http.StatusBadGateway, details)
	}
	return models.NewClientError(fmt.Sprintf("HTTP %d: %s", status, detail), status, details)
}

// IsTimeout reports whether err is a network timeout.
func IsTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
