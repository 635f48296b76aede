package entsoe

import (
	"net/http"

	appconfig "entsoeflow/config"
)

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

func newHTTPClient(cfg appconfig.EntsoeConfig) *http.Client {
	pool := cfg.ConnectionPool
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
	}
	var rt http.RoundTripper = transport
	if cfg.UserAgent != "" {
		rt = userAgentTransport{agent: cfg.UserAgent, base: transport}
	}
	return &http.Client{Transport: rt, Timeout: cfg.Timeout}
}
