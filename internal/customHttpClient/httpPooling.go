package customHttpClient

import (
	"net/http"
	"time"

	"github.com/akolanti/HybridRAG/internal/config"
)

// one transport for every provider so keep-alive connections are shared
var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// New returns a client on the pooled transport. timeout bounds a whole request including
// reading the body, zero leaves it to the caller's context.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: customTransport,
		Timeout:   timeout,
	}
}

func CloseIdle() {
	customTransport.CloseIdleConnections()
}
