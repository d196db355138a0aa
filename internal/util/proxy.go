package util

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// NewProxyFunc creates a proxy function for HTTP clients.
// If no proxy URL is provided, falls back to environment variables.
func NewProxyFunc(proxyURL string) func(*http.Request) (*url.URL, error) {
	if proxyURL == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		return url.Parse(proxyURL)
	}
}

// NewHTTPClient returns a client with the given timeout and proxy settings
func NewHTTPClient(timeout time.Duration, proxyURL string) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(proxyURL)
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// DialContext opens a TCP connection, honoring ALL_PROXY and NO_PROXY.
// Used for protocols that http.ProxyFromEnvironment does not cover, such as SMTP.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := proxy.FromEnvironmentUsing(&net.Dialer{})
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}
	return dialer.Dial(network, addr)
}
