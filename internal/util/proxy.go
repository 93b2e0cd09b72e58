package util

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// NewProxyFunc builds a transport proxy function from configured proxies.
// Unset values fall back to HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
// Loopback hosts are never proxied.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" && noProxy == "" {
		return http.ProxyFromEnvironment
	}

	env := httpproxy.FromEnvironment()
	cfg := &httpproxy.Config{
		HTTPProxy:  firstNonEmpty(httpProxy, env.HTTPProxy),
		HTTPSProxy: firstNonEmpty(httpsProxy, env.HTTPSProxy),
		NoProxy:    firstNonEmpty(noProxy, env.NoProxy),
	}
	proxyFor := cfg.ProxyFunc()

	return func(req *http.Request) (*url.URL, error) {
		return proxyFor(req.URL)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
