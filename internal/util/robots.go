package util

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/temoto/robotstxt"
)

// RobotsGate checks addresses against the robots.txt of their host
type RobotsGate struct {
	cache  map[string]*robotstxt.RobotsData
	mu     sync.Mutex
	client *resty.Client
	agent  string
}

// NewRobotsGate creates a gate that fetches robots.txt through client
func NewRobotsGate(client *resty.Client, userAgent string) *RobotsGate {
	return &RobotsGate{
		cache:  make(map[string]*robotstxt.RobotsData),
		client: client,
		agent:  NormalizeUserAgent(userAgent),
	}
}

// Allowed reports whether u may be fetched and the host's crawl delay.
// An unreachable robots.txt allows everything.
func (g *RobotsGate) Allowed(ctx context.Context, u *url.URL) (bool, time.Duration) {
	data := g.robotsFor(ctx, u)
	if data == nil {
		return true, 0
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	var delay time.Duration
	if group := data.FindGroup(g.agent); group != nil {
		delay = group.CrawlDelay
	}
	return data.TestAgent(path, g.agent), delay
}

// robotsFor returns the cached robots data of u's host, fetching it once
func (g *RobotsGate) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	g.mu.Lock()
	data, ok := g.cache[key]
	g.mu.Unlock()
	if ok {
		return data
	}

	resp, err := g.client.R().SetContext(ctx).Get(key + "/robots.txt")
	if err != nil {
		return nil
	}
	data, err = robotstxt.FromStatusAndBytes(resp.StatusCode(), resp.Body())
	if err != nil {
		return nil
	}

	g.mu.Lock()
	g.cache[key] = data
	g.mu.Unlock()
	return data
}

// NormalizeUserAgent reduces a user agent to its product token for robots.txt matching
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) > 0 {
		return strings.Split(parts[0], "/")[0]
	}
	return ua
}
