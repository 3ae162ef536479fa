package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsGate answers whether a URL may be fetched under the host's
// robots.txt. Robots files are cached per host for the lifetime of the
// gate. Failure to retrieve robots.txt fails open.
type RobotsGate struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	hosts map[string]*robotstxt.RobotsData // nil entry = unreachable, allow
}

// NewRobotsGate creates a gate using the given User-Agent for both the
// robots.txt fetch and the group lookup.
func NewRobotsGate(userAgent string, timeout time.Duration) *RobotsGate {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &RobotsGate{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		hosts:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allows reports whether the URL may be fetched. Unparseable URLs are
// rejected; missing or unreachable robots.txt allows everything.
func (g *RobotsGate) Allows(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	data := g.robotsFor(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.Path, g.userAgent)
}

func (g *RobotsGate) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	g.mu.Lock()
	data, ok := g.hosts[u.Host]
	g.mu.Unlock()
	if ok {
		return data
	}

	data = g.fetchRobots(ctx, u)

	g.mu.Lock()
	g.hosts[u.Host] = data
	g.mu.Unlock()
	return data
}

func (g *RobotsGate) fetchRobots(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Debug("robots.txt unreachable, allowing", "host", u.Host, "error", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		slog.Debug("robots.txt unparseable, allowing", "host", u.Host, "error", err)
		return nil
	}
	return data
}
