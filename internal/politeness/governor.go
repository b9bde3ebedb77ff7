package politeness

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Decision is the governor's answer for one URL.
type Decision struct {
	// Allowed is false when robots.txt disallows the URL.
	Allowed bool

	// Reason explains a denial.
	Reason string
}

// ReasonRobotsDisallowed is the reason recorded for URLs denied by robots.txt.
const ReasonRobotsDisallowed = "disallowed by robots.txt"

// Governor enforces per-host request spacing and robots.txt rules.
//
// Every host gets its own token bucket with burst 1 that refills once per
// delay. Waiting on it reserves the next slot atomically, so two workers
// heading to the same host are serialized even when they call Clear at the
// same instant, while requests to different hosts never wait on each other.
//
// A Governor is created per crawl job; its robots cache lives exactly as long
// as the job. It is safe for concurrent use.
type Governor struct {
	// client fetches robots.txt. It should be the crawl's HTTP client so
	// robots requests go through the same proxy and headers.
	client *http.Client

	// userAgent is matched against robots.txt groups and sent with robots requests.
	userAgent string

	// delay is the configured minimum spacing between requests to one host.
	delay time.Duration

	// respectRobots enables robots.txt checks.
	respectRobots bool

	// logger receives debug output about robots and delays.
	logger *slog.Logger

	// mu guards hosts.
	mu    sync.Mutex
	hosts map[string]*hostState

	// robotsGroup collapses concurrent robots.txt fetches for one host.
	robotsGroup singleflight.Group
}

// hostState is the per-host politeness state.
type hostState struct {
	// limiter is nil while the host has no delay.
	limiter *rate.Limiter

	// robots is nil until robots.txt has been resolved for the host.
	robots *robotsRules
}

// Option configures a Governor.
type Option func(*Governor)

// WithDelay sets the minimum interval between two requests to the same host.
// Zero disables spacing.
func WithDelay(d time.Duration) Option {
	return func(g *Governor) {
		g.delay = d
	}
}

// WithUserAgent sets the agent used for robots.txt matching.
func WithUserAgent(ua string) Option {
	return func(g *Governor) {
		g.userAgent = ua
	}
}

// WithRobots enables or disables robots.txt compliance.
func WithRobots(respect bool) Option {
	return func(g *Governor) {
		g.respectRobots = respect
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Governor) {
		g.logger = logger
	}
}

// New creates a Governor. client is used only to fetch robots.txt.
func New(client *http.Client, opts ...Option) *Governor {
	g := &Governor{
		client:    client,
		userAgent: "*",
		logger:    slog.Default(),
		hosts:     make(map[string]*hostState),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Clear blocks until a request to u may be initiated and reports whether it
// is allowed at all.
//
// A URL denied by robots.txt is returned immediately without consuming a
// delay slot. The only error is the context's, when ctx is done while waiting.
func (g *Governor) Clear(ctx context.Context, u *url.URL) (Decision, error) {
	key := hostKey(u)

	if g.respectRobots {
		rules, err := g.robotsFor(ctx, u, key)
		if err != nil {
			return Decision{}, err
		}
		if !rules.allowed(u, g.userAgent) {
			return Decision{Allowed: false, Reason: ReasonRobotsDisallowed}, nil
		}
	}

	if err := g.wait(ctx, key); err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: true}, nil
}

// Delay returns the effective spacing for the host of u. It is larger than the
// configured delay when robots.txt asked for a longer Crawl-delay.
func (g *Governor) Delay(u *url.URL) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.hosts[hostKey(u)]
	if !ok || st.limiter == nil {
		return g.delay
	}
	return durationOf(st.limiter.Limit())
}

// wait blocks on the host's limiter, creating it on first use.
func (g *Governor) wait(ctx context.Context, key string) error {
	limiter := g.limiterFor(key)
	if limiter == nil {
		return ctx.Err()
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait for %s: %w", key, err)
	}
	return nil
}

// limiterFor returns the limiter for key, or nil when the host has no delay.
func (g *Governor) limiterFor(key string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.stateLocked(key)
	if st.limiter == nil && g.delay > 0 {
		st.limiter = rate.NewLimiter(rate.Every(g.delay), 1)
	}
	return st.limiter
}

// raiseDelay applies a robots.txt Crawl-delay that is longer than the current spacing.
func (g *Governor) raiseDelay(key string, d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.stateLocked(key)
	switch {
	case st.limiter == nil:
		if d <= g.delay {
			return
		}
		st.limiter = rate.NewLimiter(rate.Every(d), 1)
	case d > durationOf(st.limiter.Limit()):
		st.limiter.SetLimit(rate.Every(d))
	default:
		return
	}
	g.logger.Debug("robots.txt crawl-delay raises host delay",
		"host", key,
		"delay", d,
	)
}

func (g *Governor) stateLocked(key string) *hostState {
	st, ok := g.hosts[key]
	if !ok {
		st = &hostState{}
		g.hosts[key] = st
	}
	return st
}

// hostKey identifies a host for politeness: lowercased host including any
// non-default port. Scheme is ignored, http and https share one budget.
func hostKey(u *url.URL) string {
	return strings.ToLower(u.Host)
}

// durationOf converts a rate limit back to the interval between events.
func durationOf(limit rate.Limit) time.Duration {
	if limit <= 0 || limit == rate.Inf {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}
