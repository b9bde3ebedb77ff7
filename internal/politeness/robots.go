package politeness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
)

// maxRobotsBodyBytes limits how much of a robots.txt response is read.
const maxRobotsBodyBytes = 512 * 1024 // 512 KB

// robotsRules is the resolved robots.txt of one host.
// A nil data means allow everything.
type robotsRules struct {
	data *robotstxt.RobotsData
}

var allowAll = &robotsRules{}

// allowed tests the path and query of u against the group for agent,
// falling back to the "*" group.
func (r *robotsRules) allowed(u *url.URL, agent string) bool {
	if r == nil || r.data == nil {
		return true
	}
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return r.group(agent).Test(target)
}

func (r *robotsRules) group(agent string) *robotstxt.Group {
	grp := r.data.FindGroup(agent)
	if grp == nil {
		grp = r.data.FindGroup("*")
	}
	return grp
}

// robotsFor returns the rules for the host of u, fetching robots.txt on first
// use. Concurrent first uses share one fetch. The only error is ctx's.
func (g *Governor) robotsFor(ctx context.Context, u *url.URL, key string) (*robotsRules, error) {
	g.mu.Lock()
	if st, ok := g.hosts[key]; ok && st.robots != nil {
		g.mu.Unlock()
		return st.robots, nil
	}
	g.mu.Unlock()

	v, err, _ := g.robotsGroup.Do(key, func() (any, error) {
		// A waiter may arrive after the previous flight stored its result.
		g.mu.Lock()
		if st, ok := g.hosts[key]; ok && st.robots != nil {
			g.mu.Unlock()
			return st.robots, nil
		}
		g.mu.Unlock()

		if err := g.wait(ctx, key); err != nil {
			return nil, err
		}

		rules := g.fetchRobots(ctx, u)

		g.mu.Lock()
		g.stateLocked(key).robots = rules
		g.mu.Unlock()

		if rules.data != nil {
			if grp := rules.group(g.userAgent); grp != nil && grp.CrawlDelay > 0 {
				g.raiseDelay(key, grp.CrawlDelay)
			}
		}
		return rules, nil
	})
	if err != nil {
		return nil, err
	}
	rules, ok := v.(*robotsRules)
	if !ok {
		return allowAll, nil
	}
	return rules, nil
}

// fetchRobots downloads and parses robots.txt. Any failure, including a
// non-2xx status, yields allow-all.
func (g *Governor) fetchRobots(ctx context.Context, u *url.URL) *robotsRules {
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()

	body, status, err := g.doFetch(ctx, robotsURL)
	if err != nil {
		g.logger.Debug("robots.txt unavailable, allowing all",
			"url", robotsURL,
			"error", err,
		)
		return allowAll
	}
	if status < 200 || status >= 300 {
		g.logger.Debug("robots.txt not found, allowing all",
			"url", robotsURL,
			"status", status,
		)
		return allowAll
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		g.logger.Debug("robots.txt unparsable, allowing all",
			"url", robotsURL,
			"error", err,
		)
		return allowAll
	}
	return &robotsRules{data: data}
}

func (g *Governor) doFetch(ctx context.Context, robotsURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create robots request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch robots: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read robots: %w", err)
	}
	return body, resp.StatusCode, nil
}
