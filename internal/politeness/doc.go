// Package politeness keeps a crawl from overloading the sites it visits.
//
// The Governor combines two per-host rules:
//   - request spacing: at most one request per host every delay, enforced
//     with a golang.org/x/time/rate token bucket of burst 1
//   - robots.txt: fetched once per host per job with
//     github.com/temoto/robotstxt, a missing or broken file allows everything
//
// A Crawl-delay in robots.txt that is longer than the configured delay
// replaces it for that host.
package politeness
