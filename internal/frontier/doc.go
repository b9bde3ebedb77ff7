// Package frontier holds the crawl queue and the visited set.
//
// Every URL is canonicalized before it is compared or stored, so
// http://Example.com:80/docs/ and http://example.com/docs#intro are the
// same entry. The frontier is consumed strictly first-in first-out, which
// gives breadth-first order across depths.
package frontier
