// Package linkfilter decides which discovered links are in scope for a crawl.
//
// A Filter applies, in order: the http(s) scheme check, the domain scope,
// the path restriction, the include and exclude patterns, and the
// file-type toggles of the extract options. The first rule that rejects a
// link is reported by Evaluate.
package linkfilter
