// Package main provides the entry point for the sitedigest CLI.
//
// sitedigest crawls a website from a start URL and extracts the readable
// content of every page it reaches, within depth, page and rate limits.
//
// Usage:
//
//	sitedigest crawl <url> [url...]
//	sitedigest history [url]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
