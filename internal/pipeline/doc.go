// Package pipeline runs crawl jobs through a fixed sequence of steps:
// crawl, write the report, write the processed-URL list, archive.
//
// Each step receives the Run for one job and fills in its part. Steps are
// plain values implementing Step, so the CLI assembles only the ones the
// flags ask for. BatchProcessor runs several jobs at once with a bounded
// number of concurrent pipelines.
package pipeline
