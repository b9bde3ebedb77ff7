package model

import (
	"errors"
	"testing"
	"time"
)

// TestNewCrawlJob tests the default job values.
func TestNewCrawlJob(t *testing.T) {
	t.Parallel()

	job := NewCrawlJob("https://example.com/docs")

	if job.MaxDepth != 3 {
		t.Errorf("MaxDepth = %d, want 3", job.MaxDepth)
	}
	if job.MaxPages != 1000 {
		t.Errorf("MaxPages = %d, want 1000", job.MaxPages)
	}
	if job.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", job.Concurrency)
	}
	if job.Delay != 250*time.Millisecond {
		t.Errorf("Delay = %v, want 250ms", job.Delay)
	}
	if job.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v, want 20s", job.Timeout)
	}
	if job.RestrictPath || job.FollowLinks || job.RespectRobots {
		t.Error("scope toggles should default to false")
	}
	if !job.Extract.CleanHTML || !job.Extract.IgnoreEPUBs || job.Extract.IncludeImages {
		t.Errorf("unexpected extract defaults: %+v", job.Extract)
	}
	if err := job.Validate(); err != nil {
		t.Errorf("default job should be valid: %v", err)
	}
}

// TestCrawlJobValidate tests validation errors.
func TestCrawlJobValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*CrawlJob)
		wantErr error
	}{
		{name: "relative start url", mutate: func(j *CrawlJob) { j.StartURL = "/docs" }, wantErr: ErrInvalidStartURL},
		{name: "ftp start url", mutate: func(j *CrawlJob) { j.StartURL = "ftp://example.com/" }, wantErr: ErrInvalidStartURL},
		{name: "unparsable start url", mutate: func(j *CrawlJob) { j.StartURL = "http://[::1" }, wantErr: ErrInvalidStartURL},
		{name: "negative depth", mutate: func(j *CrawlJob) { j.MaxDepth = -1 }, wantErr: ErrInvalidMaxDepth},
		{name: "zero pages", mutate: func(j *CrawlJob) { j.MaxPages = 0 }, wantErr: ErrInvalidMaxPages},
		{name: "zero concurrency", mutate: func(j *CrawlJob) { j.Concurrency = 0 }, wantErr: ErrInvalidConcurrency},
		{name: "negative delay", mutate: func(j *CrawlJob) { j.Delay = -time.Second }, wantErr: ErrInvalidDelay},
		{name: "zero timeout", mutate: func(j *CrawlJob) { j.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "zero body size", mutate: func(j *CrawlJob) { j.MaxBodySize = 0 }, wantErr: ErrInvalidMaxBodySize},
		{name: "zero depth is valid", mutate: func(j *CrawlJob) { j.MaxDepth = 0 }, wantErr: nil},
		{name: "zero delay is valid", mutate: func(j *CrawlJob) { j.Delay = 0 }, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := NewCrawlJob("https://example.com/")
			tt.mutate(&job)

			err := job.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestCrawlJobClone tests that a clone does not share headers.
func TestCrawlJobClone(t *testing.T) {
	t.Parallel()

	job := NewCrawlJob("https://example.com/")
	job.Headers = map[string]string{"X-Token": "a"}

	clone := job.Clone()
	job.Headers["X-Token"] = "b"

	if clone.Headers["X-Token"] != "a" {
		t.Errorf("clone shares header map with original: %q", clone.Headers["X-Token"])
	}
}
