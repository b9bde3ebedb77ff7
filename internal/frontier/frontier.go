package frontier

import (
	"github.com/nao1215/sitedigest/internal/model"
)

// Frontier is the FIFO queue of URLs waiting to be fetched together with the
// set of every URL ever admitted.
//
// A Frontier is owned by a single goroutine (the crawl scheduler) and is
// not safe for concurrent use. Keeping it single-owner means the
// visited-check and the enqueue happen as one step, so a URL can never be
// admitted twice.
//
// Entries come out in the order they were admitted. Since a page at depth d
// only admits links at depth d+1, dispatch order never goes back to a
// shallower depth.
type Frontier struct {
	queue    []model.FrontierEntry
	head     int
	visited  map[string]struct{}
	admitted int
}

// New returns an empty frontier.
func New() *Frontier {
	return &Frontier{
		queue:   make([]model.FrontierEntry, 0, 64),
		visited: make(map[string]struct{}),
	}
}

// Admit adds entry to the back of the queue and marks its URL visited.
// It returns false, leaving the frontier unchanged, when the URL was
// admitted before. entry.URL must already be canonical.
func (f *Frontier) Admit(entry model.FrontierEntry) bool {
	if _, seen := f.visited[entry.URL]; seen {
		return false
	}
	f.visited[entry.URL] = struct{}{}
	f.queue = append(f.queue, entry)
	f.admitted++
	return true
}

// Seen reports whether a canonical URL was ever admitted.
func (f *Frontier) Seen(canonicalURL string) bool {
	_, ok := f.visited[canonicalURL]
	return ok
}

// Next removes and returns the oldest queued entry.
func (f *Frontier) Next() (model.FrontierEntry, bool) {
	if f.head >= len(f.queue) {
		return model.FrontierEntry{}, false
	}
	entry := f.queue[f.head]
	f.queue[f.head] = model.FrontierEntry{}
	f.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if f.head > 1024 && f.head*2 > len(f.queue) {
		f.queue = append(f.queue[:0:0], f.queue[f.head:]...)
		f.head = 0
	}
	return entry, true
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	return len(f.queue) - f.head
}

// Admitted returns the number of entries ever admitted.
func (f *Frontier) Admitted() int {
	return f.admitted
}
