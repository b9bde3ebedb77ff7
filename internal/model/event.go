package model

// ProgressEvent is emitted once for every completed fetch attempt.
type ProgressEvent struct {
	// URL is the page that just completed.
	URL string `json:"url"`

	// Status is ok or failed.
	Status PageStatus `json:"status"`

	// Completed is the number of attempts finished so far, including this one.
	// It never decreases across events of one job.
	Completed int `json:"completed"`

	// MaxPages is the job's page budget.
	MaxPages int `json:"max_pages"`
}

// Ratio returns Completed/MaxPages, clamped to [0, 1].
func (e ProgressEvent) Ratio() float64 {
	if e.MaxPages <= 0 {
		return 0
	}
	r := float64(e.Completed) / float64(e.MaxPages)
	if r > 1 {
		return 1
	}
	return r
}
