package models

import "time"

// RegionStatus is the outcome of one region inside a batch run
type RegionStatus string

const (
	RegionDone    RegionStatus = "done"
	RegionSkipped RegionStatus = "skipped" // feed unavailable or unreadable, snapshot untouched
	RegionFailed  RegionStatus = "failed"  // normalization or store failure
)

// RegionResult summarises what a run did to one region
type RegionResult struct {
	Region     Region
	Status     RegionStatus
	Plan       string // reconciliation case applied
	Incoming   int
	Persisted  int
	New        int
	Archived   int
	Duplicates int
	Geocoded   int
	Err        error
	Duration   time.Duration
}

// RunReport collects the results of a batch run over all configured regions
type RunReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Regions    []RegionResult
}

// Counts returns how many regions ended in each status
func (r *RunReport) Counts() map[RegionStatus]int {
	counts := make(map[RegionStatus]int)
	for _, res := range r.Regions {
		counts[res.Status]++
	}
	return counts
}

// Totals returns the number of new and archived listings across regions
func (r *RunReport) Totals() (added, archived int) {
	for _, res := range r.Regions {
		added += res.New
		archived += res.Archived
	}
	return added, archived
}
