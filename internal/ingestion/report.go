package ingestion

import "time"

// FileError is one isolated per-file failure. A blank FileID means the error
// happened at the cohort level (listing the folder).
type FileError struct {
	FileID   string
	FileName string
	Err      string
}

// CohortReport aggregates one cohort's pass.
type CohortReport struct {
	Cohort           string
	FilesSeen        int
	FilesIngested    int
	FilesSkipped     int
	FilesEmpty       int
	SegmentsUploaded int
	EmptyListing     bool
	Retried          bool
	Errors           []FileError
}

// Report is the outcome of one ingestion run. Operational visibility only;
// correctness of the index does not depend on it.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Cohorts    []CohortReport
}

func (r *Report) FilesSeen() int {
	total := 0
	for _, cr := range r.Cohorts {
		total += cr.FilesSeen
	}
	return total
}

func (r *Report) FilesIngested() int {
	total := 0
	for _, cr := range r.Cohorts {
		total += cr.FilesIngested
	}
	return total
}

func (r *Report) SegmentsUploaded() int {
	total := 0
	for _, cr := range r.Cohorts {
		total += cr.SegmentsUploaded
	}
	return total
}

func (r *Report) ErrorCount() int {
	total := 0
	for _, cr := range r.Cohorts {
		total += len(cr.Errors)
	}
	return total
}

// CohortErrors returns the error list for one cohort, nil when the cohort is
// not in the report.
func (r *Report) CohortErrors(cohort string) []FileError {
	for _, cr := range r.Cohorts {
		if cr.Cohort == cohort {
			return cr.Errors
		}
	}
	return nil
}
