package models

import "time"

// IngestRun summarises one batch ingestion run for operational visibility.
type IngestRun struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Cohorts          int
	FilesSeen        int
	FilesIngested    int
	SegmentsUploaded int
	ErrorCount       int
}

// IngestFileError is one per-file failure inside a run. Recorded, never
// fatal to the run.
type IngestFileError struct {
	ID        int
	RunID     string
	Cohort    string
	FileID    string
	FileName  string
	Error     string
	CreatedAt time.Time
}

// ChatRecord is one answered (or degraded) chat request. Audit only; no
// conversation state is ever read back into the pipeline.
type ChatRecord struct {
	ID        string
	Cohort    string
	Persona   string
	Question  string
	Answer    string
	Outcome   string
	LatencyMS int
	CreatedAt time.Time
}
