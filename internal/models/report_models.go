package models

type IngestStatus string

const (
	IngestStatusSkipped IngestStatus = "skipped"
	IngestStatusBlocked IngestStatus = "blocked"
	IngestStatusError   IngestStatus = "error"
	IngestStatusEmpty   IngestStatus = "empty"
	IngestStatusSuccess IngestStatus = "success"
)

// IngestReport summarizes one container ingestion. Consent and privacy
// outcomes are reported here as statuses, never as errors.
type IngestReport struct {
	Status            IngestStatus `json:"status"`
	Container         string       `json:"container"`
	Message           string       `json:"message,omitempty"`
	PostsSaved        int          `json:"posts_saved"`
	Attempted         int          `json:"attempted"`
	DuplicatesDropped int          `json:"duplicates_dropped"`
}
