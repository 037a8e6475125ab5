package domain

import "time"

// RetrievalEvent is the compact telemetry record published after each
// completed retrieval. It never carries passage text.
type RetrievalEvent struct {
	RequestID      string        `json:"request_id"`
	Mode           RetrievalMode `json:"mode"`
	QueryHash      string        `json:"query_hash"`
	Candidates     int           `json:"candidates"`
	Sources        []string      `json:"sources"`
	FailedSources  []string      `json:"failed_sources"`
	OutOfCorpus    bool          `json:"out_of_corpus"`
	DurationMillis int64         `json:"duration_ms"`
	OccurredAt     time.Time     `json:"occurred_at"`
}
