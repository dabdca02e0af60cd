package journal

import "time"

// Status values recorded for a conversion request. They mirror the pipeline's
// stage progression; failed is terminal alongside responded.
const (
	StatusReceived    = "received"
	StatusValidated   = "validated"
	StatusParsed      = "parsed"
	StatusSynthesized = "synthesized"
	StatusEncoded     = "encoded"
	StatusResponded   = "responded"
	StatusFailed      = "failed"
)

// Entry is one journaled conversion request.
type Entry struct {
	ID              int64
	RequestID       string
	Filename        string
	Status          string
	ErrorCode       string
	ErrorMessage    string
	OutputName      string
	FrameCount      int
	DurationSeconds float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Failed reports whether the entry terminated with an error.
func (e *Entry) Failed() bool {
	return e.Status == StatusFailed
}

// Outcome summarizes a finished request for the journal.
type Outcome struct {
	OutputName      string
	FrameCount      int
	DurationSeconds float64
	ErrorCode       string
	ErrorMessage    string
}
