package events

import "time"

const (
	RecordUploadedKind  string = "meeting.intelligence.record.uploaded"
	RecordProcessedKind string = "meeting.intelligence.record.processed"
	RecordFailedKind    string = "meeting.intelligence.record.failed"
	RecordDeletedKind   string = "meeting.intelligence.record.deleted"
)

// RecordEvent is the payload of every record lifecycle event.
type RecordEvent struct {
	RecordID  string    `json:"record_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Filename  string    `json:"filename,omitempty"`
	Strategy  string    `json:"strategy,omitempty"`
	ErrorCode string    `json:"error_code,omitempty"`
	At        time.Time `json:"at"`
}
