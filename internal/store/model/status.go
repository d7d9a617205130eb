package model

// RecordStatus is the lifecycle state of a record.
type RecordStatus string

const (
	StatusPending    RecordStatus = "pending"
	StatusUploading  RecordStatus = "uploading"
	StatusProcessing RecordStatus = "processing"
	StatusProcessed  RecordStatus = "processed"
	StatusFailed     RecordStatus = "failed"
)

var transitions = map[RecordStatus][]RecordStatus{
	StatusPending:    {StatusUploading, StatusProcessing},
	StatusUploading:  {StatusPending, StatusFailed},
	StatusProcessing: {StatusProcessed, StatusFailed},
	// retry is the only way back
	StatusFailed:    {StatusPending},
	StatusProcessed: {},
}

// CanTransition reports whether a record may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to RecordStatus) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s RecordStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

func (s RecordStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s RecordStatus) String() string {
	return string(s)
}
