package job

import "errors"

// State is the lifecycle position of one separation job. Transitions are
// monotonic: queued → analyzing → separating → finalizing → complete, with
// failed reachable from any non-terminal state. No state is ever revisited.
type State string

const (
	StateQueued     State = "queued"
	StateAnalyzing  State = "analyzing"
	StateSeparating State = "separating"
	StateFinalizing State = "finalizing"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// ErrNotFound is returned when polling an unknown or already-cleaned job id.
var ErrNotFound = errors.New("job not found")

// StemResult identifies one registered stem in a completed job.
type StemResult struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
}

// Snapshot is a point-in-time copy of a job's observable state, safe to use
// after the job itself has moved on.
type Snapshot struct {
	ID      string       `json:"jobId"`
	State   State        `json:"state"`
	Message string       `json:"message"`
	Reason  string       `json:"reason,omitempty"`
	TrackID int64        `json:"trackId,omitempty"`
	Stems   []StemResult `json:"stems,omitempty"`
}

// SubmitRequest describes one audio file to separate. AudioPath must already
// be on local disk (uploaded or fetched); WorkDir is the job's scratch
// directory, released by Cleanup.
type SubmitRequest struct {
	AudioPath string
	WorkDir   string
	TrackName string // optional, derived from the filename when empty
	StemCount int
}
