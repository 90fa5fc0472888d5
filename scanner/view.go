package scanner

import (
	"sync"
	"time"

	"gatescan/models"
)

// ViewState is the rendering state of the scan screen.
type ViewState int

const (
	StateIdle ViewState = iota
	StateSuccess
	StateDuplicate
	StateFailure
)

func (s ViewState) String() string {
	switch s {
	case StateSuccess:
		return "success"
	case StateDuplicate:
		return "duplicate"
	case StateFailure:
		return "failure"
	default:
		return "idle"
	}
}

// Result is one rendered outcome. A new submission replaces the previous
// Result wholesale; old and new state are never merged.
type Result struct {
	State      ViewState
	Identifier string
	Message    string
	ScannedAt  time.Time
	Profile    *models.PersonProfile
	LastSeen   *time.Time
}

// View holds the current Result and orders responses. Each submission
// takes a sequence number from Begin; Apply only accepts the most recently
// issued sequence, so a slow response for an earlier scan can never
// overwrite the result of a later one.
type View struct {
	mu      sync.Mutex
	seq     uint64
	current Result
}

func NewView() *View {
	return &View{}
}

// Begin registers a new submission and returns its sequence tag.
func (v *View) Begin() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	return v.seq
}

// Apply installs a result for the submission tagged seq. Stale responses
// (anything but the latest submission) are discarded and Apply reports
// false.
func (v *View) Apply(seq uint64, r Result) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if seq != v.seq {
		return false
	}
	v.current = r
	return true
}

// Clear resets to idle and invalidates any response still in flight.
func (v *View) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	v.current = Result{}
}

// Current returns the result to render.
func (v *View) Current() Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}
