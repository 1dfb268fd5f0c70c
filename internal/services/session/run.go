package session

import (
	"sync"
	"time"
)

// Run is the state of one playlist download: the request, the result
// store, and the mutex-guarded flags the controller and the worker share.
type Run struct {
	ID      string
	Request PlaylistRequest
	Store   *ResultStore

	mu              sync.Mutex
	state           string
	cancelRequested bool
	playlistTitle   string
	totalKnown      int
	message         string
	err             string
	startedAt       time.Time
	finishedAt      time.Time
}

func newRun(id string, req PlaylistRequest) *Run {
	return &Run{
		ID:        id,
		Request:   req,
		Store:     NewResultStore(),
		state:     StateRunning,
		message:   "Preparing downloads...",
		startedAt: time.Now(),
	}
}

// Active reports whether the run still owns a live worker.
func (r *Run) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateRunning
}

// RequestCancel flips the cooperative cancel flag. The worker observes it
// at item boundaries; an in-flight download is never interrupted. No-op
// once the run is terminal or already cancelling.
func (r *Run) RequestCancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning || r.cancelRequested {
		return
	}
	r.cancelRequested = true
	r.message = "Cancelling after the current item..."
}

func (r *Run) CancelRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelRequested
}

func (r *Run) PlaylistTitle() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playlistTitle
}

func (r *Run) setPlaylist(title string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playlistTitle = title
	r.totalKnown = total
}

func (r *Run) setMessage(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.message = msg
}

// markCancelled acknowledges a cancel request; the run is terminal after
// this.
func (r *Run) markCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateCancelled
	r.message = "Download cancelled."
	r.finishedAt = time.Now()
}

func (r *Run) markFinished(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateFinished
	r.message = msg
	r.finishedAt = time.Now()
}

// fail ends the run on a top-level fetch error, with zero items stored.
func (r *Run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateFinished
	r.err = err.Error()
	r.message = "Download failed."
	r.finishedAt = time.Now()
}

// Progress derives the polled view from the run flags and store counts.
func (r *Run) Progress() ProgressReport {
	succeeded, failed := r.Store.Counts()
	r.mu.Lock()
	defer r.mu.Unlock()
	report := ProgressReport{
		State:           r.state,
		PlaylistTitle:   r.playlistTitle,
		Completed:       succeeded,
		Failed:          failed,
		TotalKnown:      r.totalKnown,
		Finished:        r.state == StateFinished || r.state == StateCancelled,
		CancelRequested: r.cancelRequested,
		Message:         r.message,
		Error:           r.err,
	}
	if r.totalKnown > 0 {
		report.Progress = float64(succeeded+failed) / float64(r.totalKnown)
	}
	return report
}
