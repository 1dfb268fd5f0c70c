package session

import (
	"sync"
	"time"

	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/pkg/youtube"
	"github.com/gcottom/semaphore"
)

// Service owns every client session and the download runs inside them.
// The limiters bound fetch, conversion and tagging concurrency across
// sessions; within a run items are always processed one at a time.
type Service struct {
	DownloadLimiter   *semaphore.Semaphore
	ConversionLimiter *semaphore.Semaphore
	MetaLimiter       *semaphore.Semaphore
	Sessions          *sync.Map
	Fetcher           Fetcher
	Converter         Converter
	Tagger            Tagger
	MixAutoLimit      int
	MaxItems          int
	SessionTTL        time.Duration
}

// Session ties one client to its current run. A session holds at most one
// Run; starting a new run replaces a terminal one wholesale.
type Session struct {
	ID string

	mu       sync.Mutex
	run      *Run
	lastSeen time.Time
}

// PlaylistRequest is a start request after validation and limit policy.
type PlaylistRequest struct {
	URL    string
	Format youtube.Format
	Limit  int
}

// DownloadItem is one finished playlist entry: either a payload ready to
// serve or the failure that took its place. Items are built completely
// before they reach the store and never change afterwards.
type DownloadItem struct {
	Index       int    `json:"index"`
	Title       string `json:"title"`
	Filename    string `json:"filename"`
	Payload     []byte `json:"-"`
	MIMEType    string `json:"mime_type"`
	DurationSec int    `json:"duration_seconds,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Token       string `json:"token"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run states. Idle is the implicit state of a session with no run yet;
// finished and cancelled are both terminal.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateFinished  = "finished"
	StateCancelled = "cancelled"
)

// ProgressReport is the polled view of a session's current run.
type ProgressReport struct {
	State           string  `json:"state"`
	PlaylistTitle   string  `json:"playlist_title,omitempty"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	TotalKnown      int     `json:"total_known,omitempty"`
	Finished        bool    `json:"finished"`
	CancelRequested bool    `json:"cancel_requested,omitempty"`
	Progress        float64 `json:"progress"`
	Message         string  `json:"message,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Archive is a zip bundle of every succeeded item in a run.
type Archive struct {
	Name string
	Data []byte
}
