package session

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/internal"
	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/internal/naming"
	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/pkg/youtube"
	"github.com/gcottom/go-zaplog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StartRun validates the request, applies the limit policy and starts the
// background worker for the session. An empty sessionID allocates a fresh
// session; the returned ID is the one the run lives under. Rejected
// requests leave any existing run untouched.
func (s *Service) StartRun(ctx context.Context, sessionID string, req PlaylistRequest) (string, error) {
	if err := s.validate(&req); err != nil {
		zaplog.WarnC(ctx, "rejected start request", zap.String("url", req.URL), zap.Error(err))
		return sessionID, err
	}
	sess := s.getOrCreateSession(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = time.Now()
	if sess.run != nil && sess.run.Active() {
		return sess.ID, ErrRunActive
	}
	run := newRun(uuid.NewString(), req)
	sess.run = run
	zaplog.InfoC(ctx, "starting download run",
		zap.String("sessionID", sess.ID), zap.String("runID", run.ID),
		zap.String("url", req.URL), zap.String("format", string(req.Format)), zap.Int("limit", req.Limit))
	go s.RunWorker(context.Background(), run)
	return sess.ID, nil
}

// CancelRun requests cancellation of the session's active run. Idempotent;
// a no-op when the session or an active run does not exist.
func (s *Service) CancelRun(ctx context.Context, sessionID string) {
	sess, ok := s.getSession(sessionID)
	if !ok {
		return
	}
	sess.mu.Lock()
	sess.lastSeen = time.Now()
	run := sess.run
	sess.mu.Unlock()
	if run == nil {
		return
	}
	zaplog.InfoC(ctx, "cancel requested", zap.String("sessionID", sessionID), zap.String("runID", run.ID))
	run.RequestCancel()
}

// Progress reports the state of the session's current run. A session with
// no run yet reports the idle state.
func (s *Service) Progress(ctx context.Context, sessionID string) (ProgressReport, error) {
	run, err := s.currentRun(sessionID)
	if err != nil {
		return ProgressReport{}, err
	}
	if run == nil {
		return ProgressReport{State: StateIdle}, nil
	}
	return run.Progress(), nil
}

// Results returns a point-in-time copy of the items the session's run has
// completed so far, in completion order.
func (s *Service) Results(ctx context.Context, sessionID string) ([]DownloadItem, error) {
	run, err := s.currentRun(sessionID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return []DownloadItem{}, nil
	}
	return run.Store.Snapshot(), nil
}

// Item looks up one downloadable payload by its token.
func (s *Service) Item(ctx context.Context, sessionID, token string) (*DownloadItem, error) {
	run, err := s.currentRun(sessionID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrUnknownItem
	}
	for _, item := range run.Store.Snapshot() {
		if item.Token == token {
			out := item
			return &out, nil
		}
	}
	return nil, ErrUnknownItem
}

// BuildArchive bundles every succeeded payload into an in-memory zip under
// the branded filenames, in completion order. Safe to call while the run
// is still going: the archive covers whatever has completed by then.
func (s *Service) BuildArchive(ctx context.Context, sessionID string) (*Archive, error) {
	run, err := s.currentRun(sessionID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrEmptyResult
	}
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	count := 0
	for _, item := range run.Store.Snapshot() {
		if item.Status != StatusSucceeded {
			continue
		}
		w, err := zw.Create(item.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to add %q to archive: %w", item.Filename, err)
		}
		if _, err = w.Write(item.Payload); err != nil {
			return nil, fmt.Errorf("failed to write %q to archive: %w", item.Filename, err)
		}
		count++
	}
	if count == 0 {
		return nil, ErrEmptyResult
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	name := naming.ArchiveName(run.PlaylistTitle(), run.Request.Format)
	zaplog.InfoC(ctx, "archive built", zap.String("sessionID", sessionID), zap.String("name", name), zap.Int("items", count), zap.Int("bytes", buf.Len()))
	return &Archive{Name: name, Data: buf.Bytes()}, nil
}

var (
	playlistIDRegex  = regexp.MustCompile(`^[A-Za-z0-9_-]{13,42}$`)
	playlistURLRegex = regexp.MustCompile(`[?&]list=([A-Za-z0-9_-]{13,42})`)
)

// validate normalizes the request in place. Mix playlists with no explicit
// limit get the auto limit, and every run is clamped to the configured hard
// cap.
func (s *Service) validate(req *PlaylistRequest) error {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	if !looksLikePlaylist(req.URL) {
		return fmt.Errorf("%w: not a playlist url or id", ErrInvalidRequest)
	}
	if req.Format != youtube.FormatAudio && req.Format != youtube.FormatVideo {
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidRequest, req.Format)
	}
	if req.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidRequest)
	}
	if req.Limit == 0 && s.MixAutoLimit > 0 && internal.IsMixPlaylist(req.URL) {
		req.Limit = s.MixAutoLimit
	}
	if s.MaxItems > 0 && (req.Limit == 0 || req.Limit > s.MaxItems) {
		req.Limit = s.MaxItems
	}
	return nil
}

// looksLikePlaylist accepts a bare playlist ID or an http(s) URL carrying
// a list parameter. Anything deeper is left to the resolver.
func looksLikePlaylist(raw string) bool {
	if playlistIDRegex.MatchString(raw) {
		return true
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return playlistURLRegex.MatchString(raw)
}

func (s *Service) getOrCreateSession(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	actual, _ := s.Sessions.LoadOrStore(id, &Session{ID: id, lastSeen: time.Now()})
	return actual.(*Session)
}

func (s *Service) getSession(id string) (*Session, bool) {
	data, ok := s.Sessions.Load(id)
	if !ok {
		return nil, false
	}
	sess, ok := data.(*Session)
	return sess, ok
}

func (s *Service) currentRun(sessionID string) (*Run, error) {
	sess, ok := s.getSession(sessionID)
	if !ok {
		return nil, ErrUnknownSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = time.Now()
	return sess.run, nil
}

// SessionJanitor evicts idle sessions for the life of the process. Started
// from main.
func (s *Service) SessionJanitor() {
	for {
		time.Sleep(time.Minute)
		s.ReapIdleSessions(time.Now())
	}
}

// ReapIdleSessions drops sessions idle past the TTL whose run is not
// active, and returns how many were dropped. Payloads become collectable
// once the session entry is gone.
func (s *Service) ReapIdleSessions(now time.Time) int {
	if s.SessionTTL <= 0 {
		return 0
	}
	reaped := 0
	s.Sessions.Range(func(key, value any) bool {
		sess, ok := value.(*Session)
		if !ok {
			return true
		}
		sess.mu.Lock()
		idle := now.Sub(sess.lastSeen) > s.SessionTTL
		active := sess.run != nil && sess.run.Active()
		sess.mu.Unlock()
		if idle && !active {
			s.Sessions.Delete(key)
			reaped++
			zaplog.InfoC(context.Background(), "session evicted", zap.String("sessionID", sess.ID))
		}
		return true
	})
	return reaped
}
