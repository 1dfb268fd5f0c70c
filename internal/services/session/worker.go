package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/internal/naming"
	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/pkg/youtube"
	"github.com/gcottom/go-zaplog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunWorker executes one playlist run from resolution to terminal state.
// Entries are processed strictly one at a time; the upstream service rate
// limits aggressive clients, so the sequencing must stay sequential even
// though the pipeline stages could overlap.
func (s *Service) RunWorker(ctx context.Context, run *Run) {
	info, err := s.Fetcher.Playlist(ctx, run.Request.URL, run.Request.Limit)
	if err != nil {
		zaplog.ErrorC(ctx, "playlist resolution failed", zap.String("runID", run.ID), zap.Error(err))
		run.fail(fmt.Errorf("failed to resolve playlist: %w", err))
		return
	}
	items := info.Items
	if run.Request.Limit > 0 && len(items) > run.Request.Limit {
		items = items[:run.Request.Limit]
	}
	run.setPlaylist(info.Title, len(items))
	zaplog.InfoC(ctx, "run started", zap.String("runID", run.ID), zap.String("playlist", info.Title), zap.Int("items", len(items)))

	namer := naming.NewNamer()
	for i, entry := range items {
		if run.CancelRequested() {
			zaplog.InfoC(ctx, "run cancelled", zap.String("runID", run.ID), zap.Int("stored", run.Store.Len()))
			run.markCancelled()
			return
		}
		run.setMessage(fmt.Sprintf("Downloading %q (%d/%d)", entry.Title, i+1, len(items)))
		run.Store.Append(s.processEntry(ctx, run, namer, i, entry))
	}
	succeeded, failed := run.Store.Counts()
	run.markFinished(fmt.Sprintf("Completed %d of %d items.", succeeded, succeeded+failed))
	zaplog.InfoC(ctx, "run finished", zap.String("runID", run.ID), zap.Int("succeeded", succeeded), zap.Int("failed", failed))
}

// processEntry runs the per-item pipeline: fetch, convert for audio, tag
// best-effort, brand. Failures come back as failed items so the run keeps
// going with the rest of the playlist.
func (s *Service) processEntry(ctx context.Context, run *Run, namer *naming.Namer, index int, entry youtube.PlaylistItem) DownloadItem {
	item := DownloadItem{
		Index:       index,
		Title:       entry.Title,
		Filename:    namer.Brand(entry.Title, run.Request.Format),
		DurationSec: entry.DurationSec,
		Duration:    naming.FormatDuration(entry.DurationSec),
		Token:       fmt.Sprintf("%d-%s", index, strings.ReplaceAll(uuid.NewString(), "-", "")),
		Status:      StatusPending,
	}
	item.MIMEType = naming.MIMEType(item.Filename)

	data, err := s.downloadEntry(ctx, entry, run.Request.Format)
	if err != nil {
		if youtube.IsRestricted(err) {
			zaplog.WarnC(ctx, "entry restricted", zap.String("id", entry.ID), zap.Error(err))
		} else {
			zaplog.ErrorC(ctx, "entry download failed", zap.String("id", entry.ID), zap.Error(err))
		}
		item.Status = StatusFailed
		item.Error = err.Error()
		return item
	}
	if run.Request.Format == youtube.FormatAudio {
		if data, err = s.convertEntry(ctx, data); err != nil {
			zaplog.ErrorC(ctx, "entry conversion failed", zap.String("id", entry.ID), zap.Error(err))
			item.Status = StatusFailed
			item.Error = err.Error()
			return item
		}
		if tagged, tagErr := s.tagEntry(ctx, data, entry); tagErr != nil {
			zaplog.WarnC(ctx, "entry tagging failed, keeping untagged audio", zap.String("id", entry.ID), zap.Error(tagErr))
		} else {
			data = tagged
		}
	}
	item.Payload = data
	item.Status = StatusSucceeded
	return item
}

func (s *Service) downloadEntry(ctx context.Context, entry youtube.PlaylistItem, format youtube.Format) ([]byte, error) {
	s.DownloadLimiter.Acquire()
	defer s.DownloadLimiter.Release()
	return s.Fetcher.Download(ctx, entry, format)
}

func (s *Service) convertEntry(ctx context.Context, data []byte) ([]byte, error) {
	s.ConversionLimiter.Acquire()
	defer s.ConversionLimiter.Release()
	return s.Converter.ToMP3(ctx, data)
}

func (s *Service) tagEntry(ctx context.Context, data []byte, entry youtube.PlaylistItem) ([]byte, error) {
	s.MetaLimiter.Acquire()
	defer s.MetaLimiter.Release()
	return s.Tagger.Tag(ctx, data, entry.Title, entry.Author)
}
