package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gcottom/go-zaplog"
	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
)

// Playlist resolves a playlist URL or ID into its entries. Entries without
// an ID are skipped, and when limit is greater than zero only the first
// limit entries are kept. A playlist that resolves to zero usable entries
// is reported as ErrEmptyPlaylist.
func (s *Client) Playlist(ctx context.Context, url string, limit int) (*PlaylistInfo, error) {
	zaplog.InfoC(ctx, "resolving playlist", zap.String("url", url), zap.Int("limit", limit))
	playlist, err := s.YTClient.GetPlaylistContext(ctx, url)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to resolve playlist", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("failed to resolve playlist: %w", err)
	}
	items := make([]PlaylistItem, 0, len(playlist.Videos))
	for _, entry := range playlist.Videos {
		if entry == nil || entry.ID == "" {
			continue
		}
		items = append(items, PlaylistItem{
			ID:          entry.ID,
			Title:       entry.Title,
			Author:      entry.Author,
			DurationSec: int(entry.Duration / time.Second),
		})
		if limit > 0 && len(items) == limit {
			break
		}
	}
	if len(items) == 0 {
		zaplog.ErrorC(ctx, "playlist resolved with no usable entries", zap.String("playlistID", playlist.ID))
		return nil, ErrEmptyPlaylist
	}
	zaplog.InfoC(ctx, "playlist resolved", zap.String("playlistID", playlist.ID), zap.String("title", playlist.Title), zap.Int("count", len(items)))
	return &PlaylistInfo{ID: playlist.ID, Title: playlist.Title, Items: items}, nil
}

// Download fetches the stream bytes for a single playlist entry in the
// requested format. Audio selects the highest-bitrate audio-only stream,
// video selects the best progressive (muxed audio+video) stream.
func (s *Client) Download(ctx context.Context, item PlaylistItem, format Format) ([]byte, error) {
	zaplog.InfoC(ctx, "fetching video info", zap.String("id", item.ID))
	videoInfo, err := s.YTClient.GetVideoContext(ctx, item.ID)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to get video info", zap.String("id", item.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}
	var bestFormat *youtube.Format
	if format == FormatVideo {
		bestFormat = getBestVideoFormat(videoInfo.Formats)
	} else {
		bestFormat = getBestAudioFormat(videoInfo.Formats.Type("audio"))
	}
	if bestFormat == nil {
		zaplog.ErrorC(ctx, "no usable stream format", zap.String("id", item.ID), zap.String("format", string(format)))
		return nil, fmt.Errorf("no usable %s stream for video %s", format, item.ID)
	}
	zaplog.InfoC(ctx, "stream format selected", zap.String("id", item.ID), zap.Int("itag", bestFormat.ItagNo), zap.Int("bitrate", bestFormat.Bitrate))

	stream, _, err := s.YTClient.GetStreamContext(ctx, videoInfo, bestFormat)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to get stream", zap.String("id", item.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()
	streamBytes, err := io.ReadAll(stream)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to read stream", zap.String("id", item.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	zaplog.InfoC(ctx, "stream downloaded", zap.String("id", item.ID), zap.Int("bytes", len(streamBytes)))
	return streamBytes, nil
}

// IsRestricted reports whether err stems from access restrictions on the
// video itself (private, region locked, age gated) rather than a transport
// problem.
func IsRestricted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, youtube.ErrVideoPrivate) ||
		errors.Is(err, youtube.ErrLoginRequired) ||
		errors.Is(err, youtube.ErrNotPlayableInEmbed) {
		return true
	}
	var playability *youtube.ErrPlayabiltyStatus
	return errors.As(err, &playability)
}

func getBestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var bestFormat *youtube.Format
	maxBitrate := 0
	for _, format := range formats {
		if format.Bitrate > maxBitrate {
			best := format
			bestFormat = &best
			maxBitrate = format.Bitrate
		}
	}
	return bestFormat
}

// getBestVideoFormat picks a progressive stream so the result plays without
// muxing. MP4 containers win over WebM at equal resolution.
func getBestVideoFormat(formats youtube.FormatList) *youtube.Format {
	var bestFormat *youtube.Format
	bestScore := 0
	for _, format := range formats {
		if format.AudioChannels == 0 || format.Width == 0 {
			continue
		}
		score := format.Height * 2
		if strings.Contains(format.MimeType, "mp4") {
			score++
		}
		if score > bestScore {
			best := format
			bestFormat = &best
			bestScore = score
		}
	}
	return bestFormat
}
