package session

import (
	"context"

	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/pkg/youtube"
)

// Fetcher resolves playlists and downloads entry streams. Implemented by
// pkg/youtube's Client.
type Fetcher interface {
	Playlist(ctx context.Context, url string, limit int) (*youtube.PlaylistInfo, error)
	Download(ctx context.Context, item youtube.PlaylistItem, format youtube.Format) ([]byte, error)
}

// Converter transcodes a raw audio stream to MP3.
type Converter interface {
	ToMP3(ctx context.Context, data []byte) ([]byte, error)
}

// Tagger writes track metadata into converted audio bytes.
type Tagger interface {
	Tag(ctx context.Context, data []byte, title, artist string) ([]byte, error)
}
