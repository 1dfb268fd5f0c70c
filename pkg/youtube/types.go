package youtube

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// Format selects what a run retrieves for each playlist entry. Audio runs
// are converted to MP3 downstream, video runs keep the progressive MP4
// stream as-is.
type Format string

const (
	FormatAudio Format = "audio"
	FormatVideo Format = "video"
)

// ParseFormat maps a request value onto a Format. The container names
// (mp3/mp4) are accepted as aliases for the canonical values.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "audio", "mp3":
		return FormatAudio, nil
	case "video", "mp4":
		return FormatVideo, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// PlaylistInfo is the resolved form of a playlist request: the metadata the
// service needs plus the entries the worker will walk, already bounded by
// the requested limit.
type PlaylistInfo struct {
	ID    string
	Title string
	Items []PlaylistItem
}

type PlaylistItem struct {
	ID          string
	Title       string
	Author      string
	DurationSec int
}

// ErrEmptyPlaylist is returned when a playlist resolves but contains no
// downloadable entries.
var ErrEmptyPlaylist = errors.New("playlist has no downloadable entries")

type Client struct {
	YTClient *youtube.Client
}

func NewClient() *Client {
	return &Client{
		YTClient: &youtube.Client{HTTPClient: http.DefaultClient},
	}
}
