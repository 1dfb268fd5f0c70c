package meta

import (
	"golang.org/x/oauth2/clientcredentials"
)

// Service enriches and writes audio tags. Spotify lookup is optional: when
// no credentials are configured the seed metadata from the playlist entry
// is used as-is.
type Service struct {
	SpotifyConfig *clientcredentials.Config
}

type TrackMeta struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	CoverArtURL string `json:"cover_art_url,omitempty"`
}
