package meta

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"regexp"
	"strings"

	"github.com/gcottom/audiometa/v3"
	"github.com/gcottom/go-zaplog"
	"github.com/gcottom/retry"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Enabled reports whether Spotify enrichment is configured.
func (s *Service) Enabled() bool {
	return s.SpotifyConfig != nil && s.SpotifyConfig.ClientID != "" && s.SpotifyConfig.ClientSecret != ""
}

// Tag stamps title/artist/album metadata onto converted MP3 bytes and
// returns the retagged bytes. The seed values come from the playlist
// entry; when Spotify enrichment is enabled a matching track overrides
// them. Cover art failures are logged and skipped, the tag still saves.
func (s *Service) Tag(ctx context.Context, data []byte, title, artist string) ([]byte, error) {
	trackMeta := s.BestMeta(ctx, TrackMeta{Title: title, Artist: artist})
	tag, err := audiometa.OpenTag(bytes.NewReader(data))
	if err != nil {
		zaplog.ErrorC(ctx, "failed to open tag", zap.Error(err))
		return nil, err
	}
	tag.SetArtist(trackMeta.Artist)
	tag.SetTitle(trackMeta.Title)
	if trackMeta.Album != "" {
		tag.SetAlbum(trackMeta.Album)
	}
	if trackMeta.CoverArtURL != "" {
		if img, err := fetchCoverArt(trackMeta.CoverArtURL); err != nil {
			zaplog.WarnC(ctx, "failed to fetch cover art", zap.Error(err))
		} else {
			tag.SetCoverArt(img)
		}
	}
	out := new(bytes.Buffer)
	if err = tag.Save(out); err != nil {
		zaplog.ErrorC(ctx, "failed to save tag", zap.Error(err))
		return nil, err
	}
	return out.Bytes(), nil
}

func fetchCoverArt(coverURL string) (*image.Image, error) {
	response, err := http.Get(coverURL)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	img, _, err := image.Decode(response.Body)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// BestMeta returns the cleanest metadata available for the seed track.
// With Spotify configured it searches for a matching track, retried since
// the search endpoint flaps; otherwise, and on any miss or error, it falls
// back to the sanitized seed. Never fails.
func (s *Service) BestMeta(ctx context.Context, seed TrackMeta) TrackMeta {
	fallback := TrackMeta{
		Title:  strings.TrimSpace(s.SanitizeParenthesis(seed.Title)),
		Artist: seed.Artist,
	}
	if fallback.Title == "" {
		fallback.Title = seed.Title
	}
	if !s.Enabled() {
		return fallback
	}
	res, err := retry.Retry(retry.NewAlgSimpleDefault(), 3, s.GetSpotifyMeta, ctx, seed)
	if err != nil {
		zaplog.WarnC(ctx, "failed to get spotify meta", zap.Error(err))
		return fallback
	}
	spotifyMetas := res[0].([]TrackMeta)
	if match, ok := s.BestMetaMatch(ctx, seed, spotifyMetas); ok {
		return match
	}
	return fallback
}

func (s *Service) GetSpotifyMeta(ctx context.Context, trackMeta TrackMeta) ([]TrackMeta, error) {
	searchTerm := fmt.Sprintf("track:%s artist:%s", trackMeta.Title, trackMeta.Artist)
	zaplog.InfoC(ctx, "searching spotify", zap.String("searchTerm", searchTerm))

	token, err := s.GetSpotifyToken(ctx)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to get spotify token", zap.Error(err))
		return nil, err
	}

	authClient := spotifyauth.New().Client(ctx, token)
	spotifyClient := spotify.New(authClient)

	res, err := spotifyClient.Search(ctx, searchTerm, spotify.SearchTypeTrack)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to search spotify", zap.Error(err))
		return nil, err
	}

	trackMetas := make([]TrackMeta, 0)
	for _, track := range res.Tracks.Tracks {
		resMeta := TrackMeta{}
		if len(track.Album.Images) > 0 {
			resMeta.CoverArtURL = track.Album.Images[0].URL
		}

		artists := make([]string, 0)
		for _, artist := range track.Artists {
			artists = append(artists, artist.Name)
		}

		resMeta.Artist = strings.Join(artists, ", ")
		resMeta.Album = track.Album.Name
		resMeta.Title = track.Name
		trackMetas = append(trackMetas, resMeta)
	}

	zaplog.InfoC(ctx, "spotify search results", zap.Any("results", trackMetas))
	return trackMetas, nil
}

func (s *Service) GetSpotifyToken(ctx context.Context) (*oauth2.Token, error) {
	token, err := s.SpotifyConfig.Token(ctx)
	if err != nil {
		zaplog.ErrorC(ctx, "failed to get spotify token", zap.Error(err))
		return nil, err
	}
	return token, nil
}

// BestMetaMatch picks the Spotify result whose title and artist line up
// with one of the candidate readings of the seed. YouTube titles carry
// noise ("Artist - Song (Official Video)"), so the candidates include the
// sanitized title, the feat-stripped title, and both sides of an
// "artist - title" split.
func (s *Service) BestMetaMatch(ctx context.Context, seed TrackMeta, spotifyMetas []TrackMeta) (TrackMeta, bool) {
	sanitizedTitle := strings.TrimSpace(s.SanitizeString(s.SanitizeParenthesis(seed.Title)))
	featStrippedTitle := strings.TrimSpace(strings.Split(sanitizedTitle, "feat")[0])
	titles := []string{seed.Title, sanitizedTitle, featStrippedTitle}
	artists := []string{seed.Artist, s.SanitizeAuthor(seed.Artist)}
	splits := strings.Split(strings.ReplaceAll(sanitizedTitle, ":", "-"), "-")
	if len(splits) == 2 {
		titles = append(titles, strings.TrimSpace(splits[0]), strings.TrimSpace(splits[1]))
		artists = append(artists, s.SanitizeAuthor(splits[0]), s.SanitizeAuthor(splits[1]))
	}
	zaplog.InfoC(ctx, "meta match candidates", zap.Strings("titles", titles), zap.Strings("artists", artists))

	for _, spotifyMeta := range spotifyMetas {
		for _, title := range titles {
			if !s.EqualIgnoringWhitespace(title, spotifyMeta.Title) {
				continue
			}
			for _, artist := range artists {
				if s.EqualIgnoringWhitespace(artist, spotifyMeta.Artist) {
					return spotifyMeta, true
				}
			}
		}
	}
	return TrackMeta{}, false
}

func (s *Service) SanitizeString(str string) string {
	regex := regexp.MustCompile(`[^a-zA-Z0-9\s\:\-]`)
	return regex.ReplaceAllString(str, "")
}

func (s *Service) SanitizeParenthesis(str string) string {
	regex := regexp.MustCompile(`\([^\(\)]*\)|\[[^\[\]]*\]`)
	return regex.ReplaceAllString(str, "")
}

func (s *Service) EqualIgnoringWhitespace(s1, s2 string) bool {
	// Remove all whitespace from both strings
	regex := regexp.MustCompile(`\s+`)
	cleanS1 := regex.ReplaceAllString(s1, "")
	cleanS2 := regex.ReplaceAllString(s2, "")

	// Compare the cleaned strings
	return strings.EqualFold(cleanS1, cleanS2)
}

func (s *Service) SanitizeAuthor(author string) string {
	author = strings.ToLower(author)
	r := regexp.MustCompile(` - official|-official|official| - vevo|-vevo|vevo|@| - topic|-topic|topic`)
	author = r.ReplaceAllString(author, "")
	author = strings.Trim(author, " ")
	return author
}
