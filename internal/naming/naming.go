// Package naming produces the user-visible names for downloaded media:
// branded item filenames, archive names, and the small display helpers
// that go with them.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/pkg/youtube"
)

const (
	brandSuffix   = " | Music Bank "
	fallbackTitle = "Untitled"

	// titles are cut here so the full branded name stays well inside
	// common filesystem limits
	maxTitleBytes = 180
)

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

// Namer brands item filenames for a single run. Titles that normalize to
// the same name get numeric suffixes, so every emitted name is unique
// within the run.
type Namer struct {
	seen map[string]int
	used map[string]bool
}

func NewNamer() *Namer {
	return &Namer{seen: make(map[string]int), used: make(map[string]bool)}
}

// Brand builds the branded output filename for a raw title: invalid
// filename characters are stripped, the brand suffix is appended, and the
// format extension closes the name. Repeats get " (1)", " (2)", ...
// inserted between suffix and extension.
func (n *Namer) Brand(title string, format youtube.Format) string {
	base := CleanTitle(title)
	ext := Extension(format)
	for i := n.seen[base]; ; i++ {
		name := base + brandSuffix
		if i > 0 {
			name = fmt.Sprintf("%s (%d)", name, i)
		}
		name += ext
		if !n.used[name] {
			n.seen[base] = i + 1
			n.used[name] = true
			return name
		}
	}
}

// CleanTitle strips characters invalid in filenames and trims surrounding
// spaces and dots. Titles that clean down to nothing fall back to a
// placeholder so the item still gets a usable name.
func CleanTitle(title string) string {
	clean := invalidChars.ReplaceAllString(title, "")
	clean = strings.Trim(clean, " .")
	if len(clean) > maxTitleBytes {
		clean = strings.Trim(clean[:maxTitleBytes], " .")
	}
	if clean == "" {
		return fallbackTitle
	}
	return clean
}

func Extension(format youtube.Format) string {
	if format == youtube.FormatVideo {
		return ".mp4"
	}
	return ".mp3"
}

// Slugify reduces a playlist title to a safe archive base name.
func Slugify(title string) string {
	slug := slugStrip.ReplaceAllString(title, "")
	slug = slugCollapse.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-_")
	if slug == "" {
		return "playlist"
	}
	return slug
}

// ArchiveName names the zip bundle for a run, e.g. "my-mix-mp3s.zip".
func ArchiveName(title string, format youtube.Format) string {
	return fmt.Sprintf("%s-%ss.zip", Slugify(title), strings.TrimPrefix(Extension(format), "."))
}

var mimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".zip":  "application/zip",
}

// MIMEType guesses the content type of a produced file by extension.
func MIMEType(filename string) string {
	if mime, ok := mimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mime
	}
	return "application/octet-stream"
}

// FormatDuration renders whole seconds as m:ss, or h:mm:ss from one hour
// up.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
