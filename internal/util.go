package internal

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/config"
	"github.com/gcottom/go-zaplog"
	"go.uber.org/zap"
)

var (
	ffmpegOnce sync.Once
	ffmpegPath string
	ffmpegErr  error
)

// ResolveFFmpegPath locates the ffmpeg binary once and caches the result.
// Resolution order: the FFMPEG_BINARY environment variable (a path or a
// command name), the ffmpeg_path config entry, a bundled binary under
// deps/ffmpeg/bin, then $PATH.
func ResolveFFmpegPath() (string, error) {
	ffmpegOnce.Do(func() {
		ffmpegPath, ffmpegErr = findFFmpeg()
	})
	return ffmpegPath, ffmpegErr
}

func findFFmpeg() (string, error) {
	candidates := []string{os.Getenv("FFMPEG_BINARY")}
	if config.AppConfig != nil {
		candidates = append(candidates, config.AppConfig.FFmpegPath)
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	if bundled := bundledFFmpeg(); bundled != "" {
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
			return bundled, nil
		}
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path, nil
	}
	return "", errors.New("ffmpeg not found: set FFMPEG_BINARY, set ffmpeg_path in config, or install ffmpeg on PATH")
}

func bundledFFmpeg() string {
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join("deps", "ffmpeg", "bin", name)
}

// EnsureFFmpeg verifies the conversion binary is reachable. Called at
// startup so a missing binary surfaces as a configuration error instead of
// a mid-run item failure.
func EnsureFFmpeg() error {
	_, err := ResolveFFmpegPath()
	return err
}

// ConvertFile transcodes a downloaded audio stream to MP3 entirely through
// pipes, no temp files.
func ConvertFile(ctx context.Context, b []byte) ([]byte, error) {
	ffmpeg, err := ResolveFFmpegPath()
	if err != nil {
		zaplog.ErrorC(ctx, "conversion error", zap.Error(err))
		return nil, err
	}
	var args = []string{"-i", "pipe:0", "-c:a", "libmp3lame", "-b:a", "192k", "-f", "mp3", "-"}
	cmd := exec.Command(ffmpeg, args...)
	resultBuffer := bytes.NewBuffer(make([]byte, 0))

	cmd.Stdout = resultBuffer // stdout result will be written here

	stdin, err := cmd.StdinPipe() // Open stdin pipe
	if err != nil {
		zaplog.ErrorC(ctx, "conversion error", zap.Error(err))
		return nil, err
	}

	err = cmd.Start() // Start a process on another goroutine
	if err != nil {
		zaplog.ErrorC(ctx, "conversion error", zap.Error(err))
		return nil, err
	}

	_, err = stdin.Write(b) // pump audio data to stdin pipe
	if err != nil {
		zaplog.ErrorC(ctx, "conversion error", zap.Error(err))
		return nil, err
	}
	err = stdin.Close() // close the stdin, or ffmpeg will wait forever
	if err != nil {
		zaplog.ErrorC(ctx, "conversion error", zap.Error(err))
		return nil, err
	}
	err = cmd.Wait() // wait until ffmpeg finish
	if err != nil {
		zaplog.ErrorC(ctx, "conversion error", zap.Error(err))
		return nil, err
	}
	return resultBuffer.Bytes(), nil
}

// Converter exposes ConvertFile behind the session service's converter
// interface.
type Converter struct{}

func (Converter) ToMP3(ctx context.Context, b []byte) ([]byte, error) {
	return ConvertFile(ctx, b)
}

// IsMixPlaylist reports whether the request points at an auto-generated mix
// (radio) playlist. Mixes are effectively endless, so runs against them get
// a default item limit. Accepts full URLs and bare playlist IDs.
func IsMixPlaylist(rawURL string) bool {
	listID := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		if v := parsed.Query().Get("list"); v != "" {
			listID = v
		}
	}
	return strings.HasPrefix(listID, "RD") || strings.HasPrefix(listID, "UL")
}
