package session

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/pkg/youtube"
)

func waitForFinished(t *testing.T, service *Service, sessionID string) ProgressReport {
	t.Helper()
	for attempt := 0; attempt < 100; attempt++ {
		report, err := service.Progress(context.Background(), sessionID)
		if err != nil {
			t.Fatalf("Progress failed: %v", err)
		}
		if report.Finished {
			return report
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Run did not finish in time")
	return ProgressReport{}
}

func TestStartRunRejectsInvalidRequests(t *testing.T) {
	service := newTestService(&fakeFetcher{playlist: testPlaylist(1)})

	tests := []struct {
		name string
		req  PlaylistRequest
	}{
		{"empty url", PlaylistRequest{URL: "", Format: youtube.FormatAudio}},
		{"no list parameter", PlaylistRequest{URL: "https://www.youtube.com/watch?v=abc", Format: youtube.FormatAudio}},
		{"bad scheme", PlaylistRequest{URL: "ftp://youtube.com/playlist?list=PLabcdefabcdef", Format: youtube.FormatAudio}},
		{"bad format", PlaylistRequest{URL: "https://www.youtube.com/playlist?list=PLabcdefabcdef", Format: "flac"}},
		{"negative limit", PlaylistRequest{URL: "https://www.youtube.com/playlist?list=PLabcdefabcdef", Format: youtube.FormatAudio, Limit: -1}},
	}

	for _, test := range tests {
		if _, err := service.StartRun(context.Background(), "", test.req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%s: expected ErrInvalidRequest, got %v", test.name, err)
		}
	}
}

func TestStartRunAcceptsBarePlaylistID(t *testing.T) {
	service := newTestService(&fakeFetcher{playlist: testPlaylist(1)})

	sessionID, err := service.StartRun(context.Background(), "", PlaylistRequest{
		URL:    "PLabcdefabcdefabc",
		Format: youtube.FormatAudio,
	})
	if err != nil {
		t.Fatalf("Expected bare playlist ID to be accepted, got %v", err)
	}
	report := waitForFinished(t, service, sessionID)
	if report.Completed != 1 {
		t.Errorf("Expected 1 completed item, got %d", report.Completed)
	}
}

func TestStartRunAllocatesSessionID(t *testing.T) {
	service := newTestService(&fakeFetcher{playlist: testPlaylist(1)})

	first, err := service.StartRun(context.Background(), "", audioRequest())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if first == "" {
		t.Fatal("Expected a session ID to be allocated")
	}

	second, err := service.StartRun(context.Background(), "", audioRequest())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if second == first {
		t.Errorf("Expected distinct sessions, both got %s", first)
	}

	waitForFinished(t, service, first)
	waitForFinished(t, service, second)
}

func TestStartRunRejectsWhileRunActive(t *testing.T) {
	release := make(chan struct{})
	fetcher := &fakeFetcher{playlist: testPlaylist(2), resolveGate: release}
	service := newTestService(fetcher)

	sessionID, err := service.StartRun(context.Background(), "", audioRequest())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if _, err = service.StartRun(context.Background(), sessionID, audioRequest()); !errors.Is(err, ErrRunActive) {
		t.Errorf("Expected ErrRunActive while the first run is going, got %v", err)
	}

	close(release)
	waitForFinished(t, service, sessionID)

	// a terminal run is replaced wholesale by the next start
	if _, err = service.StartRun(context.Background(), sessionID, audioRequest()); err != nil {
		t.Errorf("Expected restart after terminal run, got %v", err)
	}
	report := waitForFinished(t, service, sessionID)
	if report.Completed != 2 {
		t.Errorf("Expected fresh run results, got %d completed", report.Completed)
	}
}

func TestStartRunAppliesMixAutoLimit(t *testing.T) {
	fetcher := &fakeFetcher{playlist: testPlaylist(5)}
	service := newTestService(fetcher)
	service.MixAutoLimit = 2

	sessionID, err := service.StartRun(context.Background(), "", PlaylistRequest{
		URL:    "https://www.youtube.com/watch?v=abc&list=RDabcdefghijkl",
		Format: youtube.FormatAudio,
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	report := waitForFinished(t, service, sessionID)
	if report.TotalKnown != 2 {
		t.Errorf("Expected mix run limited to 2 items, got total %d", report.TotalKnown)
	}
	if report.Completed != 2 {
		t.Errorf("Expected 2 completed items, got %d", report.Completed)
	}
}

func TestStartRunClampsToMaxItems(t *testing.T) {
	fetcher := &fakeFetcher{playlist: testPlaylist(5)}
	service := newTestService(fetcher)
	service.MaxItems = 3

	req := audioRequest()
	req.Limit = 100
	sessionID, err := service.StartRun(context.Background(), "", req)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	report := waitForFinished(t, service, sessionID)
	if report.TotalKnown != 3 {
		t.Errorf("Expected run clamped to 3 items, got total %d", report.TotalKnown)
	}
}

func TestProgressUnknownSession(t *testing.T) {
	service := newTestService(&fakeFetcher{playlist: testPlaylist(1)})

	if _, err := service.Progress(context.Background(), "missing"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Expected ErrUnknownSession, got %v", err)
	}
}

func TestProgressIdleSession(t *testing.T) {
	service := newTestService(&fakeFetcher{playlist: testPlaylist(1)})
	sess := service.getOrCreateSession("")

	report, err := service.Progress(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if report.State != StateIdle {
		t.Errorf("Expected idle state, got %s", report.State)
	}
	if report.Finished {
		t.Error("Expected idle session not to report finished")
	}

	items, err := service.Results(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no results on idle session, got %d", len(items))
	}

	if _, err := service.Item(context.Background(), sess.ID, "any"); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("Expected ErrUnknownItem on idle session, got %v", err)
	}
}

func TestResultsAndItemLookup(t *testing.T) {
	service := newTestService(&fakeFetcher{playlist: testPlaylist(3)})

	sessionID, err := service.StartRun(context.Background(), "", audioRequest())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitForFinished(t, service, sessionID)

	items, err := service.Results(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(items))
	}

	tokens := make(map[string]bool)
	for _, item := range items {
		if item.Token == "" {
			t.Errorf("Expected item %d to carry a token", item.Index)
		}
		if tokens[item.Token] {
			t.Errorf("Duplicate token %s", item.Token)
		}
		tokens[item.Token] = true
	}

	item, err := service.Item(context.Background(), sessionID, items[1].Token)
	if err != nil {
		t.Fatalf("Item lookup failed: %v", err)
	}
	if item.Index != 1 {
		t.Errorf("Expected item index 1, got %d", item.Index)
	}
	if len(item.Payload) == 0 {
		t.Error("Expected item payload to be served")
	}

	if _, err = service.Item(context.Background(), sessionID, "bogus"); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("Expected ErrUnknownItem for bogus token, got %v", err)
	}
	if _, err = service.Item(context.Background(), "missing", items[0].Token); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Expected ErrUnknownSession, got %v", err)
	}
}

func TestCancelRunIsIdempotentAndSafe(t *testing.T) {
	service := newTestService(&fakeFetcher{playlist: testPlaylist(1)})

	// unknown session and session without a run are both no-ops
	service.CancelRun(context.Background(), "no-such-session")
	sess := service.getOrCreateSession("")
	service.CancelRun(context.Background(), sess.ID)

	sessionID, err := service.StartRun(context.Background(), "", audioRequest())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitForFinished(t, service, sessionID)

	// cancelling a terminal run leaves it finished
	service.CancelRun(context.Background(), sessionID)
	service.CancelRun(context.Background(), sessionID)

	report, err := service.Progress(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if report.State != StateFinished {
		t.Errorf("Expected finished state to stick, got %s", report.State)
	}
	if report.CancelRequested {
		t.Error("Expected cancel flag to stay clear on a terminal run")
	}
}

func TestBuildArchiveBundlesSucceededItems(t *testing.T) {
	fetcher := &fakeFetcher{
		playlist: testPlaylist(3),
		failIDs:  map[string]error{"vid1": errors.New("unavailable")},
	}
	service := newTestService(fetcher)

	sessionID, err := service.StartRun(context.Background(), "", PlaylistRequest{
		URL:    "https://www.youtube.com/playlist?list=PLtesttesttest",
		Format: youtube.FormatVideo,
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitForFinished(t, service, sessionID)

	archive, err := service.BuildArchive(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("BuildArchive failed: %v", err)
	}
	if archive.Name != "Test-Playlist-mp4s.zip" {
		t.Errorf("Unexpected archive name: %q", archive.Name)
	}

	zr, err := zip.NewReader(bytes.NewReader(archive.Data), int64(len(archive.Data)))
	if err != nil {
		t.Fatalf("Expected a readable zip, got %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("Expected 2 entries (failed item excluded), got %d", len(zr.File))
	}

	expected := map[string]string{
		"Track 0 | Music Bank .mp4": "stream:vid0",
		"Track 2 | Music Bank .mp4": "stream:vid2",
	}
	for _, f := range zr.File {
		want, ok := expected[f.Name]
		if !ok {
			t.Errorf("Unexpected archive entry %q", f.Name)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open %q: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("Failed to read %q: %v", f.Name, err)
		}
		if string(data) != want {
			t.Errorf("Entry %q = %q, expected %q", f.Name, data, want)
		}
	}
}

func TestBuildArchiveEmptyResults(t *testing.T) {
	fetcher := &fakeFetcher{
		playlist: testPlaylist(2),
		failIDs: map[string]error{
			"vid0": errors.New("unavailable"),
			"vid1": errors.New("unavailable"),
		},
	}
	service := newTestService(fetcher)

	sessionID, err := service.StartRun(context.Background(), "", audioRequest())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitForFinished(t, service, sessionID)

	if _, err = service.BuildArchive(context.Background(), sessionID); !errors.Is(err, ErrEmptyResult) {
		t.Errorf("Expected ErrEmptyResult when all items failed, got %v", err)
	}

	sess := service.getOrCreateSession("")
	if _, err = service.BuildArchive(context.Background(), sess.ID); !errors.Is(err, ErrEmptyResult) {
		t.Errorf("Expected ErrEmptyResult on idle session, got %v", err)
	}

	if _, err = service.BuildArchive(context.Background(), "missing"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Expected ErrUnknownSession, got %v", err)
	}
}

func TestArchiveAfterTopLevelFailure(t *testing.T) {
	fetcher := &fakeFetcher{resolveErr: errors.New("playlist is private")}
	service := newTestService(fetcher)

	sessionID, err := service.StartRun(context.Background(), "", audioRequest())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	report := waitForFinished(t, service, sessionID)
	if report.Error == "" {
		t.Error("Expected the top-level error on the report")
	}
	if report.Completed != 0 || report.Failed != 0 {
		t.Errorf("Expected zero items, got %d completed and %d failed", report.Completed, report.Failed)
	}

	if _, err = service.BuildArchive(context.Background(), sessionID); !errors.Is(err, ErrEmptyResult) {
		t.Errorf("Expected ErrEmptyResult after failed resolution, got %v", err)
	}
}

func TestReapIdleSessions(t *testing.T) {
	service := newTestService(&fakeFetcher{playlist: testPlaylist(1)})
	service.SessionTTL = time.Minute

	sessionID, err := service.StartRun(context.Background(), "", audioRequest())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitForFinished(t, service, sessionID)

	if reaped := service.ReapIdleSessions(time.Now()); reaped != 0 {
		t.Errorf("Expected fresh session to survive, got %d evictions", reaped)
	}
	if reaped := service.ReapIdleSessions(time.Now().Add(2 * time.Minute)); reaped != 1 {
		t.Errorf("Expected 1 eviction past the TTL, got %d", reaped)
	}
	if _, err = service.Progress(context.Background(), sessionID); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Expected evicted session to be unknown, got %v", err)
	}
}

func TestReapSkipsActiveRuns(t *testing.T) {
	release := make(chan struct{})
	fetcher := &fakeFetcher{playlist: testPlaylist(1), resolveGate: release}
	service := newTestService(fetcher)

	sessionID, err := service.StartRun(context.Background(), "", audioRequest())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if reaped := service.ReapIdleSessions(time.Now().Add(2 * time.Hour)); reaped != 0 {
		t.Errorf("Expected active session to survive, got %d evictions", reaped)
	}

	close(release)
	waitForFinished(t, service, sessionID)
}

func TestReapDisabledWithoutTTL(t *testing.T) {
	service := newTestService(&fakeFetcher{playlist: testPlaylist(1)})
	service.SessionTTL = 0
	service.getOrCreateSession("")

	if reaped := service.ReapIdleSessions(time.Now().Add(24 * time.Hour)); reaped != 0 {
		t.Errorf("Expected reaping disabled with zero TTL, got %d evictions", reaped)
	}
}
