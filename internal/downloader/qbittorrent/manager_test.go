package qbittorrent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	coreerrors "github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
)

const testHash = "c9e15763f722f23e98a29decdfae341b98d53056"

const testMagnet = "magnet:?xt=urn:btih:C9E15763F722F23E98A29DECDFAE341B98D53056&dn=Show+S01"

func TestMain(m *testing.M) {
	logutils.InitLogger("debug")
	os.Exit(m.Run())
}

// fakeQBit is a minimal in-memory Web API.
type fakeQBit struct {
	mu        sync.Mutex
	sid       string
	logins    int
	added     []string
	savePaths []string
	addForms  []url.Values
	deleted   []string
	torrents  []TorrentInfo
	files     map[string][]TorrentFileInfo
	failAdd   int
}

func newFakeQBit() *fakeQBit {
	return &fakeQBit{sid: "sid-1", files: map[string][]TorrentFileInfo{}}
}

func (f *fakeQBit) authorized(r *http.Request) bool {
	c, err := r.Cookie("SID")
	return err == nil && c.Value == f.sid
}

func (f *fakeQBit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/api/v2/auth/login" {
		_ = r.ParseForm()
		f.logins++
		if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "secret" {
			_, _ = w.Write([]byte("Fails."))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: f.sid, Path: "/"})
		_, _ = w.Write([]byte("Ok."))
		return
	}
	if !f.authorized(r) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Forbidden"))
		return
	}

	switch r.URL.Path {
	case "/api/v2/torrents/add":
		_ = r.ParseForm()
		if f.failAdd != 0 {
			w.WriteHeader(f.failAdd)
			return
		}
		f.added = append(f.added, r.PostForm.Get("urls"))
		f.savePaths = append(f.savePaths, r.PostForm.Get("savepath"))
		f.addForms = append(f.addForms, r.PostForm)
		_, _ = w.Write([]byte("Ok."))
	case "/api/v2/torrents/info":
		hashes := r.URL.Query().Get("hashes")
		var out []TorrentInfo
		for _, t := range f.torrents {
			if hashes == "" || hashes == t.Hash {
				out = append(out, t)
			}
		}
		if out == nil {
			out = []TorrentInfo{}
		}
		_ = json.NewEncoder(w).Encode(out)
	case "/api/v2/torrents/files":
		files, ok := f.files[r.URL.Query().Get("hash")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(files)
	case "/api/v2/torrents/delete":
		_ = r.ParseForm()
		if r.PostForm.Get("deleteFiles") != "false" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.deleted = append(f.deleted, r.PostForm.Get("hashes"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestManager(t *testing.T, fake *fakeQBit, password string) *Manager {
	t.Helper()
	return newTestManagerWith(t, fake, password, false)
}

func newTestManagerWith(t *testing.T, fake *fakeQBit, password string, sequential bool) *Manager {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL+"/", "admin", password)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewManager(client, "/downloads", sequential)
}

func TestMapState(t *testing.T) {
	tests := []struct {
		remote string
		want   domain.DownloadState
	}{
		{"uploading", domain.StateSeeding},
		{"stalledUP", domain.StateSeeding},
		{"pausedUP", domain.StateSeeding},
		{"stoppedUP", domain.StateSeeding},
		{"queuedUP", domain.StateSeeding},
		{"forcedUP", domain.StateSeeding},
		{"checkingUP", domain.StateSeeding},
		{"error", domain.StateErrored},
		{"missingFiles", domain.StateErrored},
		{"downloading", domain.StateDownloading},
		{"metaDL", domain.StateDownloading},
		{"stalledDL", domain.StateDownloading},
		{"somethingNew", domain.StateDownloading},
	}
	for _, tt := range tests {
		if got := MapState(tt.remote); got != tt.want {
			t.Errorf("MapState(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestSubmitDerivesHashFromMagnet(t *testing.T) {
	fake := newFakeQBit()
	m := newTestManager(t, fake, "secret")

	h, err := m.Submit(context.Background(), testMagnet, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.ContentHash != testHash {
		t.Errorf("ContentHash = %q, want %q", h.ContentHash, testHash)
	}
	if h.Name != "Show S01" {
		t.Errorf("Name = %q, want display name", h.Name)
	}
	if h.State != domain.StateSubmitted {
		t.Errorf("State = %q, want submitted", h.State)
	}
	if len(fake.added) != 1 || fake.added[0] != testMagnet {
		t.Errorf("added = %v", fake.added)
	}
	if fake.savePaths[0] != "/downloads" {
		t.Errorf("savepath = %q", fake.savePaths[0])
	}
	if fake.logins != 1 {
		t.Errorf("logins = %d, want 1", fake.logins)
	}
}

func TestSubmitSequentialDownload(t *testing.T) {
	for _, sequential := range []bool{false, true} {
		fake := newFakeQBit()
		m := newTestManagerWith(t, fake, "secret", sequential)

		if _, err := m.Submit(context.Background(), testMagnet, ""); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		form := fake.addForms[0]
		want := ""
		if sequential {
			want = "true"
		}
		if got := form.Get("sequentialDownload"); got != want {
			t.Errorf("sequential=%v: sequentialDownload = %q, want %q", sequential, got, want)
		}
		if got := form.Get("firstLastPiecePrio"); got != want {
			t.Errorf("sequential=%v: firstLastPiecePrio = %q, want %q", sequential, got, want)
		}
	}
}

func TestSubmitInvalidLocator(t *testing.T) {
	fake := newFakeQBit()
	m := newTestManager(t, fake, "secret")

	for _, locator := range []string{"", "magnet:?dn=nohash", "https://example.org/file.torrent"} {
		_, err := m.Submit(context.Background(), locator, "")
		if !errors.Is(err, coreerrors.ErrInvalidInput) {
			t.Errorf("Submit(%q) error = %v, want invalid input", locator, err)
		}
	}
	if len(fake.added) != 0 || fake.logins != 0 {
		t.Errorf("no network call expected, added=%v logins=%d", fake.added, fake.logins)
	}
}

func TestSubmitAuthFailureIsUnreachable(t *testing.T) {
	fake := newFakeQBit()
	m := newTestManager(t, fake, "wrong")

	_, err := m.Submit(context.Background(), testMagnet, testHash)
	if !errors.Is(err, coreerrors.ErrManagerUnreachable) {
		t.Fatalf("error = %v, want manager unreachable", err)
	}
}

func TestSubmitNetworkFailureIsUnreachable(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1", "admin", "secret")
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(client, "", false)
	_, err = m.Submit(context.Background(), testMagnet, "")
	if !errors.Is(err, coreerrors.ErrManagerUnreachable) {
		t.Fatalf("error = %v, want manager unreachable", err)
	}
}

func TestReloginOnForbidden(t *testing.T) {
	fake := newFakeQBit()
	m := newTestManager(t, fake, "secret")
	ctx := context.Background()

	if _, err := m.Submit(ctx, testMagnet, ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	fake.mu.Lock()
	fake.sid = "sid-2"
	fake.torrents = []TorrentInfo{{Hash: testHash, Name: "Show S01", Progress: 0.5, State: "downloading", SavePath: "/downloads"}}
	fake.mu.Unlock()

	h, err := m.QueryByHash(ctx, testHash)
	if err != nil {
		t.Fatalf("QueryByHash after session expiry: %v", err)
	}
	if h.Progress != 0.5 || h.State != domain.StateDownloading {
		t.Errorf("handle = %+v", h)
	}
	if fake.logins != 2 {
		t.Errorf("logins = %d, want 2", fake.logins)
	}
}

func TestQueryByHash(t *testing.T) {
	fake := newFakeQBit()
	fake.torrents = []TorrentInfo{
		{Hash: testHash, Name: "Show S01", Progress: 1, State: "stalledUP", SavePath: "/downloads"},
	}
	m := newTestManager(t, fake, "secret")

	h, err := m.QueryByHash(context.Background(), "C9E15763F722F23E98A29DECDFAE341B98D53056")
	if err != nil {
		t.Fatalf("QueryByHash: %v", err)
	}
	if h.State != domain.StateSeeding || h.Progress != 1 || h.SavePath != "/downloads" {
		t.Errorf("handle = %+v", h)
	}

	_, err = m.QueryByHash(context.Background(), "0000000000000000000000000000000000000000")
	if !errors.Is(err, coreerrors.ErrNotFound) {
		t.Errorf("unknown hash error = %v, want not found", err)
	}
}

func TestListFiles(t *testing.T) {
	fake := newFakeQBit()
	fake.files[testHash] = []TorrentFileInfo{
		{Name: "Show/ep10.mkv", Size: 300},
		{Name: "Show/ep02.mkv", Size: 200},
		{Name: "Show/Ep01.mkv", Size: 100},
	}
	m := newTestManager(t, fake, "secret")
	ctx := context.Background()

	_, err := m.ListFiles(ctx, domain.DownloadHandle{ContentHash: testHash, State: domain.StateDownloading})
	if !errors.Is(err, coreerrors.ErrInvalidState) {
		t.Fatalf("error = %v, want invalid state", err)
	}

	files, err := m.ListFiles(ctx, domain.DownloadHandle{ContentHash: testHash, State: domain.StateSeeding, SavePath: "/downloads"})
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	want := []string{"Show/Ep01.mkv", "Show/ep02.mkv", "Show/ep10.mkv"}
	if len(files) != len(want) {
		t.Fatalf("got %d files, want %d", len(files), len(want))
	}
	for i, f := range files {
		if f.RelativeName != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, f.RelativeName, want[i])
		}
	}
	if files[0].AbsolutePath != filepath.Join("/downloads", "Show", "Ep01.mkv") || files[0].SizeBytes != 100 {
		t.Errorf("files[0] = %+v", files[0])
	}
}

func TestRemoveKeepsData(t *testing.T) {
	fake := newFakeQBit()
	m := newTestManager(t, fake, "secret")

	if err := m.Remove(context.Background(), domain.DownloadHandle{ContentHash: testHash}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != testHash {
		t.Errorf("deleted = %v", fake.deleted)
	}
}

func TestRemoveFailure(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1", "admin", "secret")
	if err != nil {
		t.Fatal(err)
	}
	err = NewManager(client, "", false).Remove(context.Background(), domain.DownloadHandle{ContentHash: testHash})
	if !errors.Is(err, coreerrors.ErrRemovalFailed) {
		t.Fatalf("error = %v, want removal failed", err)
	}
}
