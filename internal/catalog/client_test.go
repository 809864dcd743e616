package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	coreerrors "github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("debug")
	os.Exit(m.Run())
}

const releaseJSON = `{
  "id": 9000,
  "name": {"main": "Frieren"},
  "description": "An elf mage",
  "poster": {"src": "/storage/poster.jpg"},
  "torrents": [
    {"id": 1, "hash": "AAAA", "size": 1610612736, "magnet": "magnet:?xt=urn:btih:aaaa",
     "type": {"value": "WEBRip", "description": "WEBRip"}, "quality": {"value": "1080p"}, "codec": {"value": "AVC"}},
    {"id": 2, "hash": "bbbb", "size": 734003200, "magnet": "magnet:?xt=urn:btih:bbbb",
     "type": {"value": "BDRip", "description": "BDRip"}, "quality": {"value": "720p"}, "codec": {"value": "x265 HEVC"}},
    {"id": 3, "hash": "cccc", "size": 1, "magnet": "",
     "type": {"description": "TV"}, "quality": {"value": "480p"}, "codec": {"value": "AVC"}}
  ]
}`

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime/releases/9000":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(releaseJSON))
		case "/anime/releases/500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestRelease(t *testing.T) {
	c := newTestClient(t)
	r, err := c.Release(context.Background(), 9000)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if r.Name != "Frieren" || r.Poster != "/storage/poster.jpg" {
		t.Errorf("release = %+v", r)
	}
	if len(r.Variants) != 3 {
		t.Fatalf("variants = %d, want 3", len(r.Variants))
	}

	tests := []struct {
		idx     int
		quality string
		hash    string
	}{
		{0, "WEBRip 1080p", "aaaa"},
		{1, "BDRip 720p hevc", "bbbb"},
		{2, "TV 480p", "cccc"},
	}
	for _, tt := range tests {
		v := r.Variants[tt.idx]
		if v.Quality != tt.quality {
			t.Errorf("variant %d quality = %q, want %q", tt.idx, v.Quality, tt.quality)
		}
		if v.Hash != tt.hash {
			t.Errorf("variant %d hash = %q, want %q", tt.idx, v.Hash, tt.hash)
		}
	}
	if r.Variants[0].SizeLabel() != "1.6 GB" {
		t.Errorf("SizeLabel = %q", r.Variants[0].SizeLabel())
	}
}

func TestVariant(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, v, err := c.Variant(ctx, 9000, 2)
	if err != nil {
		t.Fatalf("Variant: %v", err)
	}
	if v.Magnet != "magnet:?xt=urn:btih:bbbb" {
		t.Errorf("magnet = %q", v.Magnet)
	}

	if _, _, err := c.Variant(ctx, 9000, 42); !errors.Is(err, coreerrors.ErrCatalogNotFound) {
		t.Errorf("unknown torrent error = %v", err)
	}
	if _, _, err := c.Variant(ctx, 9000, 3); !errors.Is(err, coreerrors.ErrCatalogNotFound) {
		t.Errorf("variant without magnet error = %v", err)
	}
}

func TestReleaseErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name string
		id   int
		want *coreerrors.DomainError
	}{
		{"invalid id", 0, coreerrors.ErrInvalidInput},
		{"not found", 1, coreerrors.ErrCatalogNotFound},
		{"server error", 500, coreerrors.ErrExternalService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Release(ctx, tt.id)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
