// Package catalog resolves a release's quality variants to torrent locators.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Variant is one downloadable quality of a release.
type Variant struct {
	ID        int    `json:"id"`
	Quality   string `json:"quality"`
	SizeBytes int64  `json:"size_bytes"`
	Magnet    string `json:"magnet"`
	Hash      string `json:"hash"`
}

// SizeLabel renders the size the way release pages show it, e.g. "1.4 GB".
func (v Variant) SizeLabel() string {
	if v.SizeBytes <= 0 {
		return "?"
	}
	return humanize.Bytes(uint64(v.SizeBytes))
}

type Release struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Poster      string    `json:"poster"`
	Variants    []Variant `json:"variants"`
}

type releaseResponse struct {
	ID   int `json:"id"`
	Name struct {
		Main string `json:"main"`
	} `json:"name"`
	Description string `json:"description"`
	Poster      struct {
		Src string `json:"src"`
	} `json:"poster"`
	Torrents []torrentResponse `json:"torrents"`
}

type labeled struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

type torrentResponse struct {
	ID      int     `json:"id"`
	Hash    string  `json:"hash"`
	Size    int64   `json:"size"`
	Magnet  string  `json:"magnet"`
	Type    labeled `json:"type"`
	Quality labeled `json:"quality"`
	Codec   labeled `json:"codec"`
}

// Quality builds the label shown to users: "<type> <quality>", plus " hevc"
// for HEVC encodes.
func (t torrentResponse) quality() string {
	q := strings.TrimSpace(t.Type.Description + " " + t.Quality.Value)
	if strings.Contains(t.Codec.Value, "HEVC") {
		q += " hevc"
	}
	return q
}

// Client contains the resty client for the catalog API.
type Client struct {
	Client  *resty.Client
	BaseURL string
}

func NewClient(baseURL string) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(20 * time.Second)
	logutils.Log.WithField("base_url", baseURL).Info("Initialized catalog client")
	return &Client{Client: client, BaseURL: baseURL}
}

// Release fetches a release with all of its variants.
func (c *Client) Release(ctx context.Context, releaseID int) (Release, error) {
	if releaseID <= 0 {
		return Release{}, errors.New(errors.ErrInvalidInput, "release id must be positive")
	}
	var body releaseResponse
	resp, err := c.Client.R().
		SetContext(ctx).
		SetPathParam("id", strconv.Itoa(releaseID)).
		SetResult(&body).
		Get("/anime/releases/{id}")
	if err != nil {
		logutils.Log.WithError(err).WithField("release_id", releaseID).Error("Failed to perform catalog request")
		return Release{}, errors.Wrap(err, errors.ErrExternalService, "catalog request failed")
	}
	if resp.StatusCode() == 404 {
		return Release{}, errors.New(errors.ErrCatalogNotFound, "").WithDetails(map[string]any{"release_id": releaseID})
	}
	if resp.IsError() {
		logutils.Log.WithField("status", resp.Status()).Warn("Catalog returned error status")
		return Release{}, errors.Wrap(fmt.Errorf("catalog status %s", resp.Status()), errors.ErrExternalService, "")
	}

	release := Release{
		ID:          body.ID,
		Name:        body.Name.Main,
		Description: body.Description,
		Poster:      body.Poster.Src,
		Variants:    make([]Variant, 0, len(body.Torrents)),
	}
	for _, t := range body.Torrents {
		release.Variants = append(release.Variants, Variant{
			ID:        t.ID,
			Quality:   t.quality(),
			SizeBytes: t.Size,
			Magnet:    t.Magnet,
			Hash:      strings.ToLower(t.Hash),
		})
	}
	logutils.Log.WithFields(logrus.Fields{
		"release_id": releaseID,
		"variants":   len(release.Variants),
	}).Debug("Catalog release fetched")
	return release, nil
}

// Variant returns one variant of a release together with the release itself.
func (c *Client) Variant(ctx context.Context, releaseID, torrentID int) (Release, Variant, error) {
	release, err := c.Release(ctx, releaseID)
	if err != nil {
		return Release{}, Variant{}, err
	}
	for _, v := range release.Variants {
		if v.ID == torrentID {
			if v.Magnet == "" {
				return Release{}, Variant{}, errors.New(errors.ErrCatalogNotFound, "variant has no magnet link")
			}
			return release, v, nil
		}
	}
	return Release{}, Variant{}, errors.New(errors.ErrCatalogNotFound, "").
		WithDetails(map[string]any{"release_id": releaseID, "torrent_id": torrentID})
}
