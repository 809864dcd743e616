package qbittorrent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

const apiPrefix = "/api/v2"

// StatusError is a non-200 answer from the Web API.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("qBittorrent: %s failed status=%d body=%s", e.Op, e.StatusCode, e.Body)
}

// Client talks to qBittorrent Web API (v2). It logs in on first use and
// once more when the session cookie is rejected.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu       sync.Mutex
	loggedIn bool
}

// NewClient builds a client. baseURL is the Web UI root, e.g. "http://localhost:8080".
func NewClient(baseURL, username, password string) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}, nil
}

// Login authenticates and stores the session cookie.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	body, status, err := c.send(ctx, http.MethodPost, "/auth/login", nil, form)
	if err != nil {
		return err
	}
	if status == http.StatusForbidden {
		return &StatusError{Op: "login", StatusCode: status, Body: "forbidden (IP banned or too many attempts)"}
	}
	// a wrong password is still 200, with "Fails." as the body
	if status != http.StatusOK || strings.TrimSpace(string(body)) == "Fails." {
		return &StatusError{Op: "login", StatusCode: status, Body: string(body)}
	}
	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()
	return nil
}

func (c *Client) ensureLogin(ctx context.Context) error {
	c.mu.Lock()
	ok := c.loggedIn
	c.mu.Unlock()
	if ok {
		return nil
	}
	return c.Login(ctx)
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.loggedIn = false
	c.mu.Unlock()
}

func (c *Client) send(ctx context.Context, method, path string, query, form url.Values) ([]byte, int, error) {
	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reqBody io.Reader = http.NoBody
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, 0, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Referer", c.baseURL+"/")
	// #nosec G704 -- baseURL is from config (QBITTORRENT_URL), not user input
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// do performs an authenticated call, re-logging once on 403.
func (c *Client) do(ctx context.Context, op, method, path string, query, form url.Values) ([]byte, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}
	body, status, err := c.send(ctx, method, path, query, form)
	if err != nil {
		return nil, err
	}
	if status == http.StatusForbidden {
		c.invalidate()
		if loginErr := c.Login(ctx); loginErr != nil {
			return nil, loginErr
		}
		body, status, err = c.send(ctx, method, path, query, form)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, &StatusError{Op: op, StatusCode: status, Body: string(body)}
	}
	return body, nil
}

// AddTorrentOptions controls optional parameters for torrent add API.
type AddTorrentOptions struct {
	SavePath           string
	SequentialDownload bool
	FirstLastPiecePrio bool
}

// AddTorrentFromURLs adds a torrent from magnet or .torrent URL.
func (c *Client) AddTorrentFromURLs(ctx context.Context, urls string, opts *AddTorrentOptions) error {
	form := url.Values{}
	form.Set("urls", urls)
	if opts != nil {
		if opts.SavePath != "" {
			form.Set("savepath", opts.SavePath)
		}
		if opts.SequentialDownload {
			form.Set("sequentialDownload", "true")
		}
		if opts.FirstLastPiecePrio {
			form.Set("firstLastPiecePrio", "true")
		}
	}
	body, err := c.do(ctx, "torrents/add", http.MethodPost, "/torrents/add", nil, form)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) == "Fails." {
		return &StatusError{Op: "torrents/add", StatusCode: http.StatusOK, Body: string(body)}
	}
	return nil
}

// TorrentInfo is one entry from /torrents/info.
type TorrentInfo struct {
	Hash        string  `json:"hash"`
	Name        string  `json:"name"`
	Progress    float64 `json:"progress"`
	State       string  `json:"state"`
	Size        int64   `json:"size"`
	TotalSize   int64   `json:"total_size"`
	AmountLeft  int64   `json:"amount_left"`
	AddedOn     int64   `json:"added_on"`
	SavePath    string  `json:"save_path"`
	ContentPath string  `json:"content_path"`
}

// TorrentsInfo returns the torrents matching hashes ("|"-separated, empty for all).
func (c *Client) TorrentsInfo(ctx context.Context, hashes string) ([]TorrentInfo, error) {
	var query url.Values
	if hashes != "" {
		query = url.Values{}
		query.Set("hashes", hashes)
	}
	body, err := c.do(ctx, "torrents/info", http.MethodGet, "/torrents/info", query, nil)
	if err != nil {
		return nil, err
	}
	var list []TorrentInfo
	if decErr := json.Unmarshal(body, &list); decErr != nil {
		return nil, fmt.Errorf("qBittorrent: decode torrents/info: %w", decErr)
	}
	return list, nil
}

// TorrentFileInfo is one entry from /torrents/files.
type TorrentFileInfo struct {
	Index    int     `json:"index"`
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Progress float64 `json:"progress"`
	Priority int     `json:"priority"`
}

// TorrentFiles returns the file list for a torrent. Names are relative to the save path.
func (c *Client) TorrentFiles(ctx context.Context, hash string) ([]TorrentFileInfo, error) {
	query := url.Values{}
	query.Set("hash", hash)
	body, err := c.do(ctx, "torrents/files", http.MethodGet, "/torrents/files", query, nil)
	if err != nil {
		return nil, err
	}
	var files []TorrentFileInfo
	if decErr := json.Unmarshal(body, &files); decErr != nil {
		return nil, fmt.Errorf("qBittorrent: decode torrents/files: %w", decErr)
	}
	for i := range files {
		files[i].Index = i
	}
	return files, nil
}

// DeleteTorrent removes the torrent. deleteFiles: if true, deletes downloaded data.
func (c *Client) DeleteTorrent(ctx context.Context, hash string, deleteFiles bool) error {
	form := url.Values{}
	form.Set("hashes", hash)
	if deleteFiles {
		form.Set("deleteFiles", "true")
	} else {
		form.Set("deleteFiles", "false")
	}
	_, err := c.do(ctx, "torrents/delete", http.MethodPost, "/torrents/delete", nil, form)
	return err
}
