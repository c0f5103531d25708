package cfapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hallgren/cfpack/internal/httpcache"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.curseforge.com"

// Common errors.
var (
	ErrUnauthorized = errors.New("cfapi: missing or invalid API key")
	ErrForbidden    = errors.New("cfapi: access forbidden")
	ErrNotFound     = errors.New("cfapi: resource not found")
	ErrRateLimited  = errors.New("cfapi: rate limited")
	ErrServer       = errors.New("cfapi: server error")
	ErrNetwork      = errors.New("cfapi: network error")
)

// FileService is the capability surface the installer needs from an API
// client. Implementations return explicit errors (ErrNotFound when metadata
// is unavailable) rather than relying on callers probing for methods.
type FileService interface {
	// FileMetadata fetches the file description for a (project, file) pair.
	FileMetadata(ctx context.Context, projectID, fileID int) (*File, error)

	// DownloadURL resolves the direct download URL for a (project, file) pair.
	DownloadURL(ctx context.Context, projectID, fileID int) (string, error)
}

// Options configures the client.
type Options struct {
	// APIKey is the x-api-key credential. Required for the production API.
	APIKey string

	// BaseURL overrides the API endpoint. Default: DefaultBaseURL.
	BaseURL string

	// Timeout for individual requests. Default: 15s.
	Timeout time.Duration

	// MaxAttempts is the retry budget for transient failures. Default: 3.
	MaxAttempts int

	// Backoff is the initial retry delay (doubles per attempt). Default: 600ms.
	Backoff time.Duration

	// UserAgent sets the User-Agent header.
	UserAgent string

	// Cache, when non-nil, caches GET responses keyed by full URL.
	Cache *httpcache.Cache
}

// Client talks to the CurseForge REST API.
// All methods are safe for concurrent use.
type Client struct {
	http *http.Client
	opts Options
}

var _ FileService = (*Client)(nil)

// NewClient creates a client with the given options.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 600 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "cfpack"
	}
	return &Client{
		http: &http.Client{Timeout: opts.Timeout},
		opts: opts,
	}
}

// envelope is the standard {"data": ...} wrapper on API responses.
type envelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination"`
}

// GetGames lists the games supported by the platform.
func (c *Client) GetGames(ctx context.Context) ([]Game, error) {
	var games []Game
	return games, c.getJSON(ctx, "/v1/games", nil, &games)
}

// GetMod fetches a single project by ID.
func (c *Client) GetMod(ctx context.Context, modID int) (*Mod, error) {
	var mod Mod
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/mods/%d", modID), nil, &mod); err != nil {
		return nil, err
	}
	return &mod, nil
}

// GetMods fetches several projects in one call.
func (c *Client) GetMods(ctx context.Context, modIDs []int) ([]Mod, error) {
	body := struct {
		ModIDs []int `json:"modIds"`
	}{ModIDs: modIDs}
	var mods []Mod
	return mods, c.postJSON(ctx, "/v1/mods", body, &mods)
}

// SearchMods searches projects with the given filters.
func (c *Client) SearchMods(ctx context.Context, p SearchParams) ([]Mod, *Pagination, error) {
	q := url.Values{}
	q.Set("gameId", strconv.Itoa(p.GameID))
	if p.ClassID != 0 {
		q.Set("classId", strconv.Itoa(p.ClassID))
	}
	if p.CategoryID != 0 {
		q.Set("categoryId", strconv.Itoa(p.CategoryID))
	}
	if p.SearchFilter != "" {
		q.Set("searchFilter", p.SearchFilter)
	}
	if p.GameVersion != "" {
		q.Set("gameVersion", p.GameVersion)
	}
	if p.Slug != "" {
		q.Set("slug", p.Slug)
	}
	if p.Index > 0 {
		q.Set("index", strconv.Itoa(p.Index))
	}
	if p.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(p.PageSize))
	}

	var mods []Mod
	page, err := c.getJSONPaged(ctx, "/v1/mods/search", q, &mods)
	if err != nil {
		return nil, nil, err
	}
	return mods, page, nil
}

// GetModFile fetches metadata for one file of a project.
func (c *Client) GetModFile(ctx context.Context, modID, fileID int) (*File, error) {
	var f File
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/mods/%d/files/%d", modID, fileID), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetModFiles lists files of a project, optionally filtered by game version.
func (c *Client) GetModFiles(ctx context.Context, modID int, gameVersion string) ([]File, error) {
	q := url.Values{}
	if gameVersion != "" {
		q.Set("gameVersion", gameVersion)
	}
	var files []File
	return files, c.getJSON(ctx, fmt.Sprintf("/v1/mods/%d/files", modID), q, &files)
}

// GetFileDownloadURL resolves the direct download URL of a file.
func (c *Client) GetFileDownloadURL(ctx context.Context, modID, fileID int) (string, error) {
	var u string
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/mods/%d/files/%d/download-url", modID, fileID), nil, &u); err != nil {
		return "", err
	}
	return u, nil
}

// GetCategories lists the categories of a game.
func (c *Client) GetCategories(ctx context.Context, gameID int) ([]Category, error) {
	q := url.Values{}
	q.Set("gameId", strconv.Itoa(gameID))
	var cats []Category
	return cats, c.getJSON(ctx, "/v1/categories", q, &cats)
}

// GetMinecraftVersions lists the Minecraft version index.
func (c *Client) GetMinecraftVersions(ctx context.Context) ([]MinecraftVersion, error) {
	var versions []MinecraftVersion
	return versions, c.getJSON(ctx, "/v1/minecraft/version", nil, &versions)
}

// FileMetadata implements FileService.
func (c *Client) FileMetadata(ctx context.Context, projectID, fileID int) (*File, error) {
	return c.GetModFile(ctx, projectID, fileID)
}

// DownloadURL implements FileService.
func (c *Client) DownloadURL(ctx context.Context, projectID, fileID int) (string, error) {
	return c.GetFileDownloadURL(ctx, projectID, fileID)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	_, err := c.getJSONPaged(ctx, path, query, v)
	return err
}

func (c *Client) getJSONPaged(ctx context.Context, path string, query url.Values, v any) (*Pagination, error) {
	u := c.opts.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	if c.opts.Cache != nil {
		if ok, _ := c.opts.Cache.Get(u, v); ok {
			return nil, nil
		}
	}

	var page *Pagination
	err := httpcache.Retry(ctx, c.opts.MaxAttempts, c.opts.Backoff, func() error {
		var err error
		page, err = c.do(ctx, http.MethodGet, u, nil, v)
		return err
	})
	if err != nil {
		return nil, err
	}

	if c.opts.Cache != nil {
		_ = c.opts.Cache.Set(u, v)
	}
	return page, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, v any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return httpcache.Retry(ctx, c.opts.MaxAttempts, c.opts.Backoff, func() error {
		_, err := c.do(ctx, http.MethodPost, c.opts.BaseURL+path, payload, v)
		return err
	})
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, v any) (*Pagination, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if c.opts.APIKey != "" {
		req.Header.Set("x-api-key", c.opts.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &httpcache.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return env.Pagination, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return &httpcache.RetryableError{Err: ErrRateLimited}
	case code >= 500:
		return &httpcache.RetryableError{Err: fmt.Errorf("%w: status %d", ErrServer, code)}
	default:
		return fmt.Errorf("cfapi: unexpected status %d", code)
	}
}
