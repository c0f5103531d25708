package cfapi

import (
	"strings"
	"time"
)

// GameIDMinecraft is the catalog ID Minecraft content is filed under.
// Search requests must be scoped to a game.
const GameIDMinecraft = 432

// HashAlgo identifies a hash algorithm in file metadata.
// The API uses 1 for SHA-1 and 2 for MD5.
type HashAlgo int

const (
	HashSHA1 HashAlgo = 1
	HashMD5  HashAlgo = 2
)

func (a HashAlgo) String() string {
	switch a {
	case HashSHA1:
		return "sha1"
	case HashMD5:
		return "md5"
	default:
		return "unknown"
	}
}

// FileHash is one content hash reported for a file.
type FileHash struct {
	Value string   `json:"value"`
	Algo  HashAlgo `json:"algo"`
}

// FileDependency is a declared relation to another project. Dependencies are
// carried for diagnostics; the installer does not resolve them transitively.
type FileDependency struct {
	ModID        int `json:"modId"`
	RelationType int `json:"relationType"`
}

// File describes one downloadable file of a project.
type File struct {
	ID              int              `json:"id"`
	GameID          int              `json:"gameId"`
	ModID           int              `json:"modId"`
	DisplayName     string           `json:"displayName"`
	FileName        string           `json:"fileName"`
	ReleaseType     int              `json:"releaseType"`
	FileDate        time.Time        `json:"fileDate"`
	FileLength      int64            `json:"fileLength"`
	DownloadCount   int64            `json:"downloadCount"`
	DownloadURL     string           `json:"downloadUrl"`
	GameVersions    []string         `json:"gameVersions"`
	Hashes          []FileHash       `json:"hashes"`
	Dependencies    []FileDependency `json:"dependencies"`
	FileFingerprint int64            `json:"fileFingerprint"`
}

// HashMap normalizes the hash list into a lowercase algorithm → hex digest
// mapping suitable for download verification. Unknown algorithms and blank
// values are dropped.
func (f *File) HashMap() map[string]string {
	m := make(map[string]string, len(f.Hashes))
	for _, h := range f.Hashes {
		algo := h.Algo.String()
		if algo == "unknown" || h.Value == "" {
			continue
		}
		m[algo] = strings.ToLower(h.Value)
	}
	return m
}

// ModLinks holds the project's external URLs.
type ModLinks struct {
	WebsiteURL string `json:"websiteUrl"`
	WikiURL    string `json:"wikiUrl"`
	IssuesURL  string `json:"issuesUrl"`
	SourceURL  string `json:"sourceUrl"`
}

// Mod is a project on the platform (mod, modpack, resource pack, ...).
type Mod struct {
	ID            int       `json:"id"`
	GameID        int       `json:"gameId"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Summary       string    `json:"summary"`
	Links         ModLinks  `json:"links"`
	DownloadCount int64     `json:"downloadCount"`
	ClassID       int       `json:"classId"`
	DateCreated   time.Time `json:"dateCreated"`
	DateModified  time.Time `json:"dateModified"`
	DateReleased  time.Time `json:"dateReleased"`
	LatestFiles   []File    `json:"latestFiles"`
}

// Game is a game supported by the platform.
type Game struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Category is a project category within a game.
type Category struct {
	ID      int    `json:"id"`
	GameID  int    `json:"gameId"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	ClassID int    `json:"classId"`
}

// MinecraftVersion is one entry of the Minecraft version index.
type MinecraftVersion struct {
	ID            int    `json:"id"`
	GameVersionID int    `json:"gameVersionId"`
	VersionString string `json:"versionString"`
}

// Pagination mirrors the API's paging block on list responses.
type Pagination struct {
	Index       int `json:"index"`
	PageSize    int `json:"pageSize"`
	ResultCount int `json:"resultCount"`
	TotalCount  int `json:"totalCount"`
}

// SearchParams is the supported subset of mod search filters.
type SearchParams struct {
	GameID       int
	ClassID      int
	CategoryID   int
	SearchFilter string
	GameVersion  string
	Slug         string
	Index        int
	PageSize     int
}
