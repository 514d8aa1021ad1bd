package docindex

import (
	"strings"
	"time"
)

// VersionStatus is the persisted indexing status of a library version.
type VersionStatus string

const (
	VersionNotIndexed VersionStatus = "not_indexed"
	VersionQueued     VersionStatus = "queued"
	VersionRunning    VersionStatus = "running"
	VersionCompleted  VersionStatus = "completed"
	VersionFailed     VersionStatus = "failed"
	VersionCancelled  VersionStatus = "cancelled"
	VersionUpdating   VersionStatus = "updating"
)

// Version is the persisted mirror of a library version and its indexing state.
type Version struct {
	ID               int64           `json:"id"`
	Library          string          `json:"library"`
	Name             string          `json:"name"`
	Status           VersionStatus   `json:"status"`
	ProgressPages    int             `json:"progressPages"`
	ProgressMaxPages int             `json:"progressMaxPages"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	SourceURL        string          `json:"sourceUrl,omitempty"`
	Options          *ScraperOptions `json:"options,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// StoredPage is a page already indexed for a version, used to seed refreshes.
type StoredPage struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	ETag  string `json:"etag,omitempty"`
	Depth int    `json:"depth"`
}

func toLowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
