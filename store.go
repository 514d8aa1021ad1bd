package docindex

import "context"

// DocumentStore persists libraries, versions, pages and their chunks.
type DocumentStore interface {
	// EnsureLibraryAndVersion creates the library and version if needed
	// and returns the version ID.
	EnsureLibraryAndVersion(ctx context.Context, library, version string) (int64, error)

	// RemoveAllDocuments deletes every page of a version.
	RemoveAllDocuments(ctx context.Context, library, version string) error

	// AddScrapeResult stores a processed page, replacing one with the same URL.
	AddScrapeResult(ctx context.Context, library, version string, depth int, page *ProcessedPage) error

	// DeletePage deletes a page and its chunks.
	DeletePage(ctx context.Context, pageID int64) error

	// UpdateVersionStatus sets the persisted status and error message.
	UpdateVersionStatus(ctx context.Context, versionID int64, status VersionStatus, errMsg string) error

	// UpdateVersionProgress records crawl progress.
	UpdateVersionProgress(ctx context.Context, versionID int64, pages, maxPages int) error

	// StoreScraperOptions saves the source configuration of a version.
	StoreScraperOptions(ctx context.Context, versionID int64, opts ScraperOptions) error

	// GetScraperOptions returns the stored source configuration.
	// Returns ENOTFOUND if none was stored.
	GetScraperOptions(ctx context.Context, versionID int64) (*ScraperOptions, error)

	// GetPagesByVersionID returns the pages stored for a version.
	GetPagesByVersionID(ctx context.Context, versionID int64) ([]StoredPage, error)

	// GetVersionsByStatus returns versions in any of the statuses, oldest first.
	GetVersionsByStatus(ctx context.Context, statuses []VersionStatus) ([]*Version, error)

	// FindVersions returns all versions, optionally limited to one library.
	FindVersions(ctx context.Context, library string) ([]*Version, error)
}
