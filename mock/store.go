package mock

import (
	"context"

	"github.com/fwojciec/docindex"
)

var _ docindex.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is a mock implementation of docindex.DocumentStore.
type DocumentStore struct {
	EnsureLibraryAndVersionFn func(ctx context.Context, library, version string) (int64, error)
	RemoveAllDocumentsFn      func(ctx context.Context, library, version string) error
	AddScrapeResultFn         func(ctx context.Context, library, version string, depth int, page *docindex.ProcessedPage) error
	DeletePageFn              func(ctx context.Context, pageID int64) error
	UpdateVersionStatusFn     func(ctx context.Context, versionID int64, status docindex.VersionStatus, errMsg string) error
	UpdateVersionProgressFn   func(ctx context.Context, versionID int64, pages, maxPages int) error
	StoreScraperOptionsFn     func(ctx context.Context, versionID int64, opts docindex.ScraperOptions) error
	GetScraperOptionsFn       func(ctx context.Context, versionID int64) (*docindex.ScraperOptions, error)
	GetPagesByVersionIDFn     func(ctx context.Context, versionID int64) ([]docindex.StoredPage, error)
	GetVersionsByStatusFn     func(ctx context.Context, statuses []docindex.VersionStatus) ([]*docindex.Version, error)
	FindVersionsFn            func(ctx context.Context, library string) ([]*docindex.Version, error)
}

func (s *DocumentStore) EnsureLibraryAndVersion(ctx context.Context, library, version string) (int64, error) {
	return s.EnsureLibraryAndVersionFn(ctx, library, version)
}

func (s *DocumentStore) RemoveAllDocuments(ctx context.Context, library, version string) error {
	return s.RemoveAllDocumentsFn(ctx, library, version)
}

func (s *DocumentStore) AddScrapeResult(ctx context.Context, library, version string, depth int, page *docindex.ProcessedPage) error {
	return s.AddScrapeResultFn(ctx, library, version, depth, page)
}

func (s *DocumentStore) DeletePage(ctx context.Context, pageID int64) error {
	return s.DeletePageFn(ctx, pageID)
}

func (s *DocumentStore) UpdateVersionStatus(ctx context.Context, versionID int64, status docindex.VersionStatus, errMsg string) error {
	return s.UpdateVersionStatusFn(ctx, versionID, status, errMsg)
}

func (s *DocumentStore) UpdateVersionProgress(ctx context.Context, versionID int64, pages, maxPages int) error {
	return s.UpdateVersionProgressFn(ctx, versionID, pages, maxPages)
}

func (s *DocumentStore) StoreScraperOptions(ctx context.Context, versionID int64, opts docindex.ScraperOptions) error {
	return s.StoreScraperOptionsFn(ctx, versionID, opts)
}

func (s *DocumentStore) GetScraperOptions(ctx context.Context, versionID int64) (*docindex.ScraperOptions, error) {
	return s.GetScraperOptionsFn(ctx, versionID)
}

func (s *DocumentStore) GetPagesByVersionID(ctx context.Context, versionID int64) ([]docindex.StoredPage, error) {
	return s.GetPagesByVersionIDFn(ctx, versionID)
}

func (s *DocumentStore) GetVersionsByStatus(ctx context.Context, statuses []docindex.VersionStatus) ([]*docindex.Version, error) {
	return s.GetVersionsByStatusFn(ctx, statuses)
}

func (s *DocumentStore) FindVersions(ctx context.Context, library string) ([]*docindex.Version, error) {
	return s.FindVersionsFn(ctx, library)
}
