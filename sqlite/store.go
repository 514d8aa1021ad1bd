package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fwojciec/docindex"
)

// Compile-time interface verification.
var _ docindex.DocumentStore = (*Store)(nil)

// Store implements docindex.DocumentStore using SQLite. Library names are
// stored lower-cased; version names are normalized with
// docindex.NormalizeVersion.
type Store struct {
	db *DB
}

// NewStore creates a new Store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// EnsureLibraryAndVersion creates the library and version rows if needed.
func (s *Store) EnsureLibraryAndVersion(ctx context.Context, library, version string) (int64, error) {
	library = normalizeLibrary(library)
	if library == "" {
		return 0, docindex.Errorf(docindex.EINVALID, "library name required")
	}
	version = docindex.NormalizeVersion(version)

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	ts := now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO libraries (name, created_at) VALUES (?, ?)
		ON CONFLICT (name) DO NOTHING
	`, library, ts); err != nil {
		return 0, err
	}

	var libraryID int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM libraries WHERE name = ?", library).Scan(&libraryID); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO versions (library_id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (library_id, name) DO NOTHING
	`, libraryID, version, ts, ts); err != nil {
		return 0, err
	}

	var versionID int64
	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM versions WHERE library_id = ? AND name = ?", libraryID, version,
	).Scan(&versionID); err != nil {
		return 0, err
	}

	return versionID, tx.Commit()
}

// RemoveAllDocuments deletes every page of a version. Chunks cascade.
func (s *Store) RemoveAllDocuments(ctx context.Context, library, version string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM pages WHERE version_id IN (
			SELECT v.id FROM versions v JOIN libraries l ON l.id = v.library_id
			WHERE l.name = ? AND v.name = ?
		)
	`, normalizeLibrary(library), docindex.NormalizeVersion(version))
	return err
}

// AddScrapeResult stores a page and its chunks, replacing any page with
// the same URL in the version.
func (s *Store) AddScrapeResult(ctx context.Context, library, version string, depth int, page *docindex.ProcessedPage) error {
	if page == nil || page.URL == "" {
		return docindex.Errorf(docindex.EINVALID, "page URL required")
	}

	versionID, err := s.EnsureLibraryAndVersion(ctx, library, version)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE version_id = ? AND url = ?", versionID, page.URL); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO pages (version_id, url, title, content_type, etag, last_modified, depth, content_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, versionID, page.URL, page.Title, page.ContentType, page.ETag, page.LastModified,
		depth, hashChunks(page.Chunks), now())
	if err != nil {
		return err
	}
	pageID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, c := range page.Chunks {
		path, err := json.Marshal(nonNil(c.Path))
		if err != nil {
			return err
		}
		kind := c.Kind
		if kind == "" {
			kind = docindex.ChunkText
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (page_id, position, kind, path, content) VALUES (?, ?, ?, ?, ?)",
			pageID, i, kind, string(path), c.Content,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeletePage deletes a page and its chunks.
func (s *Store) DeletePage(ctx context.Context, pageID int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM pages WHERE id = ?", pageID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return docindex.Errorf(docindex.ENOTFOUND, "page not found")
	}
	return nil
}

// UpdateVersionStatus sets the status and error message of a version.
func (s *Store) UpdateVersionStatus(ctx context.Context, versionID int64, status docindex.VersionStatus, errMsg string) error {
	return s.updateVersion(ctx, versionID,
		"UPDATE versions SET status = ?, error_message = ?, updated_at = ? WHERE id = ?",
		string(status), errMsg, now(), versionID)
}

// UpdateVersionProgress records crawl progress.
func (s *Store) UpdateVersionProgress(ctx context.Context, versionID int64, pages, maxPages int) error {
	return s.updateVersion(ctx, versionID,
		"UPDATE versions SET progress_pages = ?, progress_max_pages = ?, updated_at = ? WHERE id = ?",
		pages, maxPages, now(), versionID)
}

// StoreScraperOptions saves opts as JSON along with the source URL.
func (s *Store) StoreScraperOptions(ctx context.Context, versionID int64, opts docindex.ScraperOptions) error {
	data, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to encode scraper options: %w", err)
	}
	return s.updateVersion(ctx, versionID,
		"UPDATE versions SET scraper_options = ?, source_url = ?, updated_at = ? WHERE id = ?",
		string(data), opts.URL, now(), versionID)
}

func (s *Store) updateVersion(ctx context.Context, versionID int64, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return docindex.Errorf(docindex.ENOTFOUND, "version %d not found", versionID)
	}
	return nil
}

// GetScraperOptions returns the stored options of a version.
func (s *Store) GetScraperOptions(ctx context.Context, versionID int64) (*docindex.ScraperOptions, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT scraper_options FROM versions WHERE id = ?", versionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docindex.Errorf(docindex.ENOTFOUND, "version %d not found", versionID)
	}
	if err != nil {
		return nil, err
	}
	if !data.Valid || data.String == "" {
		return nil, docindex.Errorf(docindex.ENOTFOUND, "no scraper options stored for version %d", versionID)
	}

	var opts docindex.ScraperOptions
	if err := json.Unmarshal([]byte(data.String), &opts); err != nil {
		return nil, fmt.Errorf("failed to decode scraper options: %w", err)
	}
	return &opts, nil
}

// GetPagesByVersionID returns the stored pages of a version ordered by
// depth, then insertion.
func (s *Store) GetPagesByVersionID(ctx context.Context, versionID int64) ([]docindex.StoredPage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, url, etag, depth FROM pages WHERE version_id = ? ORDER BY depth, id", versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []docindex.StoredPage
	for rows.Next() {
		var p docindex.StoredPage
		if err := rows.Scan(&p.ID, &p.URL, &p.ETag, &p.Depth); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// GetChunks returns the chunks of a page in order.
func (s *Store) GetChunks(ctx context.Context, pageID int64) ([]docindex.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, path, content FROM chunks WHERE page_id = ? ORDER BY position", pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []docindex.Chunk
	for rows.Next() {
		var c docindex.Chunk
		var path string
		if err := rows.Scan(&c.Kind, &path, &c.Content); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(path), &c.Path); err != nil {
			return nil, fmt.Errorf("failed to decode chunk path: %w", err)
		}
		if len(c.Path) == 0 {
			c.Path = nil
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

const versionColumns = `
	v.id, l.name, v.name, v.status, v.progress_pages, v.progress_max_pages,
	v.error_message, v.source_url, v.scraper_options, v.created_at, v.updated_at
	FROM versions v JOIN libraries l ON l.id = v.library_id`

// GetVersionsByStatus returns versions in any of the statuses, oldest first.
func (s *Store) GetVersionsByStatus(ctx context.Context, statuses []docindex.VersionStatus) ([]*docindex.Version, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	return s.findVersions(ctx,
		"SELECT"+versionColumns+" WHERE v.status IN ("+placeholders(len(statuses))+") ORDER BY v.created_at, v.id",
		args...)
}

// FindVersions returns all versions ordered by library and version name.
// An empty library returns every library's versions.
func (s *Store) FindVersions(ctx context.Context, library string) ([]*docindex.Version, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT" + versionColumns)
	if library != "" {
		query.WriteString(" WHERE l.name = ?")
		args = append(args, normalizeLibrary(library))
	}
	query.WriteString(" ORDER BY l.name, v.name")

	return s.findVersions(ctx, query.String(), args...)
}

func (s *Store) findVersions(ctx context.Context, query string, args ...any) ([]*docindex.Version, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*docindex.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func scanVersion(rows *sql.Rows) (*docindex.Version, error) {
	var v docindex.Version
	var status, createdAt, updatedAt string
	var opts sql.NullString

	if err := rows.Scan(&v.ID, &v.Library, &v.Name, &status, &v.ProgressPages, &v.ProgressMaxPages,
		&v.ErrorMessage, &v.SourceURL, &opts, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	v.Status = docindex.VersionStatus(status)

	if opts.Valid && opts.String != "" {
		v.Options = &docindex.ScraperOptions{}
		if err := json.Unmarshal([]byte(opts.String), v.Options); err != nil {
			return nil, fmt.Errorf("failed to decode scraper options: %w", err)
		}
	}

	var err error
	if v.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if v.UpdatedAt, err = parseRFC3339(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &v, nil
}

func nonNil(path []string) []string {
	if path == nil {
		return []string{}
	}
	return path
}
