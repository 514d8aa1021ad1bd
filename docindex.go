// Package docindex crawls documentation sources and indexes them as
// searchable chunks. It schedules indexing jobs, runs them on a bounded
// worker pool and walks each source breadth-first with retrying and
// escalating fetchers.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, rod/, goquery/).
package docindex
