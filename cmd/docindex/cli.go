package main

import (
	"context"
	"io"

	"github.com/fwojciec/docindex"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Store  docindex.DocumentStore
	Jobs   docindex.JobManager
	Events docindex.EventBus
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose     bool    `short:"v" help:"Log crawl activity to stderr"`
	Concurrency int     `env:"DOCINDEX_CONCURRENCY" default:"3" help:"Jobs running at once"`
	GitHubToken string  `name:"github-token" env:"GITHUB_TOKEN" help:"GitHub API token"`
	RateLimit   float64 `default:"2" help:"Requests per second per host (0 disables)"`
	RateBurst   int     `default:"1" help:"Requests per host sent without pacing"`
	ChunkSize   int     `default:"1500" help:"Maximum chunk size in bytes"`
	ChunkTokens int     `default:"0" help:"Maximum chunk size in tokens (0 disables)"`
	NoSandbox   bool    `env:"DOCINDEX_NO_SANDBOX" help:"Disable the Chrome sandbox"`

	Scrape  ScrapeCmd  `cmd:"" help:"Crawl and index a documentation source"`
	Refresh RefreshCmd `cmd:"" help:"Re-crawl an indexed version, fetching only changed pages"`
	Resume  ResumeCmd  `cmd:"" help:"Resume jobs interrupted by a previous run"`
	List    ListCmd    `cmd:"" help:"List indexed library versions"`
}

// ScrapeCmd is the "scrape" subcommand.
type ScrapeCmd struct {
	Library      string            `arg:"" help:"Library name"`
	URL          string            `arg:"" help:"Documentation URL (http, https, file or GitHub repository)"`
	Version      string            `short:"V" help:"Library version (empty for unversioned)"`
	MaxPages     int               `default:"1000" help:"Maximum pages to index"`
	MaxDepth     int               `default:"3" help:"Maximum link depth (0 indexes only the given page)"`
	PageWorkers  int               `name:"page-concurrency" default:"3" help:"Pages fetched at once per job"`
	Scope        string            `default:"subpages" enum:"subpages,hostname,domain" help:"Which links to follow"`
	FetchMode    string            `name:"fetch" default:"auto" enum:"auto,http,browser" help:"How web pages are fetched"`
	Include      []string          `short:"i" help:"Only follow URLs matching the glob or /regex/ (repeatable)"`
	Exclude      []string          `short:"x" help:"Never follow URLs matching the glob or /regex/ (repeatable)"`
	Header       map[string]string `short:"H" help:"Extra request header as name=value (repeatable)"`
	Sitemap      bool              `help:"Seed the crawl from the site's sitemap"`
	NoRedirects  bool              `help:"Treat redirects as errors"`
	AbortOnError bool              `help:"Abort the job on the first page error"`
}

// Options converts the flags to scraper options.
func (c *ScrapeCmd) Options() docindex.ScraperOptions {
	return docindex.ScraperOptions{
		URL:              c.URL,
		MaxPages:         c.MaxPages,
		MaxDepth:         docindex.DepthLimit(c.MaxDepth),
		MaxConcurrency:   c.PageWorkers,
		Scope:            docindex.Scope(c.Scope),
		FetchMode:        docindex.FetchMode(c.FetchMode),
		IncludePatterns:  c.Include,
		ExcludePatterns:  c.Exclude,
		Headers:          c.Header,
		UseSitemap:       c.Sitemap,
		DisableRedirects: c.NoRedirects,
		AbortOnError:     c.AbortOnError,
	}
}

// RefreshCmd is the "refresh" subcommand.
type RefreshCmd struct {
	Library string `arg:"" help:"Library name"`
	Version string `short:"V" help:"Library version (empty for unversioned)"`
}

// ResumeCmd is the "resume" subcommand.
type ResumeCmd struct{}

// ListCmd is the "list" subcommand.
type ListCmd struct {
	Library string `arg:"" optional:"" help:"Only list versions of this library"`
}
