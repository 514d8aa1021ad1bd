package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/docindex"
	"github.com/fwojciec/docindex/crawl"
	"github.com/fwojciec/docindex/events"
	"github.com/fwojciec/docindex/fs"
	"github.com/fwojciec/docindex/gemini"
	"github.com/fwojciec/docindex/github"
	dochttp "github.com/fwojciec/docindex/http"
	"github.com/fwojciec/docindex/jobs"
	"github.com/fwojciec/docindex/pipeline"
	"github.com/fwojciec/docindex/rod"
	docslog "github.com/fwojciec/docindex/slog"
	"github.com/fwojciec/docindex/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path. Set before calling Run().
	DBPath string

	// SQLite database used by the document store.
	DB *sqlite.DB

	// Scraper overrides the crawl service wired by Run. Used by tests.
	Scraper docindex.Scraper

	closers []io.Closer
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath: defaultDBPath(),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	for i := len(m.closers) - 1; i >= 0; i-- {
		_ = m.closers[i].Close()
	}
	m.closers = nil
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("docindex"),
		kong.Description("Crawl and index documentation for local search"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'docindex --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	logger := newLogger(stderr, cli.Verbose)

	m.DB = sqlite.NewDB(m.DBPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set DOCINDEX_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", m.DBPath, err)
	}
	defer m.Close()

	store := sqlite.NewStore(m.DB)
	deps.Store = store

	if !strings.HasPrefix(kongCtx.Command(), "list") {
		scraper := m.Scraper
		if scraper == nil {
			scraper, err = m.newScraper(cli, logger)
			if err != nil {
				return err
			}
		}

		bus := events.NewBus(events.WithLogger(logger))
		manager := jobs.NewManager(store,
			&jobs.Worker{Store: store, Scraper: scraper, Logger: logger},
			jobs.WithConcurrency(cli.Concurrency),
			jobs.WithEventBus(bus),
			jobs.WithLogger(logger),
			jobs.WithRecovery(cmd == "resume"),
		)
		if err := manager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start job manager: %w", err)
		}
		defer manager.Wait()
		defer manager.Stop()

		deps.Jobs = manager
		deps.Events = bus
	}

	return kongCtx.Run(deps)
}

// newScraper wires the fetchers, the content pipeline and all crawl
// strategies behind a single Scraper.
func (m *Main) newScraper(cli *CLI, logger *slog.Logger) (docindex.Scraper, error) {
	// Raw repository files are served from a CDN that tolerates more.
	limiter := crawl.NewDomainLimiter(cli.RateLimit,
		crawl.WithBurst(cli.RateBurst),
		crawl.WithHostRate("raw.githubusercontent.com", cli.RateLimit*4),
	)

	httpFetcher := docslog.NewLoggingFetcher(dochttp.NewFetcher(dochttp.WithRateLimiter(limiter)), "http", logger)
	fileFetcher := docslog.NewLoggingFetcher(fs.NewFetcher(), "file", logger)

	cache, err := rod.NewResourceCache(rod.DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource cache: %w", err)
	}
	browserFetcher := docslog.NewLoggingFetcher(rod.NewFetcher(
		rod.WithResourceCache(cache),
		rod.WithManagerOptions(rod.WithNoSandbox(cli.NoSandbox), rod.WithManagerLogger(logger)),
	), "browser", logger)

	auto := crawl.NewAutoFetcher(logger, browserFetcher, fileFetcher, httpFetcher)
	m.closers = append(m.closers, auto)

	repos, err := github.NewRepositoryService(cli.GitHubToken, github.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	pipe := pipeline.NewDefault(pipeline.Config{
		MaxChunkSize: cli.ChunkSize,
		Counter:      gemini.NewTokenCounter(tokenizerModel),
		MaxTokens:    cli.ChunkTokens,
	})
	walker := &crawl.Walker{Logger: logger}

	web := &crawl.WebStrategy{
		Fetcher:        auto,
		HTTPFetcher:    httpFetcher,
		BrowserFetcher: browserFetcher,
		Pipeline:       pipe,
		Sitemaps:       docslog.NewLoggingSitemapService(dochttp.NewSitemapService(httpFetcher), logger),
		Walker:         walker,
		Logger:         logger,
	}

	svc := crawl.NewService(logger,
		&crawl.GitHubStrategy{Repos: repos, Fetcher: httpFetcher, Pipeline: pipe, Walker: walker},
		&crawl.RegistryStrategy{Web: web},
		&crawl.LocalStrategy{Fetcher: fileFetcher, Pipeline: pipe, Walker: walker},
		web,
	)
	return docslog.NewLoggingScraper(svc, logger), nil
}

// tokenizerModel is the local tokenizer used to bound chunk sizes.
const tokenizerModel = "gemini-2.5-flash"

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func defaultDBPath() string {
	if path := os.Getenv("DOCINDEX_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "docindex.db"
	}
	dir := filepath.Join(home, ".docindex")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "docindex.db")
}
