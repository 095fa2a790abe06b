// Package main is the Kensaku CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kensaku/internal/cli"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/server"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/vectorstore"
	"github.com/hyperjump/kensaku/internal/watcher"
	"github.com/hyperjump/kensaku/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kensaku/config.yaml"
	defaultServerURL  = "http://localhost:8080"
	clientTimeout     = 5 * time.Minute
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// When the default file does not exist either, built-in defaults are used and the
// returned path is empty (nothing is saved back).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("kensaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (batches embedded, files ingested, watcher events)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchOpts := []watcher.Option{
		watcher.WithReportFunc(func(r models.FileReport) {
			if r.Status != models.FileSuccess {
				logger.Warn("watch ingest incomplete",
					zap.String("filename", r.Filename),
					zap.String("status", r.Status),
					zap.String("message", r.Message))
			}
		}),
	}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(components.Pipeline, &cfg.Watch, watchOpts...)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Engine,
		components.Pipeline,
		components.Ledger,
		cfg,
		logger,
		server.WithWatchService(watchSvc, resolvedConfigPath),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...", zap.Int("fragments", components.Store.Count()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	watchCancel()
	watchSvc.Stop()
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kensaku search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Results are the nearest stored fragments, closest first. The score is the
squared Euclidean distance between the query and fragment embeddings.

Examples:
  kensaku search machine learning
  kensaku search "machine learning"          # same as above
  kensaku search -top-k 20 quarterly revenue
  kensaku search -output json invoice total   # structured JSON for other apps
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// cliLogger returns the stderr logger used by client commands.
func cliLogger(debug bool) *zap.Logger {
	logger, err := utils.NewCLILogger(debug)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	topK := fs.Int("top-k", 0, "number of results (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	debug := fs.Bool("debug", false, "log request details to stderr")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	logger := cliLogger(*debug)
	defer logger.Sync()

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	client := cli.NewClient(*serverURL, clientTimeout)
	logger.Debug("searching", zap.String("server", *serverURL), zap.String("query", queryStr), zap.Int("top_k", *topK))
	response, err := client.Search(context.Background(), &models.SearchQuery{Query: queryStr, TopK: *topK})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("search finished", zap.Int("results", response.Total), zap.Int64("query_time_ms", response.QueryTime))
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	recursive := fs.Bool("recursive", true, "descend into subdirectories")
	debug := fs.Bool("debug", false, "log request details to stderr")
	_ = fs.Parse(os.Args[2:])
	logger := cliLogger(*debug)
	defer logger.Sync()

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensaku ingest [flags] <file-or-directory>...")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	files, err := collectFiles(fs.Args(), config.DefaultExtensions, *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "No supported files found")
		os.Exit(1)
	}

	client := cli.NewClient(*serverURL, clientTimeout)
	logger.Debug("uploading files", zap.String("server", *serverURL), zap.Int("files", len(files)))
	start := time.Now()
	reports, err := client.Upload(context.Background(), files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	for _, r := range reports {
		if r.Status != models.FileSuccess {
			logger.Warn("file not fully ingested", zap.String("filename", r.Filename), zap.String("status", r.Status))
		}
	}
	logger.Debug("upload finished", zap.Duration("elapsed", time.Since(start)))
	if err := cli.WriteFileReports(os.Stdout, reports, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	for _, r := range reports {
		if r.Status == models.FileError {
			os.Exit(2)
		}
	}
}

// collectFiles expands directories into the regular files beneath them that match
// extensions. Files named explicitly are kept whatever their extension; the server
// reports unsupported ones.
func collectFiles(paths []string, extensions []string, recursive bool) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if !recursive && path != p {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && hasExtension(path, extensions) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	client := cli.NewClient(*serverURL, 30*time.Second)
	status, err := client.Status(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: kensaku watch <add|remove|list> [path]")
		fmt.Println("  kensaku watch add <path>     Add an inbox directory")
		fmt.Println("  kensaku watch remove <path>  Stop watching an inbox directory")
		fmt.Println("  kensaku watch list           List inbox directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[3:])
	client := cli.NewClient(*serverURL, 30*time.Second)
	ctx := context.Background()

	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fmt.Printf("Usage: kensaku watch %s <path>\n", sub)
			os.Exit(1)
		}
		path, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			fmt.Printf("Invalid path: %v\n", err)
			os.Exit(1)
		}
		if sub == "add" {
			err = client.AddWatchDirectory(ctx, path)
		} else {
			err = client.RemoveWatchDirectory(ctx, path)
		}
		if err != nil {
			fmt.Printf("Watch %s failed: %v\n", sub, err)
			os.Exit(1)
		}
		if sub == "add" {
			fmt.Printf("Added: %s\n", path)
		} else {
			fmt.Printf("Removed: %s\n", path)
		}
	case "list":
		dirs, err := client.WatchDirectories(ctx)
		if err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range dirs {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store    *vectorstore.Store
	Ledger   *storage.SQLiteStorage
	Embedder embedding.Embedder
	Engine   *search.Engine
	Pipeline *indexer.Pipeline
}

// Close releases the ledger and the embedding provider.
func (c *Components) Close() {
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// newEmbedder builds the configured provider, wrapped in an LRU cache when cache_size > 0.
func newEmbedder(cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch cfg.Provider {
	case config.ProviderHash:
		base = embedding.NewHashEmbedder(cfg.Dimensions)
	case config.ProviderHTTP:
		e, err := embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			APIKey:            cfg.APIKey,
			Dimensions:        cfg.Dimensions,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Timeout:           cfg.Timeout(),
			MaxRetries:        cfg.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		base = e
	case config.ProviderONNX:
		e, err := embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		base = e
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if base.Dimensions() != cfg.Dimensions {
		_ = base.Close()
		return nil, fmt.Errorf("embedding provider produces %d dimensions, config says %d", base.Dimensions(), cfg.Dimensions)
	}
	if cfg.CacheSize <= 0 {
		return base, nil
	}
	cached, err := embedding.NewCachedEmbedder(base, cfg.CacheSize)
	if err != nil {
		_ = base.Close()
		return nil, err
	}
	return cached, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	ledger, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := newEmbedder(&cfg.Embedding)
	if err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	store, err := vectorstore.New(cfg.Embedding.Dimensions, vectorstore.WithLogger(logger))
	if err != nil {
		_ = ledger.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	if logger != nil {
		logger.Info("vector store initialized",
			zap.Int("dimensions", store.Dimensions()),
			zap.String("metric", string(store.Metric())),
			zap.String("embedding_provider", cfg.Embedding.Provider))
	}

	engine := search.NewEngine(store, embedder, &cfg.Search)

	pipelineOpts := []indexer.Option{indexer.WithStorage(ledger)}
	if debug && logger != nil {
		pipelineOpts = append(pipelineOpts, indexer.WithLogger(logger))
	}
	pipeline := indexer.NewPipeline(store, embedder, &cfg.Ingest, pipelineOpts...)

	return &Components{
		Store:    store,
		Ledger:   ledger,
		Embedder: embedder,
		Engine:   engine,
		Pipeline: pipeline,
	}, nil
}

func printUsage() {
	fmt.Println(`kensaku - In-memory similarity search over document fragments

Usage:
  kensaku server [flags]                Start the HTTP server (holds the vector store)
  kensaku ingest [flags] <path>...      Upload files or directories to the server
  kensaku search [flags] <query>        Find the nearest fragments
  kensaku status [flags]                Show store and ledger status
  kensaku watch <add|remove|list>       Manage inbox directories
  kensaku version                       Show version
  kensaku help                          Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kensaku/config.yaml)
  --debug            Enable debug logging

Client Flags (ingest, search, status, watch):
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text, compact, or json (default: text)
  --debug            Log request details to stderr (ingest, search)

Search Flags:
  --top-k int        Number of results (default: server's default_top_k)

Ingest Flags:
  --recursive        Descend into subdirectories (default: true)

Examples:
  kensaku server
  kensaku ingest ./docs report.pdf
  kensaku search "machine learning algorithms"
  kensaku search --output json -top-k 3 "query"
  kensaku status --output json
  kensaku watch add /path/to/inbox
  kensaku watch list`)
}
