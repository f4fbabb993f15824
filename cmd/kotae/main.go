// Package main is the kotae CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/internal/wiki"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kotae/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory takes precedence if it exists. A missing default file
// yields the built-in defaults. Returns the config and the path actually used.
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
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			config.ApplyEnv(cfg)
			return cfg, "", nil
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
	case "ask":
		runAsk()
	case "plan":
		runPlan()
	case "ingest":
		runIngest()
	case "fetch":
		runFetch()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads and validates config and builds a logger. It exits on failure.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, string) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, resolved
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (plans, retrieval fallbacks, etc.)")
	ingest := fs.Bool("ingest", true, "index new or changed corpus files before serving")
	watch := fs.Bool("watch", false, "re-index corpus files when they change (also corpus.watch in config)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, resolvedConfigPath := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
		zap.Strings("corpus", cfg.Corpus.Documents),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if _, err := components.Engine.Rebuild(ctx); err != nil {
		logger.Fatal("Failed to rebuild search indexes", zap.Error(err))
	}
	if *ingest {
		report, err := components.Indexer.IndexCorpus(ctx, cfg.Corpus.Directory, cfg.Corpus.Documents, cfg.Corpus.Extensions)
		if err != nil {
			logger.Warn("corpus ingest skipped", zap.String("dir", cfg.Corpus.Directory), zap.Error(err))
		} else {
			logger.Info("corpus ingested",
				zap.Strings("indexed", report.Indexed),
				zap.Int("unchanged", len(report.Skipped)),
				zap.Strings("missing", report.Missing),
				zap.Int("failed", len(report.Failed)),
			)
		}
	}

	if *watch || cfg.Corpus.Watch {
		refresher := components.Indexer.NewRefresher(ctx, cfg.Corpus.Directory, cfg.Corpus.Documents, cfg.Corpus.Extensions)
		w := watcher.New(cfg.Corpus.Directory, refresher.Accept, refresher, watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start corpus watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(components.Pipeline, components.Engine, components.Storage, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// buildQuestion joins all positional args with spaces so questions work the
// same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the
// question to the front so that flag.Parse sees them.
func argsReorder(args []string) []string {
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

type questionFlags struct {
	fs         *flag.FlagSet
	configPath *string
	serverURL  *string
	format     *string
	timeout    *time.Duration
}

func newQuestionFlags(name string) *questionFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &questionFlags{
		fs:         fs,
		configPath: fs.String("config", defaultConfigPath, "config file path (for local mode)"),
		serverURL:  fs.String("server", defaultServerURL, "server URL (empty = answer locally without a server)"),
		format:     fs.String("format", "text", "output format: text or json"),
		timeout:    fs.Duration("timeout", 3*time.Minute, "request timeout"),
	}
}

// parse parses args and returns the question and output format. It exits on bad input.
func (q *questionFlags) parse(args []string) (string, cli.OutputFormat) {
	_ = q.fs.Parse(argsReorder(args))
	question := buildQuestion(q.fs.Args())
	if question == "" {
		fmt.Fprintf(os.Stderr, "Usage: kotae %s [flags] <question>\n\n", q.fs.Name())
		q.fs.PrintDefaults()
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*q.format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return question, format
}

// local builds components for answering without a server.
func (q *questionFlags) local(ctx context.Context) (*Components, *zap.Logger) {
	cfg, logger, _ := setup(*q.configPath, false)
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if _, err := components.Engine.Rebuild(ctx); err != nil {
		components.Close()
		fmt.Fprintf(os.Stderr, "Failed to rebuild search indexes: %v\n", err)
		os.Exit(1)
	}
	return components, logger
}

func runAsk() {
	qf := newQuestionFlags("ask")
	verbose := qf.fs.Bool("verbose", false, "show the plan and partial answers")
	question, format := qf.parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), *qf.timeout)
	defer cancel()

	var resp *models.AskResponse
	if *qf.serverURL != "" {
		r, err := cli.NewClient(*qf.serverURL, *qf.timeout).Ask(ctx, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		resp = r
	} else {
		components, logger := qf.local(ctx)
		defer logger.Sync()
		defer components.Close()
		ans, err := components.Pipeline.Answer(ctx, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		resp = ans.Response()
	}
	if err := cli.WriteAnswer(os.Stdout, resp, format, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runPlan() {
	qf := newQuestionFlags("plan")
	question, format := qf.parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), *qf.timeout)
	defer cancel()

	var resp *models.PlanResponse
	if *qf.serverURL != "" {
		r, err := cli.NewClient(*qf.serverURL, *qf.timeout).Plan(ctx, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Plan failed: %v\n", err)
			os.Exit(1)
		}
		resp = r
	} else {
		components, logger := qf.local(ctx)
		defer logger.Sync()
		defer components.Close()
		p, err := components.Pipeline.Plan(ctx, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Plan failed: %v\n", err)
			os.Exit(1)
		}
		resp = &models.PlanResponse{Question: question, Plan: pipeline.PlanUnits(p)}
	}
	if err := cli.WritePlan(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dir := fs.String("dir", "", "corpus directory (default from config)")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger, _ := setup(*configPath, false)
	defer logger.Sync()
	if *dir != "" {
		cfg.Corpus.Directory = *dir
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	report, err := components.Indexer.IndexCorpus(context.Background(), cfg.Corpus.Directory, cfg.Corpus.Documents, cfg.Corpus.Extensions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteCorpusReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dir := fs.String("dir", "", "output directory (default: corpus directory from config)")
	endpoint := fs.String("endpoint", "", "MediaWiki API endpoint (default from config)")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger, _ := setup(*configPath, false)
	defer logger.Sync()

	titles := fs.Args()
	if len(titles) == 0 {
		titles = cfg.Corpus.Documents
	}
	outDir := cfg.Corpus.Directory
	if *dir != "" {
		outDir = *dir
	}
	wikiEndpoint := cfg.Corpus.WikiEndpoint
	if *endpoint != "" {
		wikiEndpoint = *endpoint
	}

	fetcher := wiki.NewFetcher(wikiEndpoint, wiki.WithLogger(logger))
	report, err := fetcher.Fetch(context.Background(), titles, outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteFetchReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae delete [flags] <document-id>")
		os.Exit(1)
	}

	cfg, logger, _ := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	id := fs.Arg(0)
	if err := components.Indexer.DeleteDocument(context.Background(), id); err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted document: %s\n", id)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read local storage)")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *models.StatusResponse
	if *serverURL != "" {
		status, err = cli.NewClient(*serverURL, 30*time.Second).Status(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger, _ := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		status, err = localStatus(context.Background(), cfg, components)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func localStatus(ctx context.Context, cfg *config.Config, c *Components) (*models.StatusResponse, error) {
	if _, err := c.Engine.Rebuild(ctx); err != nil {
		return nil, err
	}
	docCount, err := c.Storage.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunkCount, err := c.Storage.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	status := &models.StatusResponse{
		Documents:       docCount,
		Chunks:          chunkCount,
		VectorIndexSize: c.Engine.VectorIndexSize(),
		Corpus:          c.Pipeline.Vocabulary().Names(),
		Config: &models.StatusConfig{
			VectorIndexType:     c.Engine.VectorIndexType(),
			EmbeddingProvider:   cfg.Embedding.Provider,
			EmbeddingDimensions: cfg.Embedding.Dimensions,
			LLMProvider:         cfg.LLM.Provider,
			LLMModel:            cfg.LLM.Model,
			TopK:                cfg.Pipeline.TopK,
			PlanPolicy:          cfg.Pipeline.PlanPolicy,
			MaxSummaryChars:     cfg.Corpus.MaxSummaryChars,
			ChunkSize:           cfg.Corpus.ChunkSize,
			ChunkOverlap:        cfg.Corpus.ChunkOverlap,
			DatabasePath:        cfg.Storage.DatabasePath,
			BleveIndexPath:      cfg.Storage.BleveIndexPath,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

// Components holds initialized dependencies.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	Vectors      *vector.Set
	KeywordIndex *keyword.BleveIndex
	Engine       *search.Engine
	Indexer      *indexer.Indexer
	Gateway      *llm.Gateway
	Pipeline     *pipeline.Pipeline
}

// Close releases resources.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	fail := func(err error) (*Components, error) {
		c.Close()
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize storage: %w", err))
	}
	c.Storage = store

	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize embedder: %w", err))
	}
	c.Embedder = embedder

	vectors, err := vector.NewSet(cfg.Storage.VectorIndexType, embedder.Dimensions())
	if err != nil {
		if cfg.Storage.VectorIndexType == string(vector.IndexTypeMemory) {
			return fail(fmt.Errorf("failed to initialize vector index: %w", err))
		}
		logger.Warn("failed to create vector index, falling back to memory",
			zap.String("requested_type", cfg.Storage.VectorIndexType),
			zap.Error(err))
		vectors, err = vector.NewSet(string(vector.IndexTypeMemory), embedder.Dimensions())
		if err != nil {
			return fail(fmt.Errorf("failed to initialize vector index: %w", err))
		}
	}
	c.Vectors = vectors

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize keyword index: %w", err))
	}
	c.KeywordIndex = keywordIndex

	c.Engine = search.NewEngine(store, embedder, vectors, keywordIndex, cfg, search.WithLogger(logger))
	c.Indexer = indexer.NewIndexer(store, embedder, c.Engine, &cfg.Corpus, extract.NewExtractor(), indexer.WithLogger(logger))

	model, err := llm.NewModel(&cfg.LLM)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize llm: %w", err))
	}
	c.Gateway = llm.NewGateway(model,
		llm.WithDefaultModel(cfg.LLM.Model),
		llm.WithTimeout(time.Duration(cfg.LLM.TimeoutSeconds)*time.Second),
		llm.WithLogger(logger),
	)
	c.Pipeline, err = pipeline.FromConfig(cfg, c.Gateway, c.Engine, logger)
	if err != nil {
		return fail(err)
	}
	return c, nil
}

func printUsage() {
	fmt.Println(`kotae - Question decomposition and routing over a fixed document corpus

Usage:
  kotae server [flags]             Start the HTTP server
  kotae ask [flags] <question>     Answer a question
  kotae plan [flags] <question>    Show how a question would be decomposed
  kotae ingest [flags]             Index the corpus documents from disk
  kotae fetch [flags] [titles...]  Download corpus documents from Wikipedia
  kotae delete [flags] <id>        Remove a document from the indexes
  kotae status [flags]             Show storage, index and pipeline status
  kotae version                    Show version
  kotae help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml, or ./config.yaml if present)
  --debug            Enable debug logging
  --ingest           Index new or changed corpus files before serving (default: true)
  --watch            Re-index corpus files when they change on disk

Ask / Plan Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to answer locally.
  --format string    Output format: text or json (default: text)
  --timeout duration Request timeout (default: 3m)
  --verbose          (ask only) Show the plan and partial answers

Ingest Flags:
  --config string    Config file path
  --dir string       Corpus directory (default from config)
  --format string    Output format: text or json

Fetch Flags:
  --config string    Config file path
  --dir string       Output directory (default: corpus directory from config)
  --endpoint string  MediaWiki API endpoint (default from config)
  --format string    Output format: text or json

Status Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for local storage.
  --format string    Output format: text or json

Local mode opens the same database and Bleve index as the server; stop the
server before running ingest, delete or local ask/plan/status.

Examples:
  kotae fetch
  kotae ingest
  kotae server
  kotae ask "Which city has the larger population, Toronto or Atlanta?"
  kotae ask --verbose --format json "When was Boston founded?"
  kotae plan "Compare the histories of Chicago and Houston"
  kotae status --server ""`)
}
