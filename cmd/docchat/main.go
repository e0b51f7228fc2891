// Package main is the docchat CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/docchat/internal/cli"
	"github.com/hyperjump/docchat/internal/config"
	"github.com/hyperjump/docchat/internal/extract"
	"github.com/hyperjump/docchat/internal/fetch"
	"github.com/hyperjump/docchat/internal/llm"
	"github.com/hyperjump/docchat/internal/pipeline"
	"github.com/hyperjump/docchat/internal/server"
	"github.com/hyperjump/docchat/internal/session"
	"github.com/hyperjump/docchat/internal/upload"
	"github.com/hyperjump/docchat/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docchat/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present; when neither exists, defaults plus
// environment overrides are used. Returns the config and the path loaded ("" for defaults).
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
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
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
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "chat":
		runChat()
	case "extract":
		runExtract()
	case "fetch":
		runFetch()
	case "server":
		runServer()
	case "version", "--version", "-v":
		fmt.Printf("docchat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
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

// setup loads config and builds the logger shared by every subcommand.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, bool) {
	cfg, resolvedConfigPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLoggerWithFile(debugMode, utils.LogFileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)
	return cfg, logger, debugMode
}

// Components holds the collaborators a session needs.
type Components struct {
	Extractor *extract.Extractor
	Fetcher   *fetch.Fetcher
	Pipeline  *pipeline.Pipeline
	Model     string
}

// initializeComponents wires extractor, fetcher and pipeline from cfg. The
// model client is only built when needModel is set, so extract and fetch work
// without an API key.
func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool, needModel bool) (*Components, error) {
	var (
		extOpts   []extract.ExtractorOption
		fetchOpts = []fetch.FetcherOption{
			fetch.WithTimeout(cfg.Fetch.Timeout()),
			fetch.WithUserAgent(cfg.Fetch.UserAgent),
			fetch.WithMaxBodyBytes(cfg.Fetch.MaxBodyBytes),
		}
		pipeOpts []pipeline.PipelineOption
	)
	if debug && logger != nil {
		extOpts = append(extOpts, extract.WithLogger(logger))
		fetchOpts = append(fetchOpts, fetch.WithLogger(logger))
		pipeOpts = append(pipeOpts, pipeline.WithLogger(logger))
	}
	c := &Components{
		Extractor: extract.NewExtractor(extOpts...),
		Fetcher:   fetch.NewFetcher(fetchOpts...),
		Model:     cfg.Model.Name,
	}
	if !needModel {
		return c, nil
	}
	llmOpts := []llm.Option{
		llm.WithBaseURL(cfg.Model.BaseURL),
		llm.WithModel(cfg.Model.Name),
		llm.WithMaxTokens(cfg.Model.MaxTokens),
		llm.WithTimeout(cfg.Model.Timeout()),
	}
	if cfg.Model.Temperature != nil {
		llmOpts = append(llmOpts, llm.WithTemperature(*cfg.Model.Temperature))
	}
	provider, err := llm.NewOpenAIProvider(cfg.Model.APIKey, llmOpts...)
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return nil, fmt.Errorf("%w: set %s or model.api_key in the config", err, config.EnvAPIKey)
		}
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}
	c.Pipeline = pipeline.New(provider, pipeOpts...)
	return c, nil
}

// newSession builds a session over the shared components.
func (c *Components) newSession(id string, cfg *config.Config, logger *zap.Logger, debug bool) *session.Session {
	opts := []session.Option{session.WithPreviewLimits(cfg.Preview.SnippetChars, cfg.Preview.HeadRows)}
	if debug && logger != nil {
		opts = append(opts, session.WithLogger(logger))
	}
	return session.New(id, c.Extractor, c.Fetcher, c.Pipeline, opts...)
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	maxChars := fs.Int("max-chars", 2000, "characters of text to print in text mode (0 = all)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: docchat extract [flags] <file>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, debugMode, false)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	path := fs.Arg(0)
	x, err := components.Extractor.Extract(path)
	if err != nil {
		cli.WriteError(os.Stderr, err)
		os.Exit(1)
	}
	if err := cli.WriteExtraction(os.Stdout, filepath.Base(path), x, *maxChars, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: docchat fetch [flags] <url>")
		os.Exit(1)
	}
	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, debugMode, false)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	text, err := components.Fetcher.FetchText(ctx, fs.Arg(0))
	if err != nil {
		cli.WriteError(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(text)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, debugMode, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	spool, err := upload.NewSpool(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		logger.Fatal("Failed to initialize upload spool", zap.Error(err))
	}
	store := session.NewStore(cfg.Session.IdleTimeout(), func(id string) *session.Session {
		return components.newSession(id, cfg, logger, debugMode)
	})

	srv := server.NewServer(store, spool, &cfg.Server, components.Model, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func printUsage() {
	fmt.Println(`docchat - Chat with a document or web page

Usage:
  docchat chat [flags]             Start an interactive chat session
  docchat extract [flags] <file>   Print the text extracted from a file
  docchat fetch [flags] <url>      Print the paragraph text of a web page
  docchat server [flags]           Start the HTTP API
  docchat version                  Show version
  docchat help                     Show this help

Chat Flags:
  --config string    Config file path (default: /usr/local/etc/docchat/config.yaml)
  --file string      Document to load at start (.csv, .xls, .xlsx, .xlsm, .docx, .odt, .rtf, .pdf)
  --url string       Web page to load at start
  --watch            Reload --file when it changes on disk
  --output string    Output format: text or json (default: text)
  --debug            Enable debug logging

Chat Commands:
  /file <path>       Load a document
  /url <url>         Load a web page
  /preview           Show the loaded document preview
  /history           Show the transcript
  /help              Show chat commands
  /quit              Leave

Extract Flags:
  --output string    Output format: text or json (default: text)
  --max-chars int    Characters of text to print in text mode (default: 2000, 0 = all)

Server Flags:
  --config string    Config file path
  --debug            Enable debug logging

Environment:
  DOCCHAT_API_KEY    Model API key (also read from .env)
  DOCCHAT_MODEL      Model name
  DOCCHAT_BASE_URL   OpenAI-compatible endpoint

Examples:
  docchat chat --file report.pdf
  docchat chat --url https://example.com/article
  docchat chat --file sales.csv --watch
  docchat extract --output json data.xlsx
  docchat server --config ./config.yaml`)
}
