package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/hyperjump/docchat/internal/cli"
	"github.com/hyperjump/docchat/internal/extract"
	"github.com/hyperjump/docchat/internal/session"
	"github.com/hyperjump/docchat/internal/watcher"
	"go.uber.org/zap"
)

var promptStyle = color.New(color.FgCyan)

// chatCommand is a parsed REPL line.
type chatCommand struct {
	name string // "" for a plain question
	arg  string
}

// parseChatLine splits a REPL line into a slash command and its argument.
// Anything not starting with "/" is a question.
func parseChatLine(line string) chatCommand {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return chatCommand{arg: line}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return chatCommand{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}
}

// repl drives one interactive session.
type repl struct {
	sess    *session.Session
	out     io.Writer
	format  cli.OutputFormat
	watcher *watcher.Watcher // nil unless --watch
	logger  *zap.Logger

	mu sync.Mutex // guards out; the watcher prints from its own goroutine
}

func (r *repl) printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) showPreview() {
	p, ok := r.sess.Preview()
	if !ok {
		r.printf("No document loaded. Use /file <path> or /url <url>.\n")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = cli.WritePreview(r.out, p, r.format)
}

func (r *repl) showError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cli.WriteError(r.out, err)
}

func (r *repl) ingest(ctx context.Context, src session.Source) {
	if err := r.sess.Ingest(ctx, src); err != nil {
		r.showError(err)
		return
	}
	r.showPreview()
	if r.watcher == nil {
		return
	}
	if src.Path == "" {
		r.watcher.Unwatch()
		return
	}
	if err := r.watcher.Watch(src.Path); err != nil {
		r.logger.Warn("watch failed", zap.String("path", src.Path), zap.Error(err))
	}
}

// reload is the watcher callback.
func (r *repl) reload(path string) {
	if err := r.sess.IngestFile(context.Background(), path); err != nil {
		r.showError(err)
		return
	}
	r.printf("\nReloaded %s\n", path)
	r.showPreview()
}

// handle runs one line and reports whether the loop should stop.
func (r *repl) handle(ctx context.Context, line string) bool {
	cmd := parseChatLine(line)
	switch cmd.name {
	case "":
		if cmd.arg == "" {
			return false
		}
		msg, err := r.sess.Ask(ctx, cmd.arg)
		if err != nil {
			if errors.Is(err, session.ErrNoContext) {
				r.printf("No document loaded. Use /file <path> or /url <url>.\n")
				return false
			}
			r.showError(err)
			return false
		}
		r.mu.Lock()
		_ = cli.WriteMessage(r.out, msg, r.format)
		r.mu.Unlock()
	case "file":
		if cmd.arg == "" {
			r.printf("Usage: /file <path>\n")
			return false
		}
		r.ingest(ctx, session.FileSource(cmd.arg))
	case "url":
		if cmd.arg == "" {
			r.printf("Usage: /url <url>\n")
			return false
		}
		r.ingest(ctx, session.WebSource(cmd.arg))
	case "preview":
		r.showPreview()
	case "history":
		r.mu.Lock()
		_ = cli.WriteTranscript(r.out, r.sess.History(), r.format)
		r.mu.Unlock()
	case "help":
		r.printf("Commands: /file <path>, /url <url>, /preview, /history, /help, /quit\n")
		r.printf("Supported files: %s\n", strings.Join(extract.SupportedExtensions(), " "))
	case "quit", "exit", "q":
		return true
	default:
		r.printf("Unknown command /%s (try /help)\n", cmd.name)
	}
	return false
}

// run reads lines from in until EOF, /quit or ctx is done.
func (r *repl) run(ctx context.Context, in io.Reader, interactive bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if interactive {
			r.mu.Lock()
			promptStyle.Fprint(r.out, "> ")
			r.mu.Unlock()
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if r.handle(ctx, scanner.Text()) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	file := fs.String("file", "", "document to load at start")
	url := fs.String("url", "", "web page to load at start")
	watch := fs.Bool("watch", false, "reload --file when it changes on disk")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if *file != "" && *url != "" {
		fmt.Fprintln(os.Stderr, "Use either --file or --url, not both")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, debugMode, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := &repl{
		sess:   components.newSession(uuid.NewString(), cfg, logger, debugMode),
		out:    os.Stdout,
		format: format,
		logger: logger,
	}
	if *watch {
		var watchOpts []watcher.WatcherOption
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		r.watcher = watcher.NewWatcher(extract.SupportedExtensions(), r.reload, watchOpts...)
		if err := r.watcher.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer r.watcher.Stop()
	}

	if format == cli.OutputText {
		fmt.Printf("docchat %s (model %s). Type /help for commands.\n", version, components.Model)
	}
	switch {
	case *file != "":
		r.ingest(ctx, session.FileSource(*file))
	case *url != "":
		r.ingest(ctx, session.WebSource(*url))
	}

	interactive := format == cli.OutputText
	if err := r.run(ctx, os.Stdin, interactive); err != nil {
		logger.Error("read input failed", zap.Error(err))
	}
}
