// Command sentinel answers UPSC questions and evaluates essays against a
// knowledge graph of ingested study material.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sentinel-zero/sentinel/config"
	"github.com/sentinel-zero/sentinel/rag"
	"github.com/sentinel-zero/sentinel/rag/ingest"
	"github.com/sentinel-zero/sentinel/render"
	"github.com/sentinel-zero/sentinel/store"
)

const usage = `Usage: sentinel [-config file] [-env file] <command> [flags]

Commands:
  ask       answer a question:        sentinel ask "What is Article 21?"
  evaluate  critique an essay:        sentinel evaluate -file essay.txt
  chat      interactive session with history and telemetry
  serve     HTTP API and web page
  ingest    load a PDF or text file:  sentinel ingest -file laxmikanth.pdf -topic "Fundamental Rights"
  setup     create indexes and constraints in the store; -reset wipes it first
  init      write the effective configuration to a YAML file (API keys excluded)

Environment:
  GROQ_API_KEY     inference for routing and generation
  GEMINI_API_KEY   embeddings
  FALKORDB_ADDR    FalkorDB host:port (store backend falkordb)
  DATABASE_URL     Postgres connection (store backend pgvector, history postgres)
`

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sentinel", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "YAML config file (default ./sentinel.yaml if present)")
	envFile := fs.String("env", "", ".env file (default ./.env if present)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(*configPath, envFiles...)
	if err != nil {
		fmt.Fprint(stderr, render.Terminal{}.Error(err))
		return exitUsage
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var cmdErr error
	switch cmd {
	case "ask":
		cmdErr = runAsk(ctx, cfg, rag.ModeQuery, rest, stdin, stdout, stderr)
	case "evaluate":
		cmdErr = runAsk(ctx, cfg, rag.ModeEvaluate, rest, stdin, stdout, stderr)
	case "chat":
		cmdErr = runChat(ctx, cfg, rest, stdin, stdout, stderr)
	case "serve":
		cmdErr = runServe(ctx, cfg, rest, stderr)
	case "ingest":
		cmdErr = runIngest(ctx, cfg, rest, stdout, stderr)
	case "setup":
		cmdErr = runSetup(ctx, cfg, rest, stdout, stderr)
	case "init":
		cmdErr = runInit(cfg, rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}

	switch {
	case cmdErr == nil:
		return exitOK
	case errors.Is(cmdErr, flag.ErrHelp):
		return exitUsage
	case errors.Is(cmdErr, rag.ErrConfiguration):
		fmt.Fprint(stderr, render.Terminal{}.Error(cmdErr))
		return exitUsage
	default:
		fmt.Fprint(stderr, render.Terminal{}.Error(cmdErr))
		return exitFailed
	}
}

func runAsk(ctx context.Context, cfg *config.Config, mode rag.Mode, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(string(mode), flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "read the input from a file; - reads stdin")
	telemetry := fs.Bool("telemetry", false, "show the retrieved context")
	asJSON := fs.Bool("json", false, "print the response as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input, err := readInput(*file, fs.Args(), stdin)
	if err != nil {
		return err
	}
	if err := cfg.Validate(config.NeedInference | config.NeedEmbedding | config.NeedStore); err != nil {
		return err
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	vs, closeStore, err := openVectorStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	a, err := newAgent(cfg, embedder, vs, logger)
	if err != nil {
		return err
	}

	resp, err := a.Run(ctx, rag.Request{Query: input, Mode: mode})
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Fprint(stdout, render.Terminal{ShowTelemetry: *telemetry}.Response(mode, resp))
	return nil
}

func readInput(file string, args []string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	switch {
	case file == "-":
		data, err = io.ReadAll(stdin)
	case file != "":
		data, err = os.ReadFile(file)
	default:
		data = []byte(strings.Join(args, " "))
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	input := strings.TrimSpace(string(data))
	if input == "" {
		return "", rag.NewConfigurationError("input", rag.ErrEmptyQuery)
	}
	return input, nil
}

func runChat(ctx context.Context, cfg *config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	session := fs.String("session", "", "resume a session id")
	telemetry := fs.Bool("telemetry", false, "show the retrieved context after each answer")
	width := fs.Int("width", 0, "wrap answers to this width")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(config.NeedAll); err != nil {
		return err
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	vs, closeStore, err := openVectorStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	history, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer history.Close()
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	a, err := newAgent(cfg, embedder, vs, logger)
	if err != nil {
		return err
	}

	sid := *session
	if sid == "" {
		sid = store.NewSessionID()
	}
	c := &chatSession{
		runner:    a,
		history:   history,
		term:      render.Terminal{ShowTelemetry: *telemetry, Width: *width},
		sessionID: sid,
	}
	return c.run(ctx, stdin, stdout)
}

func runServe(ctx context.Context, cfg *config.Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", cfg.Server.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(config.NeedAll); err != nil {
		return err
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	vs, closeStore, err := openVectorStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	history, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer history.Close()
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	a, err := newAgent(cfg, embedder, vs, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           NewServer(a, history, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runIngest(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "PDF or text file to ingest")
	title := fs.String("title", "", "document title (default: file name)")
	docID := fs.String("doc-id", "", "document id (default: derived from the title)")
	topic := fs.String("topic", "General", "syllabus topic the document covers")
	paper := fs.String("paper", "", "UPSC paper, e.g. GS-2")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return rag.NewConfigurationError("ingest", errors.New("-file is required"))
	}
	if err := cfg.Validate(config.NeedEmbedding | config.NeedStore); err != nil {
		return err
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	vs, closeStore, err := openVectorStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	res, err := newIngester(cfg, embedder, vs, logger).IngestFile(ctx, *file, ingest.Source{
		DocID: *docID,
		Title: *title,
		Topic: rag.TopicNode{Name: *topic, Paper: *paper},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "ingested %s: %d pages, %d chunks in %d batches\n", res.DocID, res.Pages, res.Chunks, res.Batches)
	return nil
}

func runSetup(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dim := fs.Int("dim", cfg.Embedding.Dimension, "embedding dimension of the vector index")
	reset := fs.Bool("reset", false, "delete every stored chunk, document and topic first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dim <= 0 {
		return rag.NewConfigurationError("setup", fmt.Errorf("invalid dimension %d", *dim))
	}
	if err := cfg.Validate(config.NeedStore); err != nil {
		return err
	}

	vs, closeStore, err := openVectorStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if *reset {
		if err := vs.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s store reset\n", cfg.Store.Backend)
	}
	if err := vs.Setup(ctx, *dim); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s store ready: %d-dim cosine index\n", cfg.Store.Backend, *dim)
	return nil
}

func runInit(cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("o", config.DefaultPath, "file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*force {
		if _, err := os.Stat(*out); err == nil {
			return rag.NewConfigurationError("init", fmt.Errorf("%s already exists, use -force to overwrite", *out))
		}
	}
	if err := config.Save(*out, cfg); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(stdout, "wrote %s\n", *out)
	return nil
}
