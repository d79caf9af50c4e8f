package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/roster-scan/internal/roster"
	"github.com/zombor/roster-scan/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("roster-scan")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "", "Database file path for extractions (empty keeps them in memory)")
		backend        = fs.StringLong("backend", "gemini", "Inference backend: 'gemini', 'openai' or 'ollama'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		openaiKey      = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel    = fs.StringLong("openai-model", scanning.DefaultOpenAIModel, "OpenAI model name")
		openaiURL      = fs.StringLong("openai-url", "", "OpenAI-compatible API base URL (empty uses api.openai.com)")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		sessionTTL     = fs.DurationLong("session-ttl", roster.DefaultSessionTTL, "How long an idle session keeps its extractions")
		extractTimeout = fs.DurationLong("extract-timeout", 0, "Upper bound for one extraction call (0 for none)")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("ROSTER_SCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize the inference model based on backend
	var (
		model      scanning.Model
		credential string
	)
	switch *backend {
	case "gemini":
		credential = firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY"))
		slog.Info("Initializing Gemini backend...", "model", *geminiModel)
		model = scanning.NewGemini(*geminiModel)
	case "openai":
		credential = firstNonEmpty(*openaiKey, os.Getenv("OPENAI_API_KEY"))
		slog.Info("Initializing OpenAI backend...", "model", *openaiModel, "url", *openaiURL)
		model = scanning.NewOpenAI(*openaiModel, *openaiURL)
	case "ollama":
		slog.Info("Initializing Ollama backend...", "url", *ollamaURL, "model", *ollamaModel)
		model = scanning.NewOllama(*ollamaURL, *ollamaModel)
	default:
		slog.Error("Invalid backend", "backend", *backend, "valid", "gemini, openai or ollama")
		os.Exit(1)
	}

	scanner := scanning.NewExtractor(model)
	defer scanner.Close()

	if !scanner.Enabled(credential) {
		slog.Warn("No API key configured; extraction is disabled until a request supplies one",
			"backend", scanner.Backend(),
			"help", scanning.CredentialHelpURL,
		)
	}

	// Initialize the extraction store
	var store roster.EntryStore
	if *dbPath != "" {
		slog.Info("Initializing database...", "path", *dbPath)
		db, err := roster.NewBoltStore(*dbPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = db
	} else {
		store = roster.NewMemoryStore()
	}

	service := roster.NewService(scanner, credential, roster.WithExtractTimeout(*extractTimeout))
	sessions := roster.NewSessions(store, *sessionTTL)

	// Sessions stored by a previous run expire like new ones
	if db, ok := store.(*roster.BoltStore); ok {
		namespaces, err := db.Namespaces()
		if err != nil {
			slog.Error("Failed to list stored sessions", "error", err)
			os.Exit(1)
		}
		slog.Info("Restored stored sessions", "count", sessions.Restore(namespaces))
	}

	basicAuth := roster.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := roster.NewServer(service, sessions, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
