package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zenoccaz/chatlead/internal/api"
	"github.com/zenoccaz/chatlead/internal/engine"
	"github.com/zenoccaz/chatlead/internal/genai"
	"github.com/zenoccaz/chatlead/internal/leads"
	"github.com/zenoccaz/chatlead/internal/lockfile"
	"github.com/zenoccaz/chatlead/internal/relay"
	"github.com/zenoccaz/chatlead/internal/scheduler"
	"github.com/zenoccaz/chatlead/internal/store"
	"github.com/zenoccaz/chatlead/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for chatlead state data
	DefaultStateDir = "/var/lib/chatlead"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "chatlead.db"
	// sessionCleanupSchedule is the cron expression for the idle-session sweep
	sessionCleanupSchedule = "@every 10m"
	// sessionMaxIdle is how long a widget session may stay silent before
	// it is expired and its buffered lead writes flushed
	sessionMaxIdle = 30 * time.Minute
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping chatlead with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "chat_api_url", *flags.chatAPIURL)

	if err := run(flags, storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("chatlead failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("chatlead exited successfully")
}

// run wires the store, completion client, relay, and API server together
// and serves until interrupted.
func run(flags Flags, storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []api.Option) error {
	// A file-based store means shared local state: refuse to run alongside
	// another instance using the same state directory.
	if *flags.dbDSN != "" && store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.AcquireLock(filepath.Dir(*flags.dbDSN))
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	leadStore, err := openStore(flags, storeOpts)
	if err != nil {
		return err
	}
	defer leadStore.Close()

	completion, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	// The dialogue engine reaches the completion provider the same way the
	// widget does: through the /api/chat relay endpoint.
	relayClient := relay.NewClient(relay.WithEndpoint(*flags.chatAPIURL))

	sessions := api.NewSessionManager(func(sessionID string) (*engine.Engine, *leads.Recorder) {
		recorder := leads.NewRecorder(sessionID, func() store.Store { return leadStore })
		return engine.NewEngine(recorder, relayClient), recorder
	})

	maxIdle := util.ParseDurationEnv("SESSION_MAX_IDLE", sessionMaxIdle)
	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(sessionCleanupSchedule, func() {
		sessions.CleanupIdle(maxIdle)
	}); err != nil {
		return err
	}

	server := api.NewServer(completion, sessions, apiOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx)
}

// openStore builds the lead store matching the configured DSN, falling back
// to the in-memory store when no DSN is set.
func openStore(flags Flags, storeOpts []store.Option) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Info("No database DSN configured, using in-memory lead store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return store.NewPostgresStore(storeOpts...)
	}
	return store.NewSQLiteStore(storeOpts...)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string
	StateDir       string
	OpenAIKey      string
	OpenAIBaseURL  string
	OpenAIModel    string
	APIAddr        string
	ChatAPIURL     string
	AllowedOrigins string
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	openaiKey      *string
	openaiBaseURL  *string
	openaiModel    *string
	apiAddr        *string
	chatAPIURL     *string
	allowedOrigins *string
}

// initializeLogger sets up structured logging. Debug level is the default;
// set CHATLEAD_QUIET=true to raise it to info.
func initializeLogger() {
	level := slog.LevelDebug
	if util.ParseBoolEnv("CHATLEAD_QUIET", false) {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("CHATLEAD_STATE_DIR"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		APIAddr:        os.Getenv("API_ADDR"),
		ChatAPIURL:     os.Getenv("CHAT_API_URL"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
	}

	// PORT is the conventional deployment variable; API_ADDR wins when both
	// are set.
	if config.APIAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			config.APIAddr = ":" + port
		}
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CHATLEAD_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("CHATLEAD_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CHATLEAD_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_BASE_URL", config.OpenAIBaseURL,
		"OPENAI_MODEL", config.OpenAIModel,
		"API_ADDR", config.APIAddr,
		"CHAT_API_URL", config.ChatAPIURL,
		"ALLOWED_ORIGINS", config.AllowedOrigins)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for chatlead data (overrides $CHATLEAD_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN for the lead store (overrides $DATABASE_URL)"),
		openaiKey:      flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiBaseURL:  flag.String("openai-base-url", config.OpenAIBaseURL, "OpenAI-compatible base URL (overrides $OPENAI_BASE_URL)"),
		openaiModel:    flag.String("openai-model", config.OpenAIModel, "completion model (overrides $OPENAI_MODEL)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR or $PORT)"),
		chatAPIURL:     flag.String("chat-api-url", config.ChatAPIURL, "chat relay endpoint URL used by the dialogue engine (overrides $CHAT_API_URL)"),
		allowedOrigins: flag.String("allowed-origins", config.AllowedOrigins, "comma-separated CORS origins (overrides $ALLOWED_ORIGINS)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"openaiBaseURL", *flags.openaiBaseURL,
		"openaiModel", *flags.openaiModel,
		"apiAddr", *flags.apiAddr,
		"chatAPIURL", *flags.chatAPIURL,
		"allowedOrigins", *flags.allowedOrigins)

	if *flags.apiAddr == "" {
		*flags.apiAddr = api.DefaultAddr
	}
	if *flags.chatAPIURL == "" {
		*flags.chatAPIURL = "http://127.0.0.1" + *flags.apiAddr + "/api/chat"
		slog.Debug("No chat API URL provided, defaulting to own relay endpoint", "chat_api_url", *flags.chatAPIURL)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if *flags.dbDSN == "" || store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs completion client configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(*flags.openaiBaseURL))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.allowedOrigins != "" {
		apiOpts = append(apiOpts, api.WithAllowedOrigins(splitOrigins(*flags.allowedOrigins)))
	}
	return apiOpts
}

// splitOrigins splits a comma-separated origin list, trimming whitespace.
func splitOrigins(s string) []string {
	var origins []string
	for _, origin := range strings.Split(s, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
