// ABOUTME: Entry point for the smart-tg-bot daemon
// ABOUTME: Wires config, session store, assistant client, and Telegram frontend

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/wspjoy2011/smart-tg-bot/internal/config"
	"github.com/wspjoy2011/smart-tg-bot/internal/openai"
	"github.com/wspjoy2011/smart-tg-bot/internal/quiz"
	"github.com/wspjoy2011/smart-tg-bot/internal/retry"
	"github.com/wspjoy2011/smart-tg-bot/internal/session"
	"github.com/wspjoy2011/smart-tg-bot/internal/store"
	"github.com/wspjoy2011/smart-tg-bot/internal/telegram"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                           _        _           _           _
 ___ _ __ ___   __ _ _ __| |_     | |_ __ _   | |__   ___ | |_
/ __| '_ ' _ \ / _' | '__| __|____| __/ _' |__| '_ \ / _ \| __|
\__ \ | | | | | (_| | |  | ||_____| || (_| |__| |_) | (_) | |_
|___/_| |_| |_|\__,_|_|   \__|     \__\__, |  |_.__/ \___/ \__|
                                      |___/
`

// getConfigPath returns the path to the bot config file.
// Priority: SMART_TG_BOT_CONFIG env var > XDG_CONFIG_HOME/smart-tg-bot/bot.yaml > ~/.config/smart-tg-bot/bot.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SMART_TG_BOT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "bot.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "smart-tg-bot", "bot.yaml")
}

// getDataPath returns the path to the bot data directory.
// Priority: XDG_DATA_HOME/smart-tg-bot > ~/.local/share/smart-tg-bot
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "smart-tg-bot")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: smart-tg-bot <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  run    Start the bot")
		fmt.Println("  init   Create a new config file interactively")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "run":
		err = runBot(ctx)
	case "init":
		err = runInit()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runBot(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Model:    %s\n", cfg.OpenAI.Model)
	fmt.Println()

	logger.Info("starting smart-tg-bot",
		"config", configPath,
		"database", cfg.Database.Path,
		"model", cfg.OpenAI.Model,
	)

	// Session store
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	// Assistants API client
	policy := retry.DefaultPolicy
	if cfg.OpenAI.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.OpenAI.Retry.MaxAttempts
	}
	if cfg.OpenAI.Retry.BaseDelay > 0 {
		policy.BaseDelay = cfg.OpenAI.Retry.BaseDelay
	}

	clientOpts := []openai.Option{
		openai.WithLogger(logger),
		openai.WithRetryPolicy(policy),
		openai.WithPolling(cfg.OpenAI.PollInterval, cfg.OpenAI.PollTimeout),
	}
	if cfg.OpenAI.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	client := openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, clientOpts...)

	// Session and quiz orchestration
	sessions := session.New(st, client, logger)
	quizzes := quiz.New(sessions, st, logger)

	// Telegram frontend
	assistants := map[store.Mode]string{
		store.ModeFact: cfg.OpenAI.Assistants.Fact,
		store.ModeChat: cfg.OpenAI.Assistants.Chat,
		store.ModeQuiz: cfg.OpenAI.Assistants.Quiz,
	}
	bot, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.UpdateTimeout, sessions, quizzes, assistants, logger)
	if err != nil {
		return fmt.Errorf("creating bot: %w", err)
	}

	return bot.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("smart-tg-bot configuration setup")
	fmt.Println("================================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "sessions.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Telegram
	fmt.Println("\n--- Telegram Configuration ---")
	fmt.Println("Leave the token as ${TG_BOT_API_KEY} to read it from the environment.")
	tgToken := prompt(reader, "Bot token", "${TG_BOT_API_KEY}")

	// OpenAI
	fmt.Println("\n--- OpenAI Configuration ---")
	fmt.Println("Leave the API key as ${OPENAI_API_KEY} to read it from the environment.")
	apiKey := prompt(reader, "API key", "${OPENAI_API_KEY}")
	model := prompt(reader, "Model", "gpt-4o-mini")
	factAssistant := prompt(reader, "Fact assistant ID (asst_...)", "")
	chatAssistant := prompt(reader, "Chat assistant ID (asst_...)", "")
	quizAssistant := prompt(reader, "Quiz assistant ID (asst_...)", "")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# smart-tg-bot configuration\n")
	cfg.WriteString("# Generated by smart-tg-bot init\n\n")

	cfg.WriteString("telegram:\n")
	cfg.WriteString(fmt.Sprintf("  token: \"%s\"\n", tgToken))
	cfg.WriteString("  update_timeout: 30\n")
	cfg.WriteString("\n")

	cfg.WriteString("openai:\n")
	cfg.WriteString(fmt.Sprintf("  api_key: \"%s\"\n", apiKey))
	cfg.WriteString(fmt.Sprintf("  model: \"%s\"\n", model))
	cfg.WriteString("  assistants:\n")
	cfg.WriteString(fmt.Sprintf("    fact: \"%s\"\n", factAssistant))
	cfg.WriteString(fmt.Sprintf("    chat: \"%s\"\n", chatAssistant))
	cfg.WriteString(fmt.Sprintf("    quiz: \"%s\"\n", quizAssistant))
	cfg.WriteString("  poll_interval: \"1s\"\n")
	cfg.WriteString("  poll_timeout: \"2m\"\n")
	cfg.WriteString("  retry:\n")
	cfg.WriteString("    max_attempts: 5\n")
	cfg.WriteString("    base_delay: \"1s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo create the assistants:")
	fmt.Println("  assistant-admin create --name 'Fact Assistant' --prompt fact_assistant")
	fmt.Println("  assistant-admin create --name 'Chat Assistant' --prompt chat_assistant")
	fmt.Println("  assistant-admin create --name 'Quiz Master' --prompt quiz_assistant")
	fmt.Println("\nTo start the bot:")
	fmt.Println("  smart-tg-bot run")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
