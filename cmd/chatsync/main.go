// ABOUTME: Entry point for the chatsync operator CLI
// ABOUTME: Tails and sends support conversation messages against the local log

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
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/samber/lo"

	"github.com/soundhive/chatsync/internal/chatlog"
	"github.com/soundhive/chatsync/internal/config"
	"github.com/soundhive/chatsync/internal/engine"
	"github.com/soundhive/chatsync/internal/message"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the chatsync config file.
// Priority: CHATSYNC_CONFIG env var > XDG_CONFIG_HOME/chatsync/chatsync.yaml > ~/.config/chatsync/chatsync.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CHATSYNC_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "chatsync.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "chatsync", "chatsync.yaml")
}

// loadConfig loads the config file if it exists, falling back to defaults.
func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	if _, err := os.Stat(path); err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: chatsync <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  tail <conversation-id>          Stream a conversation; stdin lines are sent as support")
		fmt.Println("  send <conversation-id> <text>   Send a single support message")
		fmt.Println("  seed <conversation-id>          Write demo records into the conversation")
		fmt.Println("  version                         Print version")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "tail":
		err = runTail(ctx, os.Args[2:])
	case "send":
		err = runSend(ctx, os.Args[2:])
	case "seed":
		err = runSeed(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, builds the logger, and opens the conversation log.
func setup() (*config.Config, *slog.Logger, *chatlog.SQLiteLog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	log, err := chatlog.NewSQLiteLog(cfg.Database.Path, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening conversation log: %w", err)
	}

	return cfg, logger, log, nil
}

func runTail(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: chatsync tail <conversation-id>")
	}
	conversationID := args[0]

	cfg, logger, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()

	eng := engine.New(log, cfg.Sync.HistoryLimit, logger)
	defer eng.Close()

	if err := eng.Open(ctx, conversationID, nil); err != nil {
		return fmt.Errorf("opening conversation: %w", err)
	}

	snap := eng.Snapshot()
	roster := strings.Join(lo.Map(snap.Participants, func(p message.Participant, _ int) string {
		return p.Name
	}), ", ")
	color.New(color.FgCyan).Printf("― %s ―\n", conversationID)
	color.New(color.FgHiBlack).Printf("participants: %s\n\n", roster)

	// Send stdin lines as the support identity
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := eng.Send(ctx, scanner.Text()); err != nil {
				color.New(color.FgRed).Fprintf(os.Stderr, "send failed: %v\n", err)
			}
		}
	}()

	// Render loop: snapshots are cheap, and new messages are detected by id.
	printed := make(map[string]bool)
	var lastError string
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := eng.Snapshot()
			for _, msg := range snap.Messages {
				if printed[msg.ID] {
					continue
				}
				printed[msg.ID] = true
				printMessage(msg)
			}
			if snap.Error != "" && snap.Error != lastError {
				lastError = snap.Error
				color.New(color.FgYellow).Fprintf(os.Stderr, "! %s\n", snap.Error)
			}
		}
	}
}

func printMessage(msg message.Message) {
	ts := color.HiBlackString(msg.Timestamp.Local().Format("15:04:05"))

	name := msg.SenderName
	if name == "" {
		name = msg.SenderID
	}

	var sender string
	switch {
	case msg.System:
		sender = color.HiBlackString(name)
	case msg.SenderID == message.SupportSenderID:
		sender = color.CyanString(name)
	default:
		sender = color.GreenString(name)
	}

	fmt.Printf("%s %s  %s\n", ts, sender, msg.Text)
}

func runSend(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: chatsync send <conversation-id> <text>")
	}
	conversationID := args[0]
	text := strings.Join(args[1:], " ")

	cfg, logger, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()

	eng := engine.New(log, cfg.Sync.HistoryLimit, logger)
	defer eng.Close()

	if err := eng.Open(ctx, conversationID, nil); err != nil {
		return fmt.Errorf("opening conversation: %w", err)
	}
	if err := eng.Send(ctx, text); err != nil {
		return err
	}

	color.New(color.FgGreen).Println("sent")
	return nil
}

// runSeed writes a handful of demo records, deliberately using different
// field aliases per record to exercise the normalizer the way mixed backend
// writers do.
func runSeed(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: chatsync seed <conversation-id>")
	}
	conversationID := args[0]

	_, _, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()

	now := time.Now().UTC()
	seeds := []map[string]any{
		{
			"text":      "Conversation started",
			"isSystem":  true,
			"timestamp": now.Add(-3 * time.Minute).Format(time.RFC3339),
		},
		{
			"message":    "Hi, my uploads keep failing",
			"sender_id":  "u_demo",
			"senderName": "Demo Client",
			"createdAt":  now.Add(-2 * time.Minute).Format(time.RFC3339),
		},
		{
			"body": "One more thing: the error code is UPL-7",
			"from": "u_demo",
			"name": "Demo Client",
			"ts":   now.Add(-1 * time.Minute).Unix(),
		},
	}

	for _, fields := range seeds {
		rec := chatlog.Record{ID: log.NewRecordID(), Fields: fields}
		if err := log.PutRecord(ctx, conversationID, rec); err != nil {
			return fmt.Errorf("seeding record: %w", err)
		}
	}

	color.New(color.FgGreen).Printf("seeded %d records into %s\n", len(seeds), conversationID)
	return nil
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
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
