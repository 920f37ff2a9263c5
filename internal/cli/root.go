// Package cli implements the team-memory CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/team-memory/internal/audit"
	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/config"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/service"
	"github.com/rcliao/team-memory/internal/store"
	"github.com/rcliao/team-memory/internal/tokens"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configPath string
	dbPath     string
	apiKeyFlag string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "team-memory",
	Short: "Shared memory for AI agents and their teams",
	Long: "Scoped, token-budgeted memory for coding agents. Run it as a local CLI, " +
		"an HTTP service for a team, or an MCP server.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $TEAM_MEMORY_CONFIG or ~/.team-memory/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path or DSN (overrides config)")
	RootCmd.PersistentFlags().StringVarP(&apiKeyFlag, "api-key", "k", "", "API key to act as (default: auth.api_key from config)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// app is everything a command needs, opened from config.
type app struct {
	cfg   *config.Config
	db    *store.DB
	svc   *service.Service
	gate  *auth.Gate
	audit *audit.Writer
	log   *slog.Logger
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.DSN = dbPath
	}
	if apiKeyFlag != "" {
		cfg.Auth.APIKey = apiKeyFlag
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	aw := audit.New(db, audit.Options{QueueSize: cfg.Audit.QueueSize, Logger: logger})
	svc := service.New(db, tokens.Default(cfg.Tokens.Encoding), service.Options{
		TTL:              cfg.TTL,
		DefaultMaxTokens: cfg.Context.DefaultMaxTokens,
		CandidateWindow:  cfg.Context.CandidateWindow,
		Auditor:          aw,
		Logger:           logger,
	})
	return &app{
		cfg:   cfg,
		db:    db,
		svc:   svc,
		gate:  auth.NewGate(cfg.AuthPolicy(), db),
		audit: aw,
		log:   logger,
	}, nil
}

// caller resolves the configured API key, or the anonymous caller when
// none is set and keys are optional.
func (a *app) caller(ctx context.Context) (*auth.Caller, error) {
	return a.gate.Resolve(ctx, a.cfg.Auth.APIKey)
}

// Close flushes pending audit entries and closes the database.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.audit.Close(ctx); err != nil {
		a.log.Warn("audit flush incomplete", "error", err, "dropped", a.audit.Dropped())
	}
	a.db.Close()
}

// mustOpen opens the app and resolves the caller, exiting on failure.
func mustOpen(cmd *cobra.Command) (*app, *auth.Caller) {
	a, err := openApp()
	if err != nil {
		exitErr("open store", err)
	}
	c, err := a.caller(cmd.Context())
	if err != nil {
		a.Close()
		exitErr("authenticate", err)
	}
	return a, c
}

func exitErr(msg string, err error) {
	if reason := model.ReasonOf(err); reason != "" {
		fmt.Fprintf(os.Stderr, "error: %s: %s: %v\n", msg, reason, err)
	} else {
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	}
	os.Exit(1)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// printEntries honours --format for commands returning records.
func printEntries(v any, entries []model.Entry) {
	if formatFlag != "text" {
		printJSON(v)
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %-18s %4d tok  %s\n", e.ID, e.Label(), e.Tokens, e.Summary)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseMeta(raw string) model.Metadata {
	if raw == "" {
		return nil
	}
	var meta model.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		exitErr("parse --meta", err)
	}
	return meta
}
