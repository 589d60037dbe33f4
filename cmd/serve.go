package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/liveline-bot/liveline/internal/autoreply"
	"github.com/liveline-bot/liveline/internal/bus"
	"github.com/liveline-bot/liveline/internal/channels"
	"github.com/liveline-bot/liveline/internal/channels/telegram"
	"github.com/liveline-bot/liveline/internal/config"
	"github.com/liveline-bot/liveline/internal/panel"
	"github.com/liveline-bot/liveline/internal/party"
	"github.com/liveline-bot/liveline/internal/queue"
	"github.com/liveline-bot/liveline/internal/reminder"
	"github.com/liveline-bot/liveline/internal/routing"
	"github.com/liveline-bot/liveline/internal/session"
	"github.com/liveline-bot/liveline/internal/store/sqlite"
)

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	dbPath := config.ResolvePath(cfg.Database.Path)
	os.MkdirAll(filepath.Dir(dbPath), 0o755)
	db, err := sqlite.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	stores := sqlite.NewStores(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rebuild in-memory state from the last run.
	registry := party.NewRegistry(stores.Parties)
	if err := registry.Load(ctx); err != nil {
		slog.Error("failed to load parties", "error", err)
		os.Exit(1)
	}
	waiting := queue.NewStore(stores.Queue)
	if err := waiting.Load(ctx); err != nil {
		slog.Error("failed to load queue", "error", err)
		os.Exit(1)
	}
	sessions := session.NewManager(waiting, stores.Sessions)
	if err := sessions.Load(ctx); err != nil {
		slog.Error("failed to load active session", "error", err)
		os.Exit(1)
	}
	matcher := autoreply.NewMatcher(stores.Rules)
	if err := matcher.Load(ctx); err != nil {
		slog.Error("failed to load auto-reply rules", "error", err)
		os.Exit(1)
	}
	seedRules(ctx, matcher, cfg.Rules)

	msgBus := bus.New()
	engine := routing.New(registry, waiting, sessions, matcher, stores.Messages, msgBus)

	channelMgr := channels.NewManager(msgBus)
	if cfg.Telegram.Enabled {
		tg, err := telegram.New(cfg.Telegram, msgBus, cfg.Broadcast.MessagesPerSecond)
		if err != nil {
			slog.Error("failed to create telegram channel", "error", err)
			os.Exit(1)
		}
		channelMgr.Register(tg)
	}

	cons := newConsumer(engine, msgBus, cfg)
	go cons.Run(ctx)

	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
	}

	digest, err := reminder.New(cfg.Reminder.Cron, engine, msgBus, "telegram", cfg.Telegram.PrimaryAdmin())
	if err != nil {
		slog.Error("invalid reminder config", "error", err)
		os.Exit(1)
	}
	go digest.Run(ctx)

	// Hot reload: greeting, admin list and rule seeds apply live.
	go func() {
		if err := config.Watch(ctx, cfgPath, func(next *config.Config) {
			cons.UpdateConfig(next)
			seedRules(ctx, matcher, next.Rules)
		}); err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)
		msgBus.Broadcast(bus.Event{Name: bus.EventShutdown})
		channelMgr.StopAll(context.Background())
		cancel()
	}()

	slog.Info("liveline starting",
		"version", Version,
		"db", dbPath,
		"telegram", cfg.Telegram.Enabled,
		"panel", cfg.Panel.Enabled,
		"parties", len(registry.All()),
		"waiting", waiting.Len(),
	)

	if cfg.Panel.Enabled {
		srv := panel.NewServer(cfg.Panel, engine, msgBus)
		if err := srv.Start(ctx); err != nil {
			slog.Error("panel error", "error", err)
			os.Exit(1)
		}
		return
	}
	<-ctx.Done()
}

// seedRules inserts config-file rules that do not exist yet. Runtime edits
// win over the file: an existing keyword is left untouched. Keywords match
// case-insensitively, same as Matcher.Set.
func seedRules(ctx context.Context, matcher *autoreply.Matcher, seeds []config.RuleSeed) {
	existing := make(map[string]bool)
	for _, r := range matcher.List() {
		existing[strings.ToLower(r.Keyword)] = true
	}
	for _, seed := range seeds {
		if seed.Keyword == "" || existing[strings.ToLower(seed.Keyword)] {
			continue
		}
		matcher.Set(ctx, seed.Keyword, seed.Reply, seed.MediaRef)
		slog.Info("seeded auto-reply rule", "keyword", seed.Keyword)
	}
}
