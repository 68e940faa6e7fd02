package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/nhle/taskbot/internal/bot"
	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/notify"
	"github.com/nhle/taskbot/internal/platform/discord"
	"github.com/nhle/taskbot/internal/remind"
	"github.com/nhle/taskbot/internal/store"
	"github.com/nhle/taskbot/internal/task"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskbot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	token := os.Getenv("DISCORD_BOT_TOKEN")
	if token == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is not set")
	}

	cfg, err := model.LoadConfig(model.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := newLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	st, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	msgr := discord.NewAdapter(session, log)
	disp := notify.NewDispatcher(st, msgr, cfg.Notify.RenameCooldown, log)
	tasks := task.NewService(st, disp, log)
	scanner := remind.New(st, disp, cfg.Reminder.Interval, cfg.Reminder.Window, log)
	b := bot.New(session, st, tasks, msgr, cfg, log)

	if err := session.Open(); err != nil {
		return fmt.Errorf("opening gateway: %w", err)
	}
	scanner.Start()
	log.Info("taskbot running", zap.String("db", cfg.DatabasePath))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	scanner.Stop()
	b.Stop()
	if err := session.Close(); err != nil {
		log.Warn("closing gateway", zap.Error(err))
	}
	return nil
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
