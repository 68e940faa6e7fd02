// Package bot wires the Discord gateway to the task components: text and
// slash commands in, lifecycle transitions and notifications out.
package bot

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/platform"
	"github.com/nhle/taskbot/internal/store"
	"github.com/nhle/taskbot/internal/task"
)

// Bot owns the gateway session and routes commands and interactions to the
// task service and dispatcher.
type Bot struct {
	session *discordgo.Session
	store   store.Store
	tasks   *task.Service
	msgr    platform.Messenger
	cfg     *model.Config
	log     *zap.Logger

	mu        sync.Mutex
	heartbeat chan struct{}
}

// New creates a bot and registers its gateway handlers on the session.
// The caller opens and closes the session.
func New(
	session *discordgo.Session,
	st store.Store,
	tasks *task.Service,
	msgr platform.Messenger,
	cfg *model.Config,
	log *zap.Logger,
) *Bot {
	b := &Bot{
		session: session,
		store:   st,
		tasks:   tasks,
		msgr:    msgr,
		cfg:     cfg,
		log:     log,
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onInteractionCreate)

	return b
}

// commandDefs are the slash commands registered per guild. /指示 mirrors
// /assign for Japanese-speaking guilds.
var commandDefs = []*discordgo.ApplicationCommand{
	newAssignCommand("assign"),
	newAssignCommand("指示"),
}

func newAssignCommand(name string) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        name,
		Description: "タスクを指示（@ユーザー, 期日, タスク名）",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "対象ユーザー",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "due",
				Description: "期日（例: 明日 18:00 / 3日後 / 2025/09/01 09:00）",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "タスク名",
				Required:    true,
			},
		},
	}
}

// onReady logs the session identity and registers slash commands in every
// joined guild.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("gateway ready",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))

	for _, g := range r.Guilds {
		if _, err := b.registerCommands(g.ID); err != nil {
			b.log.Error("slash command registration failed",
				zap.String("guild_id", g.ID), zap.Error(err))
		}
	}
	b.startHeartbeat()
}

// registerCommands overwrites this bot's slash command set in a guild and
// returns how many commands are now registered there.
func (b *Bot) registerCommands(guildID string) (int, error) {
	cmds, err := b.session.ApplicationCommandBulkOverwrite(
		b.session.State.User.ID, guildID, commandDefs,
	)
	if err != nil {
		return 0, err
	}
	return len(cmds), nil
}

// startHeartbeat launches the periodic liveness log. Subsequent calls are
// no-ops until Stop.
func (b *Bot) startHeartbeat() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.heartbeat != nil {
		return
	}
	b.heartbeat = make(chan struct{})

	go func(stop chan struct{}) {
		ticker := time.NewTicker(b.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				b.log.Info("heartbeat",
					zap.Int("guilds", len(b.session.State.Guilds)),
					zap.Duration("gateway_latency", b.session.HeartbeatLatency()))
			}
		}
	}(b.heartbeat)
}

// Stop halts the heartbeat loop. The session itself is closed by the caller.
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.heartbeat != nil {
		close(b.heartbeat)
		b.heartbeat = nil
	}
}
