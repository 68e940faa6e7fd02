package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/taskbot/internal/dateparse"
	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/notify"
	"github.com/nhle/taskbot/internal/store"
	"github.com/nhle/taskbot/internal/task"
)

// commandAliases maps every accepted command word, including Japanese
// aliases, to its canonical name.
var commandAliases = map[string]string{
	"setup":     "setup",
	"init":      "setup",
	"セットアップ":    "setup",
	"channels":  "channels",
	"test":      "test",
	"ping":      "ping",
	"assign":    "assign",
	"assign_task": "assign",
	"指示":        "assign",
	"syncslash": "syncslash",
	"sync":      "syncslash",
	"fixslash":  "syncslash",
	"スラッシュ同期":   "syncslash",
}

// mentionPattern matches user mention tokens inside message content.
var mentionPattern = regexp.MustCompile(`<@!?[0-9]+>`)

// commaPattern matches the ASCII and full-width comma separators accepted
// by the assign command.
var commaPattern = regexp.MustCompile(`[，,]`)

const (
	msgGuildOnly      = "❌ サーバー内で実行してください"
	msgAdminOnly      = "❌ Admin only"
	msgCreationFailed = "❌ 作成に失敗しました。"
	msgBadDue         = "❌ 期日が読めませんでした。例: 明日 18:00 / 3日後 / 金曜 14:30 / 2025/08/23 09:00"
)

// onMessageCreate routes prefixed text commands. It is the outermost text
// handler: every unexpected error is logged with full detail and reported
// to the user as a tagged generic failure, never allowed to escape.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	rest, ok := b.stripPrefix(m.Content)
	if !ok {
		return
	}
	word, args := splitCommand(rest)
	cmd, ok := commandAliases[strings.ToLower(word)]
	if !ok {
		return
	}

	log := b.log.With(
		zap.String("command", cmd),
		zap.String("correlation_id", uuid.NewString()),
		zap.String("user_id", m.Author.ID),
		zap.String("guild_id", m.GuildID),
	)
	ctx := context.Background()

	var err error
	switch cmd {
	case "setup":
		err = b.cmdSetup(ctx, m)
	case "channels":
		err = b.cmdChannels(ctx, m)
	case "test":
		err = b.cmdTest(ctx, m, log)
	case "ping":
		err = b.reply(m, "pong")
	case "assign":
		err = b.cmdAssign(ctx, m, args, log)
	case "syncslash":
		err = b.cmdSyncSlash(ctx, m)
	}

	if err != nil {
		log.Error("command failed", zap.Error(err))
		_ = b.reply(m, fmt.Sprintf("❌ An error occurred.\n`%s`", errorTag(err)))
	}
}

// stripPrefix removes an optional leading bot mention and one command
// prefix. The second return is false when the message is not a command.
func (b *Bot) stripPrefix(content string) (string, bool) {
	text := strings.TrimSpace(content)

	if me := b.session.State.User; me != nil {
		for _, mention := range []string{"<@" + me.ID + ">", "<@!" + me.ID + ">"} {
			if strings.HasPrefix(text, mention) {
				// A mention alone is a valid prefix; a command prefix
				// may still follow it.
				text = strings.TrimSpace(strings.TrimPrefix(text, mention))
				for _, p := range b.cfg.CommandPrefixes {
					text = strings.TrimSpace(strings.TrimPrefix(text, p))
				}
				return text, true
			}
		}
	}

	for _, p := range b.cfg.CommandPrefixes {
		if strings.HasPrefix(text, p) {
			return strings.TrimSpace(text[len(p):]), true
		}
	}
	return "", false
}

// splitCommand separates the command word from its arguments.
func splitCommand(text string) (string, string) {
	parts := strings.SplitN(text, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

// reply answers a text command in its channel, referencing the message.
func (b *Bot) reply(m *discordgo.MessageCreate, content string) error {
	_, err := b.session.ChannelMessageSendReply(m.ChannelID, content, m.Reference())
	if err != nil {
		return fmt.Errorf("replying in channel %s: %w", m.ChannelID, err)
	}
	return nil
}

// cmdSetup idempotently grants admin privilege to the invoker.
func (b *Bot) cmdSetup(ctx context.Context, m *discordgo.MessageCreate) error {
	if m.GuildID == "" {
		return b.reply(m, msgGuildOnly)
	}
	if err := b.store.AddAdmin(ctx, m.Author.ID, m.GuildID); err != nil {
		return err
	}
	return b.reply(m, "✅ Setup complete. Use `!channels` → `!test`")
}

// cmdChannels provisions the management channel and up to the configured
// number of per-member private channels, pausing between creations.
func (b *Bot) cmdChannels(ctx context.Context, m *discordgo.MessageCreate) error {
	if m.GuildID == "" {
		return b.reply(m, msgGuildOnly)
	}
	admin, err := b.store.IsAdmin(ctx, m.Author.ID, m.GuildID)
	if err != nil {
		return err
	}
	if !admin {
		return b.reply(m, msgAdminOnly)
	}

	created := 0
	mgmtOK := false
	if _, err := b.msgr.EnsureManagementChannel(ctx, m.GuildID); err == nil {
		mgmtOK = true
	} else {
		b.log.Warn("management channel provisioning failed", zap.Error(err))
	}

	members, err := b.session.GuildMembers(m.GuildID, "", 1000)
	if err != nil {
		return fmt.Errorf("listing guild members: %w", err)
	}
	for _, member := range members {
		if member.User == nil || member.User.Bot {
			continue
		}
		if created >= b.cfg.Provision.MaxPersonalChannels {
			break
		}
		if _, err := b.msgr.EnsurePersonalChannel(ctx, m.GuildID, member.User.ID); err != nil {
			b.log.Warn("personal channel provisioning failed",
				zap.String("user_id", member.User.ID), zap.Error(err))
			continue
		}
		created++
		time.Sleep(b.cfg.Provision.CreationDelay)
	}

	summary := fmt.Sprintf("✅ Channels ready: %d personal", created)
	if mgmtOK {
		summary += " + management"
	}
	return b.reply(m, summary)
}

// cmdTest creates a sample task assigned to the invoker, due just over an
// hour out so it enters the reminder window shortly after acceptance.
func (b *Bot) cmdTest(ctx context.Context, m *discordgo.MessageCreate, log *zap.Logger) error {
	if m.GuildID == "" {
		return b.reply(m, msgGuildOnly)
	}

	t := model.Task{
		GuildID:         m.GuildID,
		InstructorID:    m.Author.ID,
		AssigneeID:      m.Author.ID,
		Name:            "テストタスク",
		Due:             time.Now().Add(time.Hour + 5*time.Minute),
		OriginMessageID: m.ID,
		OriginChannelID: m.ChannelID,
	}

	created, res, err := b.tasks.Assign(ctx, t)
	if errors.Is(err, store.ErrReadBack) {
		log.Error("task read-back failed", zap.Error(err))
		return b.reply(m, "❌ タスク作成後の読み出しに失敗しました。もう一度お試しください。")
	}
	if err != nil {
		return err
	}
	logDeliveryFailures(log, created.ID, res)
	return b.reply(m, fmt.Sprintf("✅ テスト作成 (ID=%d)", created.ID))
}

// cmdAssign handles the text form: !assign @user, due-expression, title.
// Several users may be mentioned; one task is created per user.
func (b *Bot) cmdAssign(ctx context.Context, m *discordgo.MessageCreate, args string, log *zap.Logger) error {
	if m.GuildID == "" {
		return b.reply(m, msgGuildOnly)
	}

	var assignees []*discordgo.User
	for _, u := range m.Mentions {
		if me := b.session.State.User; me != nil && u.ID == me.ID {
			continue
		}
		assignees = append(assignees, u)
	}
	if len(assignees) == 0 {
		return b.reply(m, "❌ 指示対象のユーザーをメンションしてください。例: !assign @太郎, 明日 18:00, レポート提出")
	}

	text := strings.TrimSpace(mentionPattern.ReplaceAllString(args, ""))
	loc := commaPattern.FindStringIndex(text)
	if loc == nil {
		return b.reply(m, "❌ 形式: !assign @ユーザー, 期日, タスク名（半角`,` を2つ）")
	}
	parts := commaPattern.Split(strings.TrimSpace(text[loc[1]:]), 2)
	if len(parts) < 2 {
		return b.reply(m, "❌ 形式: !assign @ユーザー, 期日, タスク名")
	}
	dueExpr := strings.TrimSpace(parts[0])
	title := strings.TrimSpace(parts[1])
	if title == "" {
		return b.reply(m, "❌ タスク名が空です。")
	}

	due, ok := dateparse.Parse(dueExpr, time.Now())
	if !ok {
		return b.reply(m, msgBadDue)
	}

	created := 0
	for _, u := range assignees {
		t := model.Task{
			GuildID:         m.GuildID,
			InstructorID:    m.Author.ID,
			AssigneeID:      u.ID,
			Name:            title,
			Due:             due,
			OriginMessageID: m.ID,
			OriginChannelID: m.ChannelID,
		}
		newTask, res, err := b.tasks.Assign(ctx, t)
		if err != nil {
			log.Error("task creation failed",
				zap.String("assignee_id", u.ID), zap.Error(err))
			continue
		}
		logDeliveryFailures(log, newTask.ID, res)
		created++
	}

	if created == 0 {
		return b.reply(m, msgCreationFailed)
	}
	return b.reply(m, fmt.Sprintf("✅ %d件のタスクを指示しました。", created))
}

// cmdSyncSlash re-registers the slash command definitions in this guild.
func (b *Bot) cmdSyncSlash(ctx context.Context, m *discordgo.MessageCreate) error {
	if m.GuildID == "" {
		return b.reply(m, msgGuildOnly)
	}
	admin, err := b.store.IsAdmin(ctx, m.Author.ID, m.GuildID)
	if err != nil {
		return err
	}
	if !admin {
		return b.reply(m, msgAdminOnly)
	}

	n, err := b.registerCommands(m.GuildID)
	if err != nil {
		return fmt.Errorf("syncing slash commands: %w", err)
	}
	return b.reply(m, fmt.Sprintf("✅ Slash commands synced (%d in guild). 再度 /assign や /指示 をお試しください。", n))
}

// logDeliveryFailures records partial notification failures for a created
// or transitioned task.
func logDeliveryFailures(log *zap.Logger, taskID int64, res *notify.DeliveryResult) {
	if res == nil || res.OK() {
		return
	}
	for _, f := range res.Failures() {
		log.Warn("notification step failed",
			zap.Int64("task_id", taskID),
			zap.String("step", string(f.Step)),
			zap.Error(f.Err))
	}
}

// errorTag classifies an error for the generic user-facing failure
// message, mirroring the error taxonomy.
func errorTag(err error) string {
	switch {
	case errors.Is(err, task.ErrNotAssignee):
		return "authorization error"
	case errors.Is(err, task.ErrIllegalTransition):
		return "authorization error"
	case errors.Is(err, store.ErrReadBack):
		return "consistency error"
	case errors.Is(err, store.ErrTaskNotFound):
		return "validation error"
	default:
		return "unexpected error"
	}
}
